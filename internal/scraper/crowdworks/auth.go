package crowdworks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	errLoginFormMissing = errors.New("login form elements not found")
	errStillOnLogin     = errors.New("still on login page after submit")
)

const probeFormScript = `(s) => ({
	identity: document.querySelector(s.identity) !== null,
	secret: document.querySelector(s.secret) !== null,
	submit: document.querySelector(s.submit) !== null,
})`

// fillScript sets the value directly and fires input/change so client-side
// frameworks see the new value.
const fillScript = `(a) => {
	const el = document.querySelector(a.selector);
	if (!el) {
		throw new Error('element not found: ' + a.selector);
	}
	el.value = a.value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

const clickScript = `(selector) => {
	document.querySelector(selector).click();
	return true;
}`

const submitFormScript = `(selector) => {
	document.querySelector(selector).submit();
	return true;
}`

// Login signs in with the configured credentials. It reports success only
// when the browser has left the login page. On any failure the page markup is
// dumped for inspection; errors never escape.
func (c *Crawler) Login(ctx context.Context) bool {
	c.log.Info("🔐 Starting login")
	if err := c.login(ctx); err != nil {
		c.log.Error("❌ Login failed", zap.String("url", c.page.URL()), zap.Error(err))
		if c.debugger != nil {
			_ = c.debugger.DumpPage(c.page, "login-failed")
		}
		return false
	}
	c.log.Info("✅ Login succeeded", zap.String("url", c.page.URL()))
	return true
}

func (c *Crawler) login(ctx context.Context) error {
	schema := c.opts.Schema.Login
	delays := c.opts.Delays

	if err := c.page.Goto(c.url(schema.Path)); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	if err := c.page.WaitForLoad(delays.PageSettle); err != nil {
		c.log.Warn("⚠️ Login page did not report load", zap.Error(err))
	}

	found, err := c.probeForm(schema)
	if err != nil {
		return err
	}
	if !found["identity"] || !found["secret"] {
		return errLoginFormMissing
	}

	if err := c.fill(schema.Identity, c.opts.Email); err != nil {
		return err
	}
	sleep(ctx, delays.FormDelay)
	if err := c.fill(schema.Secret, c.opts.Password); err != nil {
		return err
	}
	sleep(ctx, delays.FormDelay)

	if found["submit"] {
		c.log.Info("🖱️ Clicking login button")
		_, err = c.page.Evaluate(clickScript, schema.Submit)
	} else {
		c.log.Warn("⚠️ Login button not found, submitting form directly")
		_, err = c.page.Evaluate(submitFormScript, schema.Form)
	}
	if err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	sleep(ctx, delays.SubmitDelay)

	if strings.Contains(c.page.URL(), schema.Path) {
		return errStillOnLogin
	}
	return nil
}

func (c *Crawler) probeForm(schema LoginSchema) (map[string]bool, error) {
	raw, err := c.page.Evaluate(probeFormScript, map[string]interface{}{
		"identity": schema.Identity,
		"secret":   schema.Secret,
		"submit":   schema.Submit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect login form: %w", err)
	}

	result := map[string]bool{}
	if m, ok := raw.(map[string]interface{}); ok {
		for k, v := range m {
			b, _ := v.(bool)
			result[k] = b
		}
	}
	return result, nil
}

func (c *Crawler) fill(selector, value string) error {
	_, err := c.page.Evaluate(fillScript, map[string]interface{}{
		"selector": selector,
		"value":    value,
	})
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}
