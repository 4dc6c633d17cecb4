package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is the subset of a browser tab the scrapers drive. It is small on
// purpose so scrapers can be tested against a fake.
type Page interface {
	Goto(url string) error
	// WaitForLoad blocks until the document is fully loaded, then sleeps for
	// settle so client-side rendering can finish.
	WaitForLoad(settle time.Duration) error
	Content() (string, error)
	URL() string
	Evaluate(expression string, arg interface{}) (interface{}, error)
}

// Screenshotter is implemented by pages that can capture an image of
// themselves.
type Screenshotter interface {
	Screenshot(path string) error
}

type Options struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration
	// Install downloads the Chromium driver before launching.
	Install bool
}

// Session owns one playwright process, one browser and one page. It must be
// closed on every exit path.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *playwrightPage
}

var launchArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--disable-extensions",
	"--disable-notifications",
	"--disable-blink-features=AutomationControlled",
}

// NewSession launches Chromium and opens the single page of the session.
// No permission is granted to the context, so notification prompts are denied.
func NewSession(opts Options) (*Session, error) {
	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("could not install playwright drivers: %w", err)
		}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	s := &Session{pw: pw}

	s.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     launchArgs,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:   playwright.String(opts.UserAgent),
		Viewport:    &playwright.Size{Width: 1920, Height: 1080},
		Permissions: []string{},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	//stealth must be in place before the first navigation
	if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(StealthScript)}); err != nil {
		s.Close()
		return nil, fmt.Errorf("could not install stealth script: %w", err)
	}

	page, err := s.context.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	s.page = &playwrightPage{page: page, timeout: float64(opts.Timeout.Milliseconds())}

	return s, nil
}

func (s *Session) Page() Page {
	return s.page
}

// Close releases the page, browser and driver process. It is safe to call on
// a partially constructed session.
func (s *Session) Close() error {
	var errs []error
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	return errors.Join(errs...)
}

type playwrightPage struct {
	page    playwright.Page
	timeout float64
}

func (p *playwrightPage) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	return err
}

func (p *playwrightPage) WaitForLoad(settle time.Duration) error {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(p.timeout),
	})
	time.Sleep(settle)
	return err
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Evaluate(expression string, arg interface{}) (interface{}, error) {
	return p.page.Evaluate(expression, arg)
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}
