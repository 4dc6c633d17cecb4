package crowdworks

import (
	"errors"
	"time"

	"go-crowdworks-watcher/internal/browser"
	"go-crowdworks-watcher/internal/config"

	"go.uber.org/zap"
)

// fakePage serves canned markup per URL and emulates the login scripts.
type fakePage struct {
	pages      map[string]string
	gotoErrs   map[string]error
	current    string
	form       map[string]interface{}
	evalErr    error
	redirectTo string

	fills     map[string]string
	submitted string
}

func newFakePage() *fakePage {
	return &fakePage{
		pages:    map[string]string{},
		gotoErrs: map[string]error{},
		fills:    map[string]string{},
	}
}

func (p *fakePage) Goto(url string) error {
	if err := p.gotoErrs[url]; err != nil {
		return err
	}
	p.current = url
	return nil
}

func (p *fakePage) WaitForLoad(time.Duration) error { return nil }

func (p *fakePage) Content() (string, error) {
	html, ok := p.pages[p.current]
	if !ok {
		return "<html><body>not found</body></html>", nil
	}
	return html, nil
}

func (p *fakePage) URL() string { return p.current }

func (p *fakePage) Evaluate(expression string, arg interface{}) (interface{}, error) {
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	switch expression {
	case probeFormScript:
		return p.form, nil
	case fillScript:
		a := arg.(map[string]interface{})
		p.fills[a["selector"].(string)] = a["value"].(string)
		return true, nil
	case clickScript:
		p.submitted = "button"
		p.current = p.redirectTo
		return true, nil
	case submitFormScript:
		p.submitted = "form"
		p.current = p.redirectTo
		return true, nil
	}
	return nil, errors.New("unexpected script")
}

const testBaseURL = "https://crowdworks.jp"

func testOptions() Options {
	return Options{
		BaseURL:  testBaseURL,
		Email:    "user@example.com",
		Password: "secret",
		Delays:   config.Delays{},
		Schema:   DefaultSchema,
	}
}

func newTestCrawler(page browser.Page, debugger *browser.Debugger) *Crawler {
	c := New(page, testOptions(), debugger, zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c
}
