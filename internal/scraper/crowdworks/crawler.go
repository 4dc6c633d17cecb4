package crowdworks

import (
	"context"
	"strings"
	"time"

	"go-crowdworks-watcher/internal/browser"
	"go-crowdworks-watcher/internal/config"
	"go-crowdworks-watcher/internal/scraper"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

type Options struct {
	BaseURL  string
	Email    string
	Password string
	Delays   config.Delays
	Schema   Schema
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		Email:    cfg.Email,
		Password: cfg.Password,
		Delays:   cfg.Delays,
		Schema:   DefaultSchema,
	}
}

// Crawler drives a single browser page through login, the search results and
// detail pages. It is not safe for concurrent use: one page can only be on one
// URL at a time.
type Crawler struct {
	page     browser.Page
	opts     Options
	debugger *browser.Debugger
	log      *zap.Logger
	now      func() time.Time
}

func New(page browser.Page, opts Options, debugger *browser.Debugger, log *zap.Logger) *Crawler {
	return &Crawler{
		page:     page,
		opts:     opts,
		debugger: debugger,
		log:      log,
		now:      time.Now,
	}
}

func (c *Crawler) url(path string) string {
	return c.opts.BaseURL + path
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

var _ scraper.Session = (*Session)(nil)

// Session is a Crawler bound to a browser it owns.
type Session struct {
	*Crawler
	browser *browser.Session
}

// Open launches a browser session configured from cfg. The caller must Close it.
func Open(cfg *config.Config, log *zap.Logger) (*Session, error) {
	bs, err := browser.NewSession(browser.Options{
		Headless: cfg.IsHeadless(),
		Install:  cfg.InstallBrowser,
	})
	if err != nil {
		return nil, err
	}
	debugger := browser.NewDebugger(cfg.ErrorPagePath, cfg.ScreenshotDir, log)
	return &Session{
		Crawler: New(bs.Page(), OptionsFromConfig(cfg), debugger, log),
		browser: bs,
	}, nil
}

func (s *Session) Close() error {
	err := s.browser.Close()
	if err != nil {
		s.log.Warn("⚠️ Browser session did not close cleanly", zap.Error(err))
	} else {
		s.log.Info("🧹 Browser session closed")
	}
	return err
}
