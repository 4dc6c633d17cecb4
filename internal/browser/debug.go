package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Debugger persists page state for offline inspection when a step fails.
type Debugger struct {
	markupPath    string
	screenshotDir string
	log           *zap.Logger
}

// NewDebugger writes markup dumps to the fixed file markupPath and, for pages
// that support it, screenshots into screenshotDir. An empty screenshotDir
// disables screenshots.
func NewDebugger(markupPath, screenshotDir string, log *zap.Logger) *Debugger {
	return &Debugger{
		markupPath:    markupPath,
		screenshotDir: screenshotDir,
		log:           log,
	}
}

func (d *Debugger) MarkupPath() string {
	return d.markupPath
}

// DumpPage saves the current markup of page, overwriting the previous dump.
func (d *Debugger) DumpPage(page Page, name string) error {
	html, err := page.Content()
	if err != nil {
		d.log.Error("⚠️ Failed to read page source", zap.Error(err))
		return fmt.Errorf("failed to read page source: %w", err)
	}

	if dir := filepath.Dir(d.markupPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
	}
	if err := os.WriteFile(d.markupPath, []byte(html), 0644); err != nil {
		d.log.Error("⚠️ Failed to save page source", zap.Error(err))
		return fmt.Errorf("failed to save page source: %w", err)
	}
	d.log.Info("📄 Saved page source", zap.String("path", d.markupPath), zap.String("url", page.URL()))

	if shooter, ok := page.(Screenshotter); ok && d.screenshotDir != "" {
		d.capture(shooter, name)
	}
	return nil
}

func (d *Debugger) capture(shooter Screenshotter, name string) {
	if err := os.MkdirAll(d.screenshotDir, 0755); err != nil {
		d.log.Warn("⚠️ Failed to create screenshot directory", zap.Error(err))
		return
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(d.screenshotDir, fmt.Sprintf("%s_%s.png", name, timestamp))
	if err := shooter.Screenshot(path); err != nil {
		d.log.Warn("⚠️ Failed to capture screenshot", zap.Error(err))
		return
	}
	d.log.Info("📸 Screenshot saved", zap.String("path", path))
}
