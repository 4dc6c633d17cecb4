package crowdworks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-crowdworks-watcher/internal/browser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const loginHTML = `<html><body><form><input name="username"><input name="password"><button type="submit">ログイン</button></form></body></html>`

func setupLogin(t *testing.T) (*fakePage, *Crawler, string) {
	t.Helper()
	page := newFakePage()
	page.pages[testBaseURL+"/login"] = loginHTML
	page.form = map[string]interface{}{"identity": true, "secret": true, "submit": true}
	page.redirectTo = testBaseURL + "/dashboard"

	dump := filepath.Join(t.TempDir(), "error_page.html")
	c := newTestCrawler(page, browser.NewDebugger(dump, "", zap.NewNop()))
	return page, c, dump
}

func TestLogin_Success(t *testing.T) {
	page, c, dump := setupLogin(t)

	assert.True(t, c.Login(context.Background()))
	assert.Equal(t, "user@example.com", page.fills[`input[name="username"]`])
	assert.Equal(t, "secret", page.fills[`input[name="password"]`])
	assert.Equal(t, "button", page.submitted)
	assert.NoFileExists(t, dump)
}

func TestLogin_SubmitsFormWithoutButton(t *testing.T) {
	page, c, _ := setupLogin(t)
	page.form["submit"] = false

	assert.True(t, c.Login(context.Background()))
	assert.Equal(t, "form", page.submitted)
}

func TestLogin_MissingFieldsDumpsPage(t *testing.T) {
	page, c, dump := setupLogin(t)
	page.form = map[string]interface{}{"identity": true, "secret": false, "submit": true}

	assert.False(t, c.Login(context.Background()))
	assert.Empty(t, page.fills)

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Equal(t, loginHTML, string(data))
}

func TestLogin_StillOnLoginPage(t *testing.T) {
	page, c, dump := setupLogin(t)
	page.redirectTo = testBaseURL + "/login?error=1"

	assert.False(t, c.Login(context.Background()))
	assert.FileExists(t, dump)
}

func TestLogin_ScriptErrorIsContained(t *testing.T) {
	page, c, dump := setupLogin(t)
	page.evalErr = errors.New("execution context was destroyed")

	assert.NotPanics(t, func() {
		assert.False(t, c.Login(context.Background()))
	})
	assert.FileExists(t, dump)
}

func TestLogin_NavigationError(t *testing.T) {
	page, c, _ := setupLogin(t)
	page.gotoErrs[testBaseURL+"/login"] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	assert.False(t, c.Login(context.Background()))
}

func TestProbeForm_IgnoresNonBoolValues(t *testing.T) {
	page, c, _ := setupLogin(t)
	page.form = map[string]interface{}{"identity": "yes", "secret": true}

	found, err := c.probeForm(DefaultSchema.Login)
	require.NoError(t, err)
	assert.False(t, found["identity"])
	assert.True(t, found["secret"])
	assert.False(t, found["submit"])
}
