package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	cause := stderrors.New("connection refused")

	assert.Equal(t, "AUTH: login failed: connection refused", Auth("login failed", cause).Error())
	assert.Equal(t, "CONFIG: credentials missing", Config("credentials missing", nil).Error())
}

func TestDomainError_UnwrapAndStack(t *testing.T) {
	cause := stderrors.New("boom")
	err := Storage("write snapshot", cause)

	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.StackTrace())
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", Auth("login page did not redirect", nil))

	assert.True(t, IsType(wrapped, ErrTypeAuth))
	assert.False(t, IsType(wrapped, ErrTypeConfig))
	assert.False(t, IsType(stderrors.New("plain"), ErrTypeAuth))

	nested := Unavailable("llm", Classification("parse", nil))
	assert.True(t, IsType(nested, ErrTypeClassification))
}
