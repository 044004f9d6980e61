package login

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/shuttledesk/internal/source"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("nok@hospital.example"))
	assert.NoError(t, validateEmail("  nok@hospital.example "))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("not-an-email"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", describe(nil))
	assert.Equal(t, "Incorrect email or password.",
		describe(&source.AuthError{BaseURL: "http://x", Message: "bad credentials"}))
	assert.Equal(t, "Sign-in failed: connection refused", describe(errors.New("connection refused")))
}

func TestStartClearsPasswordKeepsEmail(t *testing.T) {
	m := New("http://localhost:3001", 80, 24)
	m.fb.email = "nok@hospital.example"
	m.fb.password = "secret"
	m.Start()

	assert.Equal(t, "nok@hospital.example", m.fb.email)
	assert.Empty(t, m.fb.password)
	assert.NotNil(t, m.form)
}

func TestSetErrorShowsMessage(t *testing.T) {
	m := New("http://localhost:3001", 80, 24)
	m.SetBusy(true)
	m.SetError(errors.New("timeout"))

	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "Sign-in failed: timeout")
}
