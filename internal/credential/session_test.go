package credential_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/credential"
	"github.com/nhle/shuttledesk/internal/model"
)

var now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	ring := credential.Memory{}
	id := model.Identity{ID: 7, Role: model.RoleUser, Name: "Somchai", Token: signed(t, now.Add(time.Hour))}

	require.NoError(t, credential.SaveSession(ring, id))
	got, err := credential.LoadSession(ring, now)
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	require.NoError(t, credential.ClearSession(ring))
	_, err = credential.LoadSession(ring, now)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestLoadSessionExpired(t *testing.T) {
	ring := credential.Memory{}
	id := model.Identity{ID: 7, Role: model.RoleUser, Token: signed(t, now.Add(-time.Minute))}
	require.NoError(t, credential.SaveSession(ring, id))

	_, err := credential.LoadSession(ring, now)
	assert.ErrorIs(t, err, credential.ErrSessionExpired)
	assert.NotContains(t, ring, credential.KeySession)
}

func TestLoadSessionInvalid(t *testing.T) {
	ring := credential.Memory{credential.KeySession: `{"id":0,"role":"user"}`}
	_, err := credential.LoadSession(ring, now)
	assert.Error(t, err)
	assert.NotContains(t, ring, credential.KeySession)

	ring[credential.KeySession] = "not json"
	_, err = credential.LoadSession(ring, now)
	assert.Error(t, err)
	assert.NotContains(t, ring, credential.KeySession)
}

func TestTokenExpired(t *testing.T) {
	assert.False(t, credential.TokenExpired("", now))
	assert.False(t, credential.TokenExpired("opaque-session-token", now))
	assert.False(t, credential.TokenExpired(signed(t, now.Add(time.Second)), now))
	assert.True(t, credential.TokenExpired(signed(t, now), now))

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "7"})
	s, err := noExp.SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, credential.TokenExpired(s, now))
}
