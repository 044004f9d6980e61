package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/shuttledesk/internal/model"
)

// ErrSessionExpired is returned by LoadSession when the remembered
// token's exp claim has passed.
var ErrSessionExpired = errors.New("remembered session expired")

// SaveSession remembers id so the next launch signs in without the form.
func SaveSession(r Ring, id model.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return r.Set(KeySession, string(data))
}

// LoadSession returns the remembered identity. An invalid or expired
// record is removed.
func LoadSession(r Ring, now time.Time) (*model.Identity, error) {
	raw, err := r.Get(KeySession)
	if err != nil {
		return nil, err
	}

	var id model.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		_ = r.Delete(KeySession)
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if err := id.Validate(); err != nil {
		_ = r.Delete(KeySession)
		return nil, fmt.Errorf("remembered session: %w", err)
	}
	if TokenExpired(id.Token, now) {
		_ = r.Delete(KeySession)
		return nil, ErrSessionExpired
	}
	return &id, nil
}

// ClearSession forgets the remembered identity.
func ClearSession(r Ring) error {
	return r.Delete(KeySession)
}

// TokenExpired reports whether token is a JWT whose exp claim is before
// now. The signature is not checked; the backend does that. Tokens that
// are empty, opaque, or carry no exp never expire here.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
