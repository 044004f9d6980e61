package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/shuttledesk/internal/model"
)

// AuthError indicates that authentication has failed or expired.
// It is returned by API clients when a 401 response is received.
type AuthError struct {
	BaseURL string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.BaseURL, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
}

// FetchOptions controls pagination and filtering of the appointment list.
// Status and Search are passed through to the backend unchanged; empty
// values mean no filter.
type FetchOptions struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// FetchResult holds a page of appointments.
type FetchResult struct {
	Appointments []model.Appointment
	Total        int
	TotalPages   int
}

// Credentials are the login form values.
type Credentials struct {
	Email    string
	Password string
}

// AppointmentSource is the part of the booking API the notification core
// depends on.
type AppointmentSource interface {
	// FetchAppointments retrieves one page of the global appointment list.
	FetchAppointments(ctx context.Context, opts FetchOptions) (*FetchResult, error)
}

// Authenticator signs an identity in against the booking API.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*model.Identity, error)
}
