package shuttle

import (
	"encoding/json"

	"github.com/nhle/shuttledesk/internal/model"
)

// AppointmentsResponse is the response from GET /appointments.
type AppointmentsResponse struct {
	Appointments []model.Appointment `json:"appointments"`
	Total        int                 `json:"total"`
	TotalPages   int                 `json:"totalPages"`
	Page         int                 `json:"page"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by POST /login. Older deployments
// return the user object bare, newer ones wrap it in "user"; both are
// accepted.
type LoginResponse struct {
	User    *model.Identity `json:"user"`
	Token   string          `json:"token,omitempty"`
	Message string          `json:"message,omitempty"`
}

// UnmarshalJSON accepts both the wrapped and the bare user layout.
func (r *LoginResponse) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		User    json.RawMessage `json:"user"`
		Token   string          `json:"token"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	r.Token = wrapped.Token
	r.Message = wrapped.Message

	body := data
	if len(wrapped.User) > 0 && string(wrapped.User) != "null" {
		body = wrapped.User
	}

	var id model.Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return err
	}
	if id.ID == 0 && id.Role == "" {
		r.User = nil
		return nil
	}
	r.User = &id
	return nil
}

// ErrorResponse is the error body the booking API sends with non-2xx
// responses.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Text returns whichever field carries the error text.
func (e ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
