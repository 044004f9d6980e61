package model

import "fmt"

// Role identifies which dashboard and which appointment scope a signed-in
// identity gets.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// SeesAll reports whether the role watches every appointment rather than
// only its own.
func (r Role) SeesAll() bool {
	return r == RoleStaff || r == RoleAdmin
}

// ListRoute returns the path of the role's booking list, the destination
// offered by alerts.
func (r Role) ListRoute() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleStaff:
		return "/staff/bookings"
	default:
		return "/user/bookings"
	}
}

// Identity is the signed-in account as returned by the login endpoint.
type Identity struct {
	// ID is the backend user id. Appointment ownership is matched on it.
	ID int `json:"id"`

	// Role decides the polling scope and alert wording.
	Role Role `json:"role"`

	// Name is the display name shown in the header.
	Name string `json:"name"`

	// Email is the login address.
	Email string `json:"email"`

	// Token is an optional bearer token. The booking API does not always
	// issue one.
	Token string `json:"token,omitempty"`
}

// Validate checks that the identity can drive a polling session.
func (i Identity) Validate() error {
	if i.ID <= 0 {
		return fmt.Errorf("identity has no id")
	}
	if !i.Role.Valid() {
		return fmt.Errorf("identity %d has unknown role %q", i.ID, i.Role)
	}
	return nil
}

// DisplayName returns Name, falling back to Email.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}
