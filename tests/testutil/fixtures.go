package testutil

import (
	"github.com/nhle/shuttledesk/internal/model"
)

// Identities used across package tests.
var (
	Admin   = model.Identity{ID: 1, Role: model.RoleAdmin, Name: "Admin", Email: "admin@example.com"}
	Staff   = model.Identity{ID: 2, Role: model.RoleStaff, Name: "Nok", Email: "staff@example.com"}
	Patient = model.Identity{ID: 7, Role: model.RoleUser, Name: "Somchai", Email: "somchai@example.com"}
)

// Appt builds an appointment owned by userID with a fixed hospital and
// schedule.
func Appt(id, userID int, status string) model.Appointment {
	return model.Appointment{
		ID:              id,
		UserID:          userID,
		FirstName:       "Patient",
		LastName:        string(rune('A' + id%26)),
		Hospital:        "Siriraj Hospital",
		Status:          status,
		AppointmentDate: "2026-03-14",
		AppointmentTime: "09:30",
	}
}
