package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Appointment is a booking of a patient with a doctor at an exact instant.
//
// SlotKey is non-null only while the appointment is scheduled; its unique index
// is what keeps two scheduled appointments off the same (doctor, instant) slot
// when concurrent requests race past the conflict check.
type Appointment struct {
	BaseModel
	PatientID       string            `gorm:"size:36;not null;index" json:"patientId"`
	DoctorID        string            `gorm:"size:36;not null;index:idx_appointments_doctor_date" json:"doctorId"`
	AppointmentDate time.Time         `gorm:"not null;index:idx_appointments_doctor_date" json:"appointmentDate"`
	Reason          string            `gorm:"type:text;not null" json:"reason"`
	Status          AppointmentStatus `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	Notes           string            `gorm:"type:text" json:"notes"`
	ConfirmedAt     *time.Time        `json:"confirmedAt,omitempty"`
	SlotKey         *string           `gorm:"size:80;uniqueIndex" json:"-"`

	Patient *Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
	Doctor  *Doctor  `gorm:"foreignKey:DoctorID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
}

// SlotKeyFor derives the storage uniqueness key of a scheduled slot.
func SlotKeyFor(doctorID string, at time.Time) string {
	return doctorID + "@" + at.UTC().Format(time.RFC3339Nano)
}
