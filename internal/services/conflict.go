package services

import (
	"context"
	"time"

	"ehospital-server/internal/models"

	"gorm.io/gorm"
)

// ConflictChecker answers whether a doctor already has a scheduled appointment
// at an exact instant. Appointments one minute apart never conflict; visit
// duration is not modelled.
type ConflictChecker struct {
	DB *gorm.DB
}

// NewConflictChecker creates a new ConflictChecker.
func NewConflictChecker(db *gorm.DB) *ConflictChecker {
	return &ConflictChecker{DB: db}
}

// HasConflict reports whether doctorID has a scheduled appointment at exactly at.
func (cc *ConflictChecker) HasConflict(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	var count int64
	err := cc.DB.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND status = ?", doctorID, at.UTC(), models.StatusScheduled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
