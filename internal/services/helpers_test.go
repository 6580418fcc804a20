package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ehospital-server/internal/events"
	"ehospital-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var kolkata = mustLocation("Asia/Kolkata")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := models.GormConfig()
	cfg.Logger = logger.Discard
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// fixture is a small hospital: one doctor, two patients, one admin.
type fixture struct {
	db        *gorm.DB
	directory *Directory
	svc       *AppointmentService
	events    *events.Recorder
	now       time.Time

	doctor   *models.Doctor
	patient  *models.Patient
	patient2 *models.Patient

	doctorID   models.Identity
	patientID  models.Identity
	patient2ID models.Identity
	adminID    models.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop()
	directory := NewDirectory(db, log)
	recorder := &events.Recorder{}
	svc := NewAppointmentService(db, directory, recorder, kolkata, log)

	f := &fixture{
		db:        db,
		directory: directory,
		svc:       svc,
		events:    recorder,
		now:       time.Date(2025, 6, 9, 8, 0, 0, 0, kolkata),
	}
	svc.Now = func() time.Time { return f.now }

	f.doctorID = f.register(t, "Gregory", "House", models.RoleDoctor)
	f.patientID = f.register(t, "Lisa", "Cuddy", models.RolePatient)
	f.patient2ID = f.register(t, "James", "Wilson", models.RolePatient)
	f.adminID = f.register(t, "Eric", "Foreman", models.RoleAdmin)

	ctx := context.Background()
	var err error
	f.doctor, err = directory.DoctorFor(ctx, f.doctorID)
	require.NoError(t, err)
	f.patient, err = directory.PatientFor(ctx, f.patientID)
	require.NoError(t, err)
	f.patient2, err = directory.PatientFor(ctx, f.patient2ID)
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, first, last string, role models.Role) models.Identity {
	t.Helper()
	user, err := f.directory.RegisterUser(context.Background(), RegisterInput{
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s.%s@example.com", first, last),
		Password:  "password123",
		Role:      role,
	})
	require.NoError(t, err)
	return user.Identity()
}

// book creates a scheduled appointment as the first patient.
func (f *fixture) book(t *testing.T, at time.Time) *models.Appointment {
	t.Helper()
	return f.bookFor(t, f.patientID, at)
}

func (f *fixture) bookFor(t *testing.T, patient models.Identity, at time.Time) *models.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), patient, CreateAppointmentInput{
		DoctorID:      f.doctor.ID,
		AppointmentAt: at.Format(time.RFC3339),
		Reason:        "Checkup",
	})
	require.NoError(t, err)
	return a
}

// insert writes an appointment directly, bypassing the future-date check.
func (f *fixture) insert(t *testing.T, patient *models.Patient, at time.Time, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	a := &models.Appointment{
		PatientID:       patient.ID,
		DoctorID:        f.doctor.ID,
		AppointmentDate: at.UTC(),
		Reason:          "Follow-up",
		Status:          status,
	}
	if status == models.StatusScheduled {
		key := models.SlotKeyFor(f.doctor.ID, at)
		a.SlotKey = &key
	}
	require.NoError(t, f.db.Create(a).Error)
	return a
}

func ist(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, kolkata)
}
