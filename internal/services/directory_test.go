package services

import (
	"context"
	"testing"
	"time"

	"ehospital-server/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterUser_AssignsSequentialProfileCodes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "DR000001", f.doctor.Code)
	assert.Equal(t, "P000001", f.patient.Code)
	assert.Equal(t, "P000002", f.patient2.Code)
	assert.True(t, f.doctor.IsAvailable)
	assert.Equal(t, "General Medicine", f.doctor.Specialization)
	assert.True(t, f.doctor.ConsultationFee.Equal(models.DefaultConsultationFee))

	fee := decimal.RequireFromString("750.50")
	user, err := f.directory.RegisterUser(context.Background(), RegisterInput{
		FirstName:       "Robert",
		LastName:        "Chase",
		Email:           "  Robert.Chase@Example.com ",
		Password:        "password123",
		Role:            models.RoleDoctor,
		Specialization:  "Cardiology",
		ConsultationFee: &fee,
	})
	require.NoError(t, err)
	assert.Equal(t, "robert.chase@example.com", user.Email)
	assert.True(t, user.CheckPassword("password123"))

	doctor, err := f.directory.DoctorFor(context.Background(), user.Identity())
	require.NoError(t, err)
	assert.Equal(t, "DR000002", doctor.Code)
	assert.Equal(t, "Cardiology", doctor.Specialization)
	assert.True(t, doctor.ConsultationFee.Equal(fee))
	assert.Equal(t, "Dr. Robert Chase", doctor.DisplayName())
}

func TestRegisterUser_AdminHasNoProfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.directory.DoctorFor(context.Background(), f.adminID)
	assert.Equal(t, KindForbidden, KindOf(err))
	_, err = f.directory.PatientFor(context.Background(), f.adminID)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestRegisterUser_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
		kind ErrorKind
	}{
		{"duplicate email", RegisterInput{Email: "LISA.CUDDY@example.com", Password: "password123", Role: models.RolePatient}, KindValidation},
		{"missing email", RegisterInput{Password: "password123", Role: models.RolePatient}, KindValidation},
		{"missing password", RegisterInput{Email: "new@example.com", Role: models.RolePatient}, KindValidation},
		{"unknown role", RegisterInput{Email: "new@example.com", Password: "password123", Role: "nurse"}, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.directory.RegisterUser(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestGetIdentity(t *testing.T) {
	f := newFixture(t)

	identity, err := f.directory.GetIdentity(context.Background(), f.doctorID.UserID)
	require.NoError(t, err)
	assert.Equal(t, f.doctorID, identity)
	assert.Equal(t, "Gregory House", identity.Name)

	_, err = f.directory.GetIdentity(context.Background(), "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListDoctors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Allison", "Cameron", models.RoleDoctor)
	require.NoError(t, f.db.Model(&models.Doctor{}).Where("id = ?", f.doctor.ID).Update("is_available", false).Error)

	all, err := f.directory.ListDoctors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := f.directory.ListDoctors(ctx, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Cameron", available[0].User.LastName)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)

	page, err := f.directory.ListUsers(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.TotalItems)
	assert.Len(t, page.Items, 4)
	assert.False(t, page.HasNext)
}

func TestDeleteUser_RemovesProfileAndAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.book(t, ist(2025, 6, 10, 10, 0))
	other := f.bookFor(t, f.patient2ID, ist(2025, 6, 10, 11, 0))
	require.NoError(t, f.db.Create(&models.Payment{
		UserID:        f.patientID.UserID,
		AppointmentID: &mine.ID,
		PaymentID:     "PAY-1",
		Amount:        decimal.NewFromInt(100),
		Currency:      "INR",
		Type:          models.PaymentTypeAppointment,
	}).Error)

	require.NoError(t, f.directory.DeleteUser(ctx, f.patientID.UserID))

	_, err := f.directory.GetUser(ctx, f.patientID.UserID)
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = f.directory.FindPatient(ctx, f.patient.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = f.svc.Get(ctx, f.adminID, mine.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	var payments int64
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)

	kept, err := f.svc.Get(ctx, f.adminID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, kept.ID)

	assert.Equal(t, KindNotFound, KindOf(f.directory.DeleteUser(ctx, f.patientID.UserID)))
}

func TestUpdateDoctorProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dept := &models.Department{Name: "Diagnostics"}
	require.NoError(t, f.db.Create(dept).Error)

	off := false
	specialization := "  Nephrology "
	years := 12
	fee := decimal.RequireFromString("900.00")
	phone := "+91 98765 43210"
	updated, err := f.directory.UpdateDoctorProfile(ctx, f.doctorID, DoctorProfileUpdate{
		IsAvailable:     &off,
		Specialization:  &specialization,
		ExperienceYears: &years,
		ConsultationFee: &fee,
		PhoneNumber:     &phone,
		DepartmentID:    &dept.ID,
	})
	require.NoError(t, err)
	assert.False(t, updated.IsAvailable)
	assert.Equal(t, "Nephrology", updated.Specialization)
	assert.Equal(t, 12, updated.ExperienceYears)
	assert.True(t, fee.Equal(updated.ConsultationFee))
	assert.Equal(t, phone, updated.User.PhoneNumber)
	require.NotNil(t, updated.DepartmentID)
	assert.Equal(t, dept.ID, *updated.DepartmentID)
	assert.Equal(t, "DR000001", updated.Code, "untouched fields survive")

	available, err := f.directory.ListDoctors(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, available)

	_, err = f.svc.Create(ctx, f.patientID, CreateAppointmentInput{
		DoctorID:      f.doctor.ID,
		AppointmentAt: ist(2025, 6, 10, 10, 0).Format(time.RFC3339),
		Reason:        "Checkup",
	})
	assert.Equal(t, KindValidation, KindOf(err))

	blank := ""
	updated, err = f.directory.UpdateDoctorProfile(ctx, f.doctorID, DoctorProfileUpdate{
		Specialization: &blank,
		DepartmentID:   &blank,
	})
	require.NoError(t, err)
	assert.Equal(t, "General Medicine", updated.Specialization)
	assert.Nil(t, updated.DepartmentID)
	assert.False(t, updated.IsAvailable)
}

func TestUpdateDoctorProfile_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	negative := -1
	_, err := f.directory.UpdateDoctorProfile(ctx, f.doctorID, DoctorProfileUpdate{ExperienceYears: &negative})
	assert.Equal(t, KindValidation, KindOf(err))

	fee := decimal.NewFromInt(-5)
	_, err = f.directory.UpdateDoctorProfile(ctx, f.doctorID, DoctorProfileUpdate{ConsultationFee: &fee})
	assert.Equal(t, KindValidation, KindOf(err))

	missing := "00000000-0000-0000-0000-000000000000"
	_, err = f.directory.UpdateDoctorProfile(ctx, f.doctorID, DoctorProfileUpdate{DepartmentID: &missing})
	assert.Equal(t, KindNotFound, KindOf(err))

	off := false
	_, err = f.directory.UpdateDoctorProfile(ctx, f.patientID, DoctorProfileUpdate{IsAvailable: &off})
	assert.Equal(t, KindForbidden, KindOf(err))

	doctor, err := f.directory.DoctorFor(ctx, f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, 1, doctor.ExperienceYears)
	assert.True(t, doctor.IsAvailable)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t)
	f.book(t, ist(2025, 6, 10, 10, 0))

	stats, err := NewDirectory(f.db, zap.NewNop()).AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AdminStats{
		TotalUsers:        4,
		TotalPatients:     2,
		TotalDoctors:      1,
		TotalAppointments: 1,
	}, stats)
}
