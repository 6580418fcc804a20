package services

import (
	"context"
	"time"

	"ehospital-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	upcomingLimit       = 10
	recentLimit         = 5
	patientRecentLimit  = 5
	patientSummaryLimit = 3
	weekWindowDays      = 7
	monthWindowDays     = 30
	summaryDateFormat   = "2006-01-02 15:04"
)

// StatusCounts partitions a doctor's whole history by status.
type StatusCounts struct {
	Scheduled int64 `json:"scheduled"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	NoShow    int64 `json:"noShow"`
}

// DoctorDashboard is computed from the appointment table on every request.
type DoctorDashboard struct {
	Doctor               *models.Doctor       `json:"doctor"`
	TodayAppointments    []models.Appointment `json:"todayAppointments"`
	TomorrowAppointments []models.Appointment `json:"tomorrowAppointments"`
	TodayCount           int64                `json:"totalAppointmentsToday"`
	WeekCount            int64                `json:"totalAppointmentsWeek"`
	MonthCount           int64                `json:"totalAppointmentsMonth"`
	StatusCounts         StatusCounts         `json:"statusCounts"`
	Upcoming             []models.Appointment `json:"upcomingAppointments"`
	Recent               []models.Appointment `json:"recentAppointments"`
	TotalPatients        int64                `json:"totalPatients"`
	NewPatientsThisMonth int64                `json:"newPatientsThisMonth"`
}

// PatientDashboard is the patient's landing view.
type PatientDashboard struct {
	Patient             *models.Patient      `json:"patient"`
	RecentAppointments  []models.Appointment `json:"recentAppointments"`
	UpcomingAppointment *models.Appointment  `json:"upcomingAppointment"`
}

// SummaryAppointment is one line of a patient summary.
type SummaryAppointment struct {
	Date   string                   `json:"date"`
	Status models.AppointmentStatus `json:"status"`
	Reason string                   `json:"reason"`
}

// PatientSummary is the quick look a doctor gets at one of their patients.
type PatientSummary struct {
	Name               string               `json:"name"`
	Email              string               `json:"email"`
	Phone              string               `json:"phone"`
	PatientCode        string               `json:"patientId"`
	RecentAppointments []SummaryAppointment `json:"recentAppointments"`
}

// DashboardService aggregates appointment statistics.
type DashboardService struct {
	DB        *gorm.DB
	Directory *Directory
	Log       *zap.Logger
	Location  *time.Location
	Now       func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(db *gorm.DB, directory *Directory, loc *time.Location, log *zap.Logger) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{DB: db, Directory: directory, Log: log, Location: loc, Now: time.Now}
}

// DoctorDashboard builds the doctor's dashboard relative to now. Calendar
// windows are whole days in the service location, inclusive at both ends.
func (s *DashboardService) DoctorDashboard(ctx context.Context, doctor *models.Doctor, now time.Time) (*DoctorDashboard, error) {
	db := s.DB.WithContext(ctx)
	today := startOfDay(now.In(s.Location))
	tomorrow := today.AddDate(0, 0, 1)
	forDoctor := func() *gorm.DB {
		return db.Model(&models.Appointment{}).Where("doctor_id = ?", doctor.ID)
	}

	dash := &DoctorDashboard{Doctor: doctor}
	var err error

	if dash.TodayAppointments, err = s.between(forDoctor(), today, tomorrow); err != nil {
		return nil, s.failed(err)
	}
	if dash.TomorrowAppointments, err = s.between(forDoctor(), tomorrow, tomorrow.AddDate(0, 0, 1)); err != nil {
		return nil, s.failed(err)
	}
	dash.TodayCount = int64(len(dash.TodayAppointments))

	// [today, today+N] inclusive is [today 00:00, (today+N+1) 00:00)
	if err = countRange(forDoctor(), today, today.AddDate(0, 0, weekWindowDays+1), &dash.WeekCount); err != nil {
		return nil, s.failed(err)
	}
	if err = countRange(forDoctor(), today, today.AddDate(0, 0, monthWindowDays+1), &dash.MonthCount); err != nil {
		return nil, s.failed(err)
	}

	statuses := []struct {
		status models.AppointmentStatus
		dest   *int64
	}{
		{models.StatusScheduled, &dash.StatusCounts.Scheduled},
		{models.StatusCompleted, &dash.StatusCounts.Completed},
		{models.StatusCancelled, &dash.StatusCounts.Cancelled},
		{models.StatusNoShow, &dash.StatusCounts.NoShow},
	}
	for _, st := range statuses {
		if err = forDoctor().Where("status = ?", st.status).Count(st.dest).Error; err != nil {
			return nil, s.failed(err)
		}
	}

	err = forDoctor().
		Preload("Patient.User").
		Where("appointment_date >= ? AND status = ?", now.UTC(), models.StatusScheduled).
		Order("appointment_date asc").
		Limit(upcomingLimit).
		Find(&dash.Upcoming).Error
	if err != nil {
		return nil, s.failed(err)
	}
	err = forDoctor().
		Preload("Patient.User").
		Order("appointment_date desc").
		Limit(recentLimit).
		Find(&dash.Recent).Error
	if err != nil {
		return nil, s.failed(err)
	}

	if err = forDoctor().Distinct("patient_id").Count(&dash.TotalPatients).Error; err != nil {
		return nil, s.failed(err)
	}
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, s.Location)
	err = forDoctor().
		Where("appointment_date >= ?", monthStart.UTC()).
		Distinct("patient_id").
		Count(&dash.NewPatientsThisMonth).Error
	if err != nil {
		return nil, s.failed(err)
	}

	return dash, nil
}

func (s *DashboardService) between(query *gorm.DB, from, to time.Time) ([]models.Appointment, error) {
	appointments := []models.Appointment{}
	err := query.
		Preload("Patient.User").
		Where("appointment_date >= ? AND appointment_date < ?", from.UTC(), to.UTC()).
		Order("appointment_date asc").
		Find(&appointments).Error
	return appointments, err
}

func countRange(query *gorm.DB, from, to time.Time, dest *int64) error {
	return query.Where("appointment_date >= ? AND appointment_date < ?", from.UTC(), to.UTC()).Count(dest).Error
}

func (s *DashboardService) failed(err error) error {
	s.Log.Error("dashboard.query_failed", zap.Error(err))
	return InternalError(err)
}

// PatientDashboard builds the patient's recent list and next visit.
func (s *DashboardService) PatientDashboard(ctx context.Context, patient *models.Patient, now time.Time) (*PatientDashboard, error) {
	db := s.DB.WithContext(ctx)
	dash := &PatientDashboard{Patient: patient, RecentAppointments: []models.Appointment{}}

	err := db.Preload("Doctor.User").
		Where("patient_id = ?", patient.ID).
		Order("appointment_date desc").
		Limit(patientRecentLimit).
		Find(&dash.RecentAppointments).Error
	if err != nil {
		return nil, s.failed(err)
	}

	var upcoming []models.Appointment
	err = db.Preload("Doctor.User").
		Where("patient_id = ? AND appointment_date >= ? AND status = ?", patient.ID, now.UTC(), models.StatusScheduled).
		Order("appointment_date asc").
		Limit(1).
		Find(&upcoming).Error
	if err != nil {
		return nil, s.failed(err)
	}
	if len(upcoming) > 0 {
		dash.UpcomingAppointment = &upcoming[0]
	}
	return dash, nil
}

// PatientSummary describes patientID and their last appointments with doctor.
func (s *DashboardService) PatientSummary(ctx context.Context, doctor *models.Doctor, patientID string) (*PatientSummary, error) {
	patient, err := s.Directory.FindPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var appointments []models.Appointment
	err = s.DB.WithContext(ctx).
		Where("patient_id = ? AND doctor_id = ?", patient.ID, doctor.ID).
		Order("appointment_date desc").
		Limit(patientSummaryLimit).
		Find(&appointments).Error
	if err != nil {
		return nil, s.failed(err)
	}

	summary := &PatientSummary{
		Name:               patient.User.FullName(),
		Email:              patient.User.Email,
		Phone:              patient.User.PhoneNumber,
		PatientCode:        patient.Code,
		RecentAppointments: make([]SummaryAppointment, 0, len(appointments)),
	}
	for _, a := range appointments {
		summary.RecentAppointments = append(summary.RecentAppointments, SummaryAppointment{
			Date:   a.AppointmentDate.In(s.Location).Format(summaryDateFormat),
			Status: a.Status,
			Reason: a.Reason,
		})
	}
	return summary, nil
}
