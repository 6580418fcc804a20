package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ehospital-server/internal/events"
	"ehospital-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Labels of the blocks appended to an appointment's notes.
const (
	CompletionNotesLabel    = "Completion Notes"
	CancellationReasonLabel = "Cancellation Reason"
	NoShowNotesLabel        = "No-Show Notes"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// SlotChecker reports whether a doctor's slot is already taken.
type SlotChecker interface {
	HasConflict(ctx context.Context, doctorID string, at time.Time) (bool, error)
}

// AppointmentService owns the appointment lifecycle:
// scheduled -> completed | cancelled | no_show.
type AppointmentService struct {
	DB        *gorm.DB
	Directory *Directory
	Conflicts SlotChecker
	Events    events.Publisher
	Log       *zap.Logger
	Location  *time.Location
	Now       func() time.Time
}

// NewAppointmentService creates a new AppointmentService.
func NewAppointmentService(db *gorm.DB, directory *Directory, publisher events.Publisher, loc *time.Location, log *zap.Logger) *AppointmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentService{
		DB:        db,
		Directory: directory,
		Conflicts: NewConflictChecker(db),
		Events:    publisher,
		Log:       log,
		Location:  loc,
		Now:       time.Now,
	}
}

// CreateAppointmentInput describes a booking request. The instant is given
// either as RFC3339 in AppointmentAt or as Date (YYYY-MM-DD) plus Time (HH:MM)
// in the service's location.
type CreateAppointmentInput struct {
	DoctorID      string
	PatientID     string
	AppointmentAt string
	Date          string
	Time          string
	Reason        string
	Notes         string
}

// Create books an appointment. Nothing is written unless every check passes.
func (s *AppointmentService) Create(ctx context.Context, actor models.Identity, in CreateAppointmentInput) (*models.Appointment, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ValidationError("Reason for the appointment is required.")
	}
	at, err := s.parseAppointmentTime(in)
	if err != nil {
		return nil, err
	}
	if !at.After(s.Now()) {
		return nil, ValidationError("Appointment date must be in the future.")
	}

	doctor, patient, err := s.resolveParties(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	if !doctor.IsAvailable {
		return nil, ValidationError("Selected doctor is not accepting appointments.")
	}

	conflict, err := s.Conflicts.HasConflict(ctx, doctor.ID, at)
	if err != nil {
		s.Log.Error("appointment.create.conflict_check_failed", zap.String("doctorId", doctor.ID), zap.Error(err))
		return nil, InternalError(err)
	}
	if conflict {
		return nil, slotTakenError()
	}

	slotKey := models.SlotKeyFor(doctor.ID, at)
	appointment := &models.Appointment{
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		AppointmentDate: at.UTC(),
		Reason:          reason,
		Status:          models.StatusScheduled,
		Notes:           strings.TrimSpace(in.Notes),
		SlotKey:         &slotKey,
	}
	if err := s.DB.WithContext(ctx).Create(appointment).Error; err != nil {
		// another request took the slot between our check and the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.Log.Info("appointment.create.slot_race", zap.String("doctorId", doctor.ID), zap.Time("at", at))
			return nil, slotTakenError()
		}
		s.Log.Error("appointment.create.failed", zap.Error(err))
		return nil, InternalError(err)
	}
	appointment.Doctor = doctor
	appointment.Patient = patient

	s.Log.Info("appointment.created",
		zap.String("appointmentId", appointment.ID),
		zap.String("doctorId", doctor.ID),
		zap.String("patientId", patient.ID),
		zap.Time("at", appointment.AppointmentDate),
	)
	s.publish(ctx, events.AppointmentCreated, appointment)
	return appointment, nil
}

func slotTakenError() *AppError {
	return ConflictError("This time slot is already booked. Please choose another time.")
}

func (s *AppointmentService) parseAppointmentTime(in CreateAppointmentInput) (time.Time, error) {
	if raw := strings.TrimSpace(in.AppointmentAt); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, ValidationError("Invalid appointment date/time format.")
		}
		return at, nil
	}
	date, clock := strings.TrimSpace(in.Date), strings.TrimSpace(in.Time)
	if date == "" || clock == "" {
		return time.Time{}, ValidationError("Appointment date and time are required.")
	}
	at, err := time.ParseInLocation(dateTimeLayout, date+" "+clock, s.Location)
	if err != nil {
		return time.Time{}, ValidationError("Invalid appointment date/time format. Use YYYY-MM-DD and HH:MM.")
	}
	return at, nil
}

// resolveParties works out who the appointment is between. Patients book for
// themselves, doctors book for a chosen patient, admins name both.
func (s *AppointmentService) resolveParties(ctx context.Context, actor models.Identity, in CreateAppointmentInput) (*models.Doctor, *models.Patient, error) {
	var (
		doctor  *models.Doctor
		patient *models.Patient
		err     error
	)
	switch actor.Role {
	case models.RolePatient:
		if patient, err = s.Directory.PatientFor(ctx, actor); err != nil {
			return nil, nil, err
		}
		if in.DoctorID == "" {
			return nil, nil, ValidationError("Doctor is required.")
		}
		if doctor, err = s.Directory.FindDoctor(ctx, in.DoctorID); err != nil {
			return nil, nil, err
		}
	case models.RoleDoctor:
		if doctor, err = s.Directory.DoctorFor(ctx, actor); err != nil {
			return nil, nil, err
		}
		if in.PatientID == "" {
			return nil, nil, ValidationError("Patient is required.")
		}
		if patient, err = s.Directory.FindPatient(ctx, in.PatientID); err != nil {
			return nil, nil, err
		}
	case models.RoleAdmin:
		if in.DoctorID == "" || in.PatientID == "" {
			return nil, nil, ValidationError("Doctor and patient are required.")
		}
		if doctor, err = s.Directory.FindDoctor(ctx, in.DoctorID); err != nil {
			return nil, nil, err
		}
		if patient, err = s.Directory.FindPatient(ctx, in.PatientID); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, ForbiddenError("You do not have permission to book appointments.")
	}
	return doctor, patient, nil
}

// Complete marks a scheduled appointment as completed, appending note if given.
func (s *AppointmentService) Complete(ctx context.Context, actor models.Identity, id, note string) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, transition{
		target:    models.StatusCompleted,
		verb:      "complete",
		label:     CompletionNotesLabel,
		note:      note,
		event:     events.AppointmentCompleted,
		byPatient: false,
	})
}

// Cancel cancels a scheduled appointment, appending reason if given.
func (s *AppointmentService) Cancel(ctx context.Context, actor models.Identity, id, reason string) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, transition{
		target:    models.StatusCancelled,
		verb:      "cancel",
		label:     CancellationReasonLabel,
		note:      reason,
		event:     events.AppointmentCancelled,
		byPatient: true,
	})
}

// MarkNoShow records that the patient did not attend.
func (s *AppointmentService) MarkNoShow(ctx context.Context, actor models.Identity, id, note string) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, transition{
		target:    models.StatusNoShow,
		verb:      "mark as no-show",
		label:     NoShowNotesLabel,
		note:      note,
		event:     events.AppointmentNoShow,
		byPatient: false,
	})
}

type transition struct {
	target    models.AppointmentStatus
	verb      string
	label     string
	note      string
	event     string
	byPatient bool
}

func (s *AppointmentService) transition(ctx context.Context, actor models.Identity, id string, t transition) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := actor.Role == models.RoleAdmin || isDoctorOf(actor, appointment) || (t.byPatient && isPatientOf(actor, appointment))
	if !allowed {
		return nil, ForbiddenError("You are not authorized to modify this appointment.")
	}
	if appointment.Status != models.StatusScheduled {
		return nil, invalidTransition(t.verb, appointment.Status)
	}

	notes := AppendNote(appointment.Notes, t.label, t.note)
	now := s.Now().UTC()
	// The status guard makes the check-and-set atomic: of two racing
	// transitions only one matches the row.
	result := s.DB.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", appointment.ID, models.StatusScheduled).
		Updates(map[string]interface{}{
			"status":     t.target,
			"notes":      notes,
			"slot_key":   nil,
			"updated_at": now,
		})
	if result.Error != nil {
		s.Log.Error("appointment.transition.failed",
			zap.String("appointmentId", appointment.ID),
			zap.String("target", string(t.target)),
			zap.Error(result.Error),
		)
		return nil, InternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransition(t.verb, current.Status)
	}

	appointment.Status = t.target
	appointment.Notes = notes
	appointment.SlotKey = nil
	appointment.UpdatedAt = now

	s.Log.Info("appointment.transitioned",
		zap.String("appointmentId", appointment.ID),
		zap.String("status", string(t.target)),
		zap.String("actor", actor.UserID),
	)
	s.publish(ctx, t.event, appointment)
	return appointment, nil
}

func invalidTransition(verb string, current models.AppointmentStatus) *AppError {
	return InvalidTransitionError(fmt.Sprintf("Cannot %s an appointment that is %s.", verb, current))
}

// AppendNote appends a labelled block to existing notes. Existing content is
// never modified; an empty note leaves notes untouched.
func AppendNote(existing, label, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	block := label + ": " + note
	if existing == "" {
		return block
	}
	return existing + "\n\n" + block
}

// ConfirmPayment records that the appointment has been paid for. Only
// scheduled appointments can be confirmed; confirming twice is a no-op.
func (s *AppointmentService) ConfirmPayment(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.StatusScheduled {
		return nil, invalidTransition("confirm", appointment.Status)
	}
	if appointment.ConfirmedAt != nil {
		return appointment, nil
	}

	now := s.Now().UTC()
	result := s.DB.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", appointment.ID, models.StatusScheduled).
		Updates(map[string]interface{}{"confirmed_at": now, "updated_at": now})
	if result.Error != nil {
		s.Log.Error("appointment.confirm.failed", zap.String("appointmentId", id), zap.Error(result.Error))
		return nil, InternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransition("confirm", current.Status)
	}

	appointment.ConfirmedAt = &now
	appointment.UpdatedAt = now
	s.publish(ctx, events.AppointmentConfirmed, appointment)
	return appointment, nil
}

// Get returns one appointment to the patient or doctor involved, or to an admin.
func (s *AppointmentService) Get(ctx context.Context, actor models.Identity, id string) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && !isDoctorOf(actor, appointment) && !isPatientOf(actor, appointment) {
		return nil, ForbiddenError("You are not authorized to view this appointment.")
	}
	return appointment, nil
}

func (s *AppointmentService) load(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.DB.WithContext(ctx).
		Preload("Patient.User").
		Preload("Doctor.User").
		First(&appointment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("Appointment not found.")
		}
		s.Log.Error("appointment.load.failed", zap.String("appointmentId", id), zap.Error(err))
		return nil, InternalError(err)
	}
	return &appointment, nil
}

func isDoctorOf(actor models.Identity, a *models.Appointment) bool {
	return actor.Role == models.RoleDoctor && a.Doctor != nil && a.Doctor.UserID == actor.UserID
}

func isPatientOf(actor models.Identity, a *models.Appointment) bool {
	return actor.Role == models.RolePatient && a.Patient != nil && a.Patient.UserID == actor.UserID
}

// ListFilter holds the raw list parameters as they arrive from the request.
type ListFilter struct {
	Status   string
	DateFrom string
	DateTo   string
	Search   string
	Page     int
}

// AppointmentList is a page of appointments plus any filters that were ignored.
type AppointmentList struct {
	Page[models.Appointment]
	Warnings []string `json:"warnings,omitempty"`
}

// List returns the actor's appointments, newest first. Patients see their own,
// doctors see theirs, admins see all. Malformed filters are dropped and
// reported in Warnings rather than failing the request.
func (s *AppointmentService) List(ctx context.Context, actor models.Identity, filter ListFilter) (*AppointmentList, error) {
	query := s.DB.WithContext(ctx).Model(&models.Appointment{})
	size := AdminPageSize

	switch actor.Role {
	case models.RolePatient:
		patient, err := s.Directory.PatientFor(ctx, actor)
		if err != nil {
			return nil, err
		}
		query = query.Where("appointments.patient_id = ?", patient.ID)
		size = PatientAppointmentsPageSize
	case models.RoleDoctor:
		doctor, err := s.Directory.DoctorFor(ctx, actor)
		if err != nil {
			return nil, err
		}
		query = query.Where("appointments.doctor_id = ?", doctor.ID)
		size = DoctorAppointmentsPageSize
	case models.RoleAdmin:
	default:
		return nil, ForbiddenError("You do not have permission to view appointments.")
	}

	var warnings []string
	if status := strings.TrimSpace(filter.Status); status != "" {
		if models.AppointmentStatus(status).Valid() {
			query = query.Where("appointments.status = ?", status)
		} else {
			warnings = append(warnings, fmt.Sprintf("Unknown status %q ignored.", status))
		}
	}
	if raw := strings.TrimSpace(filter.DateFrom); raw != "" {
		if from, err := time.ParseInLocation(dateLayout, raw, s.Location); err == nil {
			query = query.Where("appointments.appointment_date >= ?", from.UTC())
		} else {
			warnings = append(warnings, fmt.Sprintf("Invalid date_from %q ignored. Use YYYY-MM-DD.", raw))
		}
	}
	if raw := strings.TrimSpace(filter.DateTo); raw != "" {
		if to, err := time.ParseInLocation(dateLayout, raw, s.Location); err == nil {
			query = query.Where("appointments.appointment_date < ?", to.AddDate(0, 0, 1).UTC())
		} else {
			warnings = append(warnings, fmt.Sprintf("Invalid date_to %q ignored. Use YYYY-MM-DD.", raw))
		}
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		patients := s.DB.WithContext(ctx).Table("patients").
			Select("patients.id").
			Joins("JOIN users ON users.id = patients.user_id").
			Where("LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ? OR LOWER(users.email) LIKE ?", like, like, like)
		query = query.Where(
			s.DB.WithContext(ctx).Where("appointments.patient_id IN (?)", patients).
				Or("LOWER(appointments.reason) LIKE ?", like).
				Or("LOWER(appointments.notes) LIKE ?", like),
		)
	}

	page, err := paginate[models.Appointment](query, "appointments.appointment_date desc", filter.Page, size, "Patient.User", "Doctor.User")
	if err != nil {
		s.Log.Error("appointment.list.failed", zap.String("actor", actor.UserID), zap.Error(err))
		return nil, InternalError(err)
	}
	for _, w := range warnings {
		s.Log.Debug("appointment.list.filter_ignored", zap.String("warning", w))
	}
	return &AppointmentList{Page: page, Warnings: warnings}, nil
}

func (s *AppointmentService) publish(ctx context.Context, eventType string, a *models.Appointment) {
	event := events.AppointmentEvent{
		Type:            eventType,
		AppointmentID:   a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		Status:          string(a.Status),
		AppointmentDate: a.AppointmentDate,
		OccurredAt:      s.Now().UTC(),
	}
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Log.Warn("appointment.event.publish_failed", zap.String("type", eventType), zap.String("appointmentId", a.ID), zap.Error(err))
	}
}
