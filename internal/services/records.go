package services

import (
	"context"
	"strings"
	"time"

	"ehospital-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordsPageSize is the page size of record and prescription listings.
const RecordsPageSize = 10

// CreateMedicalRecordInput is what a doctor submits for a new record.
// RecordDate is RFC3339 and defaults to now; FollowUpDate is YYYY-MM-DD.
type CreateMedicalRecordInput struct {
	PatientID      string
	RecordType     string
	RecordDate     string
	Title          string
	Diagnosis      string
	Symptoms       string
	TreatmentNotes string
	Medications    string
	FollowUpDate   string
}

// CreatePrescriptionInput is what a doctor submits for a new prescription.
type CreatePrescriptionInput struct {
	PatientID    string
	Medications  string
	Dosage       string
	Instructions string
	Diagnosis    string
}

// RecordService keeps the medical records and prescriptions doctors write.
type RecordService struct {
	DB        *gorm.DB
	Directory *Directory
	Log       *zap.Logger
	Location  *time.Location
	Now       func() time.Time
}

// NewRecordService creates a new RecordService.
func NewRecordService(db *gorm.DB, directory *Directory, loc *time.Location, log *zap.Logger) *RecordService {
	if loc == nil {
		loc = time.UTC
	}
	return &RecordService{DB: db, Directory: directory, Log: log, Location: loc, Now: time.Now}
}

// CreateMedicalRecord stores a record written by the calling doctor.
func (s *RecordService) CreateMedicalRecord(ctx context.Context, actor models.Identity, in CreateMedicalRecordInput) (*models.MedicalRecord, error) {
	doctor, err := s.Directory.DoctorFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	diagnosis := strings.TrimSpace(in.Diagnosis)
	if title == "" || diagnosis == "" {
		return nil, ValidationError("Title and diagnosis are required.")
	}

	recordType := models.RecordTypeConsultation
	if in.RecordType != "" {
		recordType = models.MedicalRecordType(in.RecordType)
		if !recordType.Valid() {
			return nil, ValidationError("Unknown record type.")
		}
	}

	recordDate := s.Now()
	if in.RecordDate != "" {
		if recordDate, err = time.Parse(time.RFC3339, in.RecordDate); err != nil {
			return nil, ValidationError("Invalid record date. Use RFC3339.")
		}
	}

	var followUp *time.Time
	if in.FollowUpDate != "" {
		day, err := time.ParseInLocation("2006-01-02", in.FollowUpDate, s.Location)
		if err != nil {
			return nil, ValidationError("Invalid follow-up date. Use YYYY-MM-DD.")
		}
		if day.Before(startOfDay(recordDate.In(s.Location))) {
			return nil, ValidationError("Follow-up date cannot be before the record date.")
		}
		followUp = &day
	}

	patient, err := s.Directory.FindPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	record := &models.MedicalRecord{
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
		RecordType:     recordType,
		RecordDate:     recordDate.UTC(),
		Title:          title,
		Diagnosis:      diagnosis,
		Symptoms:       strings.TrimSpace(in.Symptoms),
		TreatmentNotes: strings.TrimSpace(in.TreatmentNotes),
		Medications:    strings.TrimSpace(in.Medications),
		FollowUpDate:   followUp,
	}
	if err := s.DB.WithContext(ctx).Create(record).Error; err != nil {
		s.Log.Error("records.create.failed", zap.String("doctorId", doctor.ID), zap.Error(err))
		return nil, InternalError(err)
	}
	record.Patient = patient
	record.Doctor = doctor

	s.Log.Info("records.created",
		zap.String("recordId", record.ID),
		zap.String("doctorId", doctor.ID),
		zap.String("patientId", patient.ID),
	)
	return record, nil
}

// CreatePrescription stores a prescription issued by the calling doctor.
// New prescriptions are active.
func (s *RecordService) CreatePrescription(ctx context.Context, actor models.Identity, in CreatePrescriptionInput) (*models.Prescription, error) {
	doctor, err := s.Directory.DoctorFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	medications := strings.TrimSpace(in.Medications)
	dosage := strings.TrimSpace(in.Dosage)
	instructions := strings.TrimSpace(in.Instructions)
	if medications == "" || dosage == "" || instructions == "" {
		return nil, ValidationError("Please fill in all required fields.")
	}

	patient, err := s.Directory.FindPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	prescription := &models.Prescription{
		PatientID:    patient.ID,
		DoctorID:     doctor.ID,
		Medications:  medications,
		Dosage:       dosage,
		Instructions: instructions,
		Diagnosis:    strings.TrimSpace(in.Diagnosis),
		IsActive:     true,
	}
	if err := s.DB.WithContext(ctx).Create(prescription).Error; err != nil {
		s.Log.Error("prescriptions.create.failed", zap.String("doctorId", doctor.ID), zap.Error(err))
		return nil, InternalError(err)
	}
	prescription.Patient = patient
	prescription.Doctor = doctor

	s.Log.Info("prescriptions.created",
		zap.String("prescriptionId", prescription.ID),
		zap.String("doctorId", doctor.ID),
		zap.String("patientId", patient.ID),
	)
	return prescription, nil
}

// DoctorRecords pages through the records the calling doctor wrote, newest
// first, optionally for one patient only.
func (s *RecordService) DoctorRecords(ctx context.Context, actor models.Identity, patientID, rawPage string) (Page[models.MedicalRecord], error) {
	doctor, err := s.Directory.DoctorFor(ctx, actor)
	if err != nil {
		return Page[models.MedicalRecord]{}, err
	}
	query := s.DB.WithContext(ctx).Model(&models.MedicalRecord{}).Where("doctor_id = ?", doctor.ID)
	if patientID != "" {
		query = query.Where("patient_id = ?", patientID)
	}
	page, err := paginate[models.MedicalRecord](query, "record_date DESC, created_at DESC", ParsePage(rawPage), RecordsPageSize, "Patient.User")
	if err != nil {
		return page, s.failed(err)
	}
	return page, nil
}

// DoctorPrescriptions pages through the prescriptions the calling doctor
// issued, newest first, optionally for one patient only.
func (s *RecordService) DoctorPrescriptions(ctx context.Context, actor models.Identity, patientID, rawPage string) (Page[models.Prescription], error) {
	doctor, err := s.Directory.DoctorFor(ctx, actor)
	if err != nil {
		return Page[models.Prescription]{}, err
	}
	query := s.DB.WithContext(ctx).Model(&models.Prescription{}).Where("doctor_id = ?", doctor.ID)
	if patientID != "" {
		query = query.Where("patient_id = ?", patientID)
	}
	page, err := paginate[models.Prescription](query, "created_at DESC", ParsePage(rawPage), RecordsPageSize, "Patient.User")
	if err != nil {
		return page, s.failed(err)
	}
	return page, nil
}

// PatientRecords pages through the calling patient's records, newest first.
func (s *RecordService) PatientRecords(ctx context.Context, actor models.Identity, rawPage string) (Page[models.MedicalRecord], error) {
	patient, err := s.Directory.PatientFor(ctx, actor)
	if err != nil {
		return Page[models.MedicalRecord]{}, err
	}
	query := s.DB.WithContext(ctx).Model(&models.MedicalRecord{}).Where("patient_id = ?", patient.ID)
	page, err := paginate[models.MedicalRecord](query, "record_date DESC, created_at DESC", ParsePage(rawPage), RecordsPageSize, "Doctor.User")
	if err != nil {
		return page, s.failed(err)
	}
	return page, nil
}

// PatientPrescriptions pages through the calling patient's prescriptions, newest first.
func (s *RecordService) PatientPrescriptions(ctx context.Context, actor models.Identity, rawPage string) (Page[models.Prescription], error) {
	patient, err := s.Directory.PatientFor(ctx, actor)
	if err != nil {
		return Page[models.Prescription]{}, err
	}
	query := s.DB.WithContext(ctx).Model(&models.Prescription{}).Where("patient_id = ?", patient.ID)
	page, err := paginate[models.Prescription](query, "created_at DESC", ParsePage(rawPage), RecordsPageSize, "Doctor.User")
	if err != nil {
		return page, s.failed(err)
	}
	return page, nil
}

func (s *RecordService) failed(err error) error {
	s.Log.Error("records.query.failed", zap.Error(err))
	return InternalError(err)
}
