package models

import (
	"time"
)

// MedicalRecordType represents the type of medical record
type MedicalRecordType string

const (
	RecordTypeConsultation     MedicalRecordType = "ConsultationNote"
	RecordTypeLabResult        MedicalRecordType = "LabResult"
	RecordTypeImagingReport    MedicalRecordType = "ImagingReport"
	RecordTypeVaccination      MedicalRecordType = "VaccinationRecord"
	RecordTypeAllergy          MedicalRecordType = "AllergyRecord"
	RecordTypeDischargeSummary MedicalRecordType = "DischargeSummary"
)

// Valid reports whether t is a known record type.
func (t MedicalRecordType) Valid() bool {
	switch t {
	case RecordTypeConsultation, RecordTypeLabResult, RecordTypeImagingReport,
		RecordTypeVaccination, RecordTypeAllergy, RecordTypeDischargeSummary:
		return true
	}
	return false
}

// MedicalRecord is a doctor's clinical note about a patient.
type MedicalRecord struct {
	BaseModel
	PatientID      string            `gorm:"size:36;not null;index" json:"patientId"`
	DoctorID       string            `gorm:"size:36;not null;index" json:"doctorId"`
	RecordType     MedicalRecordType `gorm:"size:50;not null;default:'ConsultationNote'" json:"recordType"`
	RecordDate     time.Time         `gorm:"not null;index" json:"recordDate"`
	Title          string            `gorm:"size:255;not null" json:"title"`
	Diagnosis      string            `gorm:"type:text;not null" json:"diagnosis"`
	Symptoms       string            `gorm:"type:text" json:"symptoms"`
	TreatmentNotes string            `gorm:"type:text" json:"treatmentNotes"`
	Medications    string            `gorm:"type:text" json:"medications"`
	FollowUpDate   *time.Time        `json:"followUpDate,omitempty"`

	Patient *Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
	Doctor  *Doctor  `gorm:"foreignKey:DoctorID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
}

// Prescription is a medication order a doctor issues to a patient.
type Prescription struct {
	BaseModel
	PatientID    string `gorm:"size:36;not null;index" json:"patientId"`
	DoctorID     string `gorm:"size:36;not null;index" json:"doctorId"`
	Medications  string `gorm:"type:text;not null" json:"medications"`
	Dosage       string `gorm:"type:text;not null" json:"dosage"`
	Instructions string `gorm:"type:text;not null" json:"instructions"`
	Diagnosis    string `gorm:"type:text" json:"diagnosis"`
	IsActive     bool   `gorm:"not null" json:"isActive"`

	Patient *Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
	Doctor  *Doctor  `gorm:"foreignKey:DoctorID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
}
