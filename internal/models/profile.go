package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DoctorCodePrefix  = "DR"
	PatientCodePrefix = "P"
)

// ProfileCode renders the human-readable identifier shown to staff, e.g. DR000042.
func ProfileCode(prefix string, number int) string {
	return fmt.Sprintf("%s%06d", prefix, number)
}

// Department groups doctors.
type Department struct {
	BaseModel
	Name        string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}

// Doctor is the scheduling-relevant projection of a doctor identity.
type Doctor struct {
	BaseModel
	UserID          string          `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Number          int             `gorm:"uniqueIndex;not null" json:"-"`
	Code            string          `gorm:"size:20;uniqueIndex;not null" json:"doctorCode"`
	Specialization  string          `gorm:"size:100;default:'General Medicine'" json:"specialization"`
	LicenseNumber   string          `gorm:"size:50" json:"licenseNumber,omitempty"`
	ExperienceYears int             `gorm:"default:1" json:"experienceYears"`
	ConsultationFee decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"consultationFee"`
	DepartmentID    *string         `gorm:"size:36;index" json:"departmentId,omitempty"`
	IsAvailable     bool            `gorm:"not null" json:"isAvailable"`

	User       User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnDelete:SET NULL" json:"department,omitempty"`
}

// DisplayName is how the doctor is addressed in messages and payment descriptions.
func (d *Doctor) DisplayName() string {
	return "Dr. " + d.User.FullName()
}

// Patient is the identity projection of a patient. Medical metadata is carried
// but not interpreted by the scheduling core.
type Patient struct {
	BaseModel
	UserID           string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Number           int    `gorm:"uniqueIndex;not null" json:"-"`
	Code             string `gorm:"size:20;uniqueIndex;not null" json:"patientCode"`
	BloodGroup       string `gorm:"size:5" json:"bloodGroup,omitempty"`
	Allergies        string `gorm:"type:text" json:"allergies,omitempty"`
	EmergencyContact string `gorm:"size:20" json:"emergencyContact,omitempty"`
	MedicalHistory   string `gorm:"type:text" json:"medicalHistory,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
}

// DefaultConsultationFee applies when a doctor registers without a fee.
var DefaultConsultationFee = decimal.NewFromInt(100)

// Date marshals as YYYY-MM-DD; used by calendar projections.
type Date struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}
