package models

import (
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle of a gateway payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentType says what a payment is for.
type PaymentType string

const (
	PaymentTypeConsultation PaymentType = "consultation"
	PaymentTypeAppointment  PaymentType = "appointment"
	PaymentTypePrescription PaymentType = "prescription"
)

// Payment records a charge raised through the payment gateway.
type Payment struct {
	BaseModel
	UserID           string          `gorm:"size:36;not null;index" json:"userId"`
	DoctorID         *string         `gorm:"size:36;index" json:"doctorId,omitempty"`
	AppointmentID    *string         `gorm:"size:36;index" json:"appointmentId,omitempty"`
	PaymentID        string          `gorm:"size:100;uniqueIndex;not null" json:"paymentId"`
	GatewayOrderID   string          `gorm:"size:100;index" json:"gatewayOrderId"`
	GatewayPaymentID string          `gorm:"size:100" json:"gatewayPaymentId,omitempty"`
	GatewaySignature string          `gorm:"size:200" json:"-"`
	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null;default:'INR'" json:"currency"`
	Type             PaymentType     `gorm:"size:20;not null" json:"paymentType"`
	Status           PaymentStatus   `gorm:"size:20;not null;default:'pending'" json:"status"`
	Description      string          `gorm:"type:text" json:"description"`

	User        User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Doctor      *Doctor      `gorm:"foreignKey:DoctorID;constraint:OnDelete:CASCADE" json:"-"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE" json:"-"`
}
