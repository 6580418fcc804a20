package services

import (
	"context"
	"errors"

	"ehospital-server/internal/models"
	"ehospital-server/internal/payments"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var minorUnitsPerMajor = decimal.NewFromInt(100)

// PaymentService charges consultation fees through the payment gateway.
type PaymentService struct {
	DB           *gorm.DB
	Gateway      payments.Gateway
	Directory    *Directory
	Appointments *AppointmentService
	Currency     string
	Log          *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(db *gorm.DB, gateway payments.Gateway, directory *Directory, appointments *AppointmentService, currency string, log *zap.Logger) *PaymentService {
	return &PaymentService{
		DB:           db,
		Gateway:      gateway,
		Directory:    directory,
		Appointments: appointments,
		Currency:     currency,
		Log:          log,
	}
}

// Checkout is what the client needs to open the gateway's checkout.
type Checkout struct {
	Payment  *models.Payment `json:"payment"`
	OrderID  string          `json:"orderId"`
	KeyID    string          `json:"keyId"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
}

// Initiate opens a gateway order for the consultation fee of one of the
// patient's appointments and records a pending payment. Nothing is stored
// when the gateway refuses the order.
func (s *PaymentService) Initiate(ctx context.Context, actor models.Identity, appointmentID string) (*Checkout, error) {
	patient, err := s.Directory.PatientFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var appointment models.Appointment
	err = s.DB.WithContext(ctx).
		Preload("Doctor.User").
		First(&appointment, "id = ? AND patient_id = ?", appointmentID, patient.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("Appointment not found.")
		}
		s.Log.Error("payment.initiate.load_failed", zap.String("appointmentId", appointmentID), zap.Error(err))
		return nil, InternalError(err)
	}
	if appointment.Status != models.StatusScheduled {
		return nil, invalidTransition("pay for", appointment.Status)
	}

	doctor := appointment.Doctor
	amount := doctor.ConsultationFee
	minor := amount.Mul(minorUnitsPerMajor).IntPart()
	paymentID := uuid.NewString()

	order, err := s.Gateway.CreateOrder(ctx, minor, s.Currency, paymentID)
	if err != nil {
		s.Log.Warn("payment.initiate.gateway_failed", zap.String("appointmentId", appointment.ID), zap.Error(err))
		return nil, ExternalServiceError("Payment initialization failed. Please try again later.", err)
	}

	payment := &models.Payment{
		UserID:         actor.UserID,
		DoctorID:       &doctor.ID,
		AppointmentID:  &appointment.ID,
		PaymentID:      paymentID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       s.Currency,
		Type:           models.PaymentTypeConsultation,
		Status:         models.PaymentPending,
		Description:    "Consultation fee for " + doctor.DisplayName(),
	}
	if err := s.DB.WithContext(ctx).Create(payment).Error; err != nil {
		s.Log.Error("payment.initiate.store_failed", zap.String("orderId", order.ID), zap.Error(err))
		return nil, InternalError(err)
	}

	s.Log.Info("payment.initiated", zap.String("paymentId", paymentID), zap.String("orderId", order.ID), zap.Int64("amount", minor))
	return &Checkout{
		Payment:  payment,
		OrderID:  order.ID,
		KeyID:    s.Gateway.KeyID(),
		Amount:   minor,
		Currency: s.Currency,
	}, nil
}

// CallbackInput is what the gateway's checkout posts back.
type CallbackInput struct {
	OrderID   string
	PaymentID string
	Signature string
}

// CompletionResult carries the payment and non-fatal problems met on the way.
type CompletionResult struct {
	Payment  *models.Payment `json:"payment"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Complete verifies a checkout callback. A valid signature completes the
// payment and confirms its appointment; an invalid one fails the payment.
func (s *PaymentService) Complete(ctx context.Context, in CallbackInput) (*CompletionResult, error) {
	var payment models.Payment
	if err := s.DB.WithContext(ctx).First(&payment, "gateway_order_id = ?", in.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("Payment not found.")
		}
		s.Log.Error("payment.complete.load_failed", zap.String("orderId", in.OrderID), zap.Error(err))
		return nil, InternalError(err)
	}

	if !s.Gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		if payment.Status == models.PaymentPending {
			if err := s.DB.WithContext(ctx).Model(&payment).Update("status", models.PaymentFailed).Error; err != nil {
				s.Log.Error("payment.complete.mark_failed", zap.String("paymentId", payment.PaymentID), zap.Error(err))
			}
		}
		s.Log.Warn("payment.complete.bad_signature", zap.String("orderId", in.OrderID))
		return nil, ValidationError("Payment verification failed.")
	}

	result := &CompletionResult{Payment: &payment}
	if payment.Status == models.PaymentCompleted {
		return result, nil
	}

	err := s.DB.WithContext(ctx).Model(&payment).Updates(map[string]interface{}{
		"gateway_payment_id": in.PaymentID,
		"gateway_signature":  in.Signature,
		"status":             models.PaymentCompleted,
	}).Error
	if err != nil {
		s.Log.Error("payment.complete.store_failed", zap.String("paymentId", payment.PaymentID), zap.Error(err))
		return nil, InternalError(err)
	}
	payment.GatewayPaymentID = in.PaymentID
	payment.GatewaySignature = in.Signature
	payment.Status = models.PaymentCompleted

	minor := payment.Amount.Mul(minorUnitsPerMajor).IntPart()
	if err := s.Gateway.Capture(ctx, in.PaymentID, minor, payment.Currency); err != nil {
		s.Log.Warn("payment.complete.capture_failed", zap.String("paymentId", payment.PaymentID), zap.Error(err))
		result.Warnings = append(result.Warnings, "Payment verified but capture failed. Please contact support.")
	}

	if payment.AppointmentID != nil {
		if _, err := s.Appointments.ConfirmPayment(ctx, *payment.AppointmentID); err != nil {
			s.Log.Warn("payment.complete.confirm_failed", zap.String("appointmentId", *payment.AppointmentID), zap.Error(err))
			result.Warnings = append(result.Warnings, "Payment received but the appointment could not be confirmed.")
		}
	}

	s.Log.Info("payment.completed", zap.String("paymentId", payment.PaymentID), zap.String("orderId", in.OrderID))
	return result, nil
}

// History lists the actor's payments, newest first.
func (s *PaymentService) History(ctx context.Context, actor models.Identity) ([]models.Payment, error) {
	history := []models.Payment{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", actor.UserID).
		Order("created_at desc").
		Find(&history).Error
	if err != nil {
		s.Log.Error("payment.history.failed", zap.String("userId", actor.UserID), zap.Error(err))
		return nil, InternalError(err)
	}
	return history, nil
}
