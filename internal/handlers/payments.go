package handlers

import (
	"ehospital-server/internal/middleware"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler handles consultation fee payments.
type PaymentHandler struct {
	Payments *services.PaymentService
	Log      *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Log: log}
}

// InitiatePayment opens a gateway order for an appointment's consultation fee.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	checkout, err := h.Payments.Initiate(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Created(c, "Payment initiated successfully", checkout)
}

// PaymentCallbackRequest is what the checkout widget posts after payment.
type PaymentCallbackRequest struct {
	OrderID   string `json:"razorpay_order_id" form:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" form:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" form:"razorpay_signature" binding:"required"`
}

// PaymentCallback verifies the gateway signature and completes the payment.
// The route is public; the signature is the authentication.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	var req PaymentCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "Invalid payment callback")
		return
	}

	result, err := h.Payments.Complete(c.Request.Context(), services.CallbackInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Payment completed successfully", result)
}

// GetPaymentHistory lists the caller's payments.
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	history, err := h.Payments.History(c.Request.Context(), identity)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Payments fetched successfully", history)
}
