package handlers

import (
	"context"

	"ehospital-server/internal/middleware"
	"ehospital-server/internal/models"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Appointments *services.AppointmentService
	Log          *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appointments, Log: log}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// Either appointmentAt (RFC3339) or date + time must be given. Patients omit
// patientId, doctors omit doctorId.
type CreateAppointmentRequest struct {
	DoctorID      string `json:"doctorId" binding:"omitempty,uuid"`
	PatientID     string `json:"patientId" binding:"omitempty,uuid"`
	AppointmentAt string `json:"appointmentAt"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Reason        string `json:"reason" binding:"required"`
	Notes         string `json:"notes"`
}

// CreateAppointment books a new appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, err := h.Appointments.Create(c.Request.Context(), identity, services.CreateAppointmentInput{
		DoctorID:      req.DoctorID,
		PatientID:     req.PatientID,
		AppointmentAt: req.AppointmentAt,
		Date:          req.Date,
		Time:          req.Time,
		Reason:        req.Reason,
		Notes:         req.Notes,
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Created(c, "Appointment booked successfully", appointment)
}

// ListAppointments lists the caller's appointments. Query parameters: status,
// date_from, date_to, search, page.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	list, err := h.Appointments.List(c.Request.Context(), identity, services.ListFilter{
		Status:   c.Query("status"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Search:   c.Query("search"),
		Page:     services.ParsePage(c.Query("page")),
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Success(c, "Appointments fetched successfully", list)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Appointments.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// NoteRequest carries the optional note attached to a status change.
type NoteRequest struct {
	Notes string `json:"notes"`
}

// CompleteAppointment marks an appointment as completed.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	h.changeStatus(c, h.Appointments.Complete, "Appointment marked as completed")
}

// CancelAppointment cancels an appointment.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	h.changeStatus(c, h.Appointments.Cancel, "Appointment cancelled successfully")
}

// MarkNoShow records that the patient did not attend.
func (h *AppointmentHandler) MarkNoShow(c *gin.Context) {
	h.changeStatus(c, h.Appointments.MarkNoShow, "Appointment marked as no-show")
}

type statusChange func(ctx context.Context, actor models.Identity, id, note string) (*models.Appointment, error)

func (h *AppointmentHandler) changeStatus(c *gin.Context, change statusChange, message string) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	// the body is optional
	var req NoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequest(c, "Invalid request payload")
			return
		}
	}

	appointment, err := change(c.Request.Context(), identity, c.Param("id"), req.Notes)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Success(c, message, appointment)
}
