package handlers

import (
	"ehospital-server/internal/middleware"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DoctorHandler serves the doctor's own views.
type DoctorHandler struct {
	Directory  *services.Directory
	Dashboards *services.DashboardService
	Schedules  *services.ScheduleService
	Log        *zap.Logger
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(directory *services.Directory, dashboards *services.DashboardService, schedules *services.ScheduleService, log *zap.Logger) *DoctorHandler {
	return &DoctorHandler{Directory: directory, Dashboards: dashboards, Schedules: schedules, Log: log}
}

// GetDashboard returns the doctor's dashboard.
func (h *DoctorHandler) GetDashboard(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	ctx := c.Request.Context()
	doctor, err := h.Directory.DoctorFor(ctx, identity)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	dashboard, err := h.Dashboards.DoctorDashboard(ctx, doctor, h.Dashboards.Now())
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Dashboard fetched successfully", dashboard)
}

// GetSchedule returns the weekly calendar for the week containing ?date=YYYY-MM-DD.
func (h *DoctorHandler) GetSchedule(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	ctx := c.Request.Context()
	doctor, err := h.Directory.DoctorFor(ctx, identity)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	grid, err := h.Schedules.WeekGrid(ctx, doctor, c.Query("date"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedule fetched successfully", grid)
}

// GetPatientSummary returns a patient's contact details and last three
// appointments with the calling doctor.
func (h *DoctorHandler) GetPatientSummary(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	ctx := c.Request.Context()
	doctor, err := h.Directory.DoctorFor(ctx, identity)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	summary, err := h.Dashboards.PatientSummary(ctx, doctor, c.Param("patientId"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Patient summary fetched successfully", summary)
}

// UpdateDoctorProfileRequest is the body of PATCH /doctors/me. Omitted fields
// are left unchanged; an empty departmentId detaches the department.
type UpdateDoctorProfileRequest struct {
	FirstName       *string          `json:"firstName" binding:"omitempty,min=1"`
	LastName        *string          `json:"lastName" binding:"omitempty,min=1"`
	PhoneNumber     *string          `json:"phoneNumber"`
	Specialization  *string          `json:"specialization"`
	LicenseNumber   *string          `json:"licenseNumber"`
	ExperienceYears *int             `json:"experienceYears"`
	ConsultationFee *decimal.Decimal `json:"consultationFee"`
	IsAvailable     *bool            `json:"isAvailable"`
	DepartmentID    *string          `json:"departmentId"`
}

// UpdateProfile changes the calling doctor's profile, including whether they
// accept new bookings.
func (h *DoctorHandler) UpdateProfile(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdateDoctorProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctor, err := h.Directory.UpdateDoctorProfile(c.Request.Context(), identity, services.DoctorProfileUpdate{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PhoneNumber:     req.PhoneNumber,
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
		IsAvailable:     req.IsAvailable,
		DepartmentID:    req.DepartmentID,
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Profile updated successfully", doctor)
}
