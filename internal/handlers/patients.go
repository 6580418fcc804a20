package handlers

import (
	"ehospital-server/internal/middleware"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PatientHandler serves the patient's own views.
type PatientHandler struct {
	Directory  *services.Directory
	Dashboards *services.DashboardService
	Log        *zap.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(directory *services.Directory, dashboards *services.DashboardService, log *zap.Logger) *PatientHandler {
	return &PatientHandler{Directory: directory, Dashboards: dashboards, Log: log}
}

// GetDashboard returns recent appointments and the next visit.
func (h *PatientHandler) GetDashboard(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	ctx := c.Request.Context()
	patient, err := h.Directory.PatientFor(ctx, identity)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	dashboard, err := h.Dashboards.PatientDashboard(ctx, patient, h.Dashboards.Now())
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Dashboard fetched successfully", dashboard)
}
