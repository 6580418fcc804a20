package handlers

import (
	"ehospital-server/internal/middleware"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MedicalRecordHandler handles medical record and prescription requests.
type MedicalRecordHandler struct {
	Records *services.RecordService
	Log     *zap.Logger
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(records *services.RecordService, log *zap.Logger) *MedicalRecordHandler {
	return &MedicalRecordHandler{Records: records, Log: log}
}

// CreateMedicalRecordRequest represents the request body for creating a medical record.
type CreateMedicalRecordRequest struct {
	PatientID      string `json:"patientId" binding:"required,uuid"`
	RecordType     string `json:"recordType"`
	RecordDate     string `json:"recordDate"` // RFC3339, defaults to now
	Title          string `json:"title" binding:"required"`
	Diagnosis      string `json:"diagnosis" binding:"required"`
	Symptoms       string `json:"symptoms"`
	TreatmentNotes string `json:"treatmentNotes"`
	Medications    string `json:"medications"`
	FollowUpDate   string `json:"followUpDate"` // YYYY-MM-DD
}

// CreatePrescriptionRequest represents the request body for issuing a prescription.
type CreatePrescriptionRequest struct {
	PatientID    string `json:"patientId" binding:"required,uuid"`
	Medications  string `json:"medications" binding:"required"`
	Dosage       string `json:"dosage" binding:"required"`
	Instructions string `json:"instructions" binding:"required"`
	Diagnosis    string `json:"diagnosis"`
}

// CreateMedicalRecord records a note about one of the doctor's patients.
func (h *MedicalRecordHandler) CreateMedicalRecord(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req CreateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	record, err := h.Records.CreateMedicalRecord(c.Request.Context(), identity, services.CreateMedicalRecordInput{
		PatientID:      req.PatientID,
		RecordType:     req.RecordType,
		RecordDate:     req.RecordDate,
		Title:          req.Title,
		Diagnosis:      req.Diagnosis,
		Symptoms:       req.Symptoms,
		TreatmentNotes: req.TreatmentNotes,
		Medications:    req.Medications,
		FollowUpDate:   req.FollowUpDate,
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Created(c, "Medical record created successfully", record)
}

// CreatePrescription issues a prescription.
func (h *MedicalRecordHandler) CreatePrescription(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req CreatePrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	prescription, err := h.Records.CreatePrescription(c.Request.Context(), identity, services.CreatePrescriptionInput{
		PatientID:    req.PatientID,
		Medications:  req.Medications,
		Dosage:       req.Dosage,
		Instructions: req.Instructions,
		Diagnosis:    req.Diagnosis,
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Created(c, "Prescription created successfully", prescription)
}

// GetDoctorRecords lists the records the doctor wrote. Query parameters: patientId, page.
func (h *MedicalRecordHandler) GetDoctorRecords(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, err := h.Records.DoctorRecords(c.Request.Context(), identity, c.Query("patientId"), c.Query("page"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Medical records fetched successfully", page)
}

// GetDoctorPrescriptions lists the prescriptions the doctor issued. Query parameters: patientId, page.
func (h *MedicalRecordHandler) GetDoctorPrescriptions(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, err := h.Records.DoctorPrescriptions(c.Request.Context(), identity, c.Query("patientId"), c.Query("page"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Prescriptions fetched successfully", page)
}

// GetPatientRecords lists the calling patient's records.
func (h *MedicalRecordHandler) GetPatientRecords(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, err := h.Records.PatientRecords(c.Request.Context(), identity, c.Query("page"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Medical records fetched successfully", page)
}

// GetPatientPrescriptions lists the calling patient's prescriptions.
func (h *MedicalRecordHandler) GetPatientPrescriptions(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, err := h.Records.PatientPrescriptions(c.Request.Context(), identity, c.Query("page"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Prescriptions fetched successfully", page)
}
