package handlers

import (
	"strings"

	"ehospital-server/internal/models"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	Directory *services.Directory
	Log       *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(directory *services.Directory, log *zap.Logger) *UserHandler {
	return &UserHandler{Directory: directory, Log: log}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	FirstName       string           `json:"firstName" binding:"required"`
	LastName        string           `json:"lastName" binding:"required"`
	Email           string           `json:"email" binding:"required,email"`
	Password        string           `json:"password" binding:"required,min=8"`
	Role            string           `json:"role" binding:"required,oneof=patient doctor admin"`
	PhoneNumber     string           `json:"phoneNumber"`
	Specialization  string           `json:"specialization"`
	ConsultationFee *decimal.Decimal `json:"consultationFee"`
	DepartmentID    *string          `json:"departmentId"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Directory.RegisterUser(c.Request.Context(), services.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		Role:            models.Role(strings.ToLower(req.Role)),
		PhoneNumber:     req.PhoneNumber,
		Specialization:  req.Specialization,
		ConsultationFee: req.ConsultationFee,
		DepartmentID:    req.DepartmentID,
	})
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers handles fetching a page of users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	page, err := h.Directory.ListUsers(c.Request.Context(), services.ParsePage(c.Query("page")))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Users fetched successfully", page)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.Directory.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// DeleteUser deletes a user together with their profile and appointments (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.Directory.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "User deleted successfully", nil)
}

// GetDoctors lists doctors for booking. Pass available=true to hide doctors
// who are not accepting appointments.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Directory.ListDoctors(c.Request.Context(), c.Query("available") == "true")
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// GetAdminStats returns headline counts for the admin dashboard.
func (h *UserHandler) GetAdminStats(c *gin.Context) {
	stats, err := h.Directory.AdminStats(c.Request.Context())
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}
	utils.Success(c, "Stats fetched successfully", stats)
}
