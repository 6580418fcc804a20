package handlers

import (
	"errors"
	"strings"
	"time"

	"ehospital-server/internal/config"
	"ehospital-server/internal/middleware"
	"ehospital-server/internal/models"
	"ehospital-server/internal/services"
	"ehospital-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB        *gorm.DB
	Cfg       *config.Config
	Directory *services.Directory
	Log       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, directory *services.Directory, log *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Directory: directory, Log: log}
}

// RegisterRequest represents the request body for user registration.
// Admin accounts are only created by other admins.
type RegisterRequest struct {
	FirstName       string           `json:"firstName" binding:"required"`
	LastName        string           `json:"lastName" binding:"required"`
	Email           string           `json:"email" binding:"required,email"`
	Password        string           `json:"password" binding:"required,min=8"`
	Role            string           `json:"role" binding:"required,oneof=patient doctor"`
	PhoneNumber     string           `json:"phoneNumber"`
	Specialization  string           `json:"specialization"`
	ConsultationFee *decimal.Decimal `json:"consultationFee"`
	DepartmentID    *string          `json:"departmentId"`
}

func (r RegisterRequest) input() services.RegisterInput {
	return services.RegisterInput{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		Password:        r.Password,
		Role:            models.Role(strings.ToLower(r.Role)),
		PhoneNumber:     r.PhoneNumber,
		Specialization:  r.Specialization,
		ConsultationFee: r.ConsultationFee,
		DepartmentID:    r.DepartmentID,
	}
}

// Register handles user registration. The role profile is created with the
// user, so the account is usable as soon as this returns.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Directory.RegisterUser(c.Request.Context(), req.input())
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.HandleError(c, h.Log, err)
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, &user)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	h.Log.Info("auth.login", zap.String("userId", user.ID), zap.String("role", string(user.Role)))
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// issueTokens signs a token pair, stores the refresh token and sets its cookie.
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (string, string, error) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		return "", "", err
	}

	stored := models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&stored).Error; err != nil {
		return "", "", err
	}

	c.SetCookie(refreshCookie, refreshToken, h.Cfg.JWTRefreshExpirationHours*60*60, "/", "", !h.Cfg.IsDevelopment(), true)
	return accessToken, refreshToken, nil
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// new pair is issued.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	presented, err := c.Cookie(refreshCookie)
	if err != nil || presented == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		presented = req.RefreshToken
	}

	claims, err := utils.ValidateToken(presented, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	ctx := c.Request.Context()
	var stored models.RefreshToken
	err = h.DB.WithContext(ctx).
		Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?", presented, claims.UserID, false, time.Now()).
		First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			utils.HandleError(c, h.Log, err)
		}
		return
	}

	user, err := h.Directory.GetUser(ctx, claims.UserID)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	if err := h.DB.WithContext(ctx).Model(&stored).Update("is_revoked", true).Error; err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, user)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the presented refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result := h.DB.WithContext(c.Request.Context()).
		Model(&models.RefreshToken{}).
		Where("token = ? AND is_revoked = ?", req.RefreshToken, false).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": time.Now()})
	if result.Error != nil {
		utils.HandleError(c, h.Log, result.Error)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", !h.Cfg.IsDevelopment(), true)

	if result.RowsAffected == 0 {
		utils.Success(c, "Logout successful (token not found or already invalid).", nil)
		return
	}
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// ProfileResponse is the caller's account plus their role profile, if any.
type ProfileResponse struct {
	User    models.UserSanitized `json:"user"`
	Doctor  *models.Doctor       `json:"doctor,omitempty"`
	Patient *models.Patient      `json:"patient,omitempty"`
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	ctx := c.Request.Context()
	user, err := h.Directory.GetUser(ctx, identity.UserID)
	if err != nil {
		utils.HandleError(c, h.Log, err)
		return
	}

	resp := ProfileResponse{User: user.Sanitize()}
	switch identity.Role {
	case models.RoleDoctor:
		if resp.Doctor, err = h.Directory.DoctorFor(ctx, identity); err != nil {
			utils.HandleError(c, h.Log, err)
			return
		}
	case models.RolePatient:
		if resp.Patient, err = h.Directory.PatientFor(ctx, identity); err != nil {
			utils.HandleError(c, h.Log, err)
			return
		}
	}

	utils.Success(c, "Profile fetched successfully", resp)
}
