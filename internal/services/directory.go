package services

import (
	"context"
	"errors"
	"strings"

	"ehospital-server/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Directory resolves identities and their doctor/patient profiles.
type Directory struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// NewDirectory creates a new Directory.
func NewDirectory(db *gorm.DB, log *zap.Logger) *Directory {
	return &Directory{DB: db, Log: log}
}

// RegisterInput is what registration completion needs to create a usable account.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	Role            models.Role
	PhoneNumber     string
	Specialization  string
	ConsultationFee *decimal.Decimal
	DepartmentID    *string
}

const registerAttempts = 3

// RegisterUser creates the user together with its role profile, so that every
// doctor or patient identity has a profile before any dashboard is reachable.
func (d *Directory) RegisterUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, ValidationError("Email and password are required.")
	}
	if !in.Role.Valid() {
		return nil, ValidationError("Role must be one of patient, doctor or admin.")
	}

	var existing int64
	if err := d.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		d.Log.Error("directory.register.lookup_failed", zap.Error(err))
		return nil, InternalError(err)
	}
	if existing > 0 {
		return nil, ValidationError("User with this email already exists.")
	}

	user := &models.User{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       in.Email,
		Role:        in.Role,
		PhoneNumber: in.PhoneNumber,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, InternalError(err)
	}

	// Profile numbers come from MAX(number)+1; a concurrent registration can take
	// the same number, in which case the unique index rejects us and we retry.
	var err error
	for attempt := 0; attempt < registerAttempts; attempt++ {
		user.ID = ""
		err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(user).Error; err != nil {
				return err
			}
			return createProfile(tx, user, in)
		})
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ConflictError("Registration could not be completed. Please try again.")
		}
		d.Log.Error("directory.register.failed", zap.String("email", in.Email), zap.Error(err))
		return nil, InternalError(err)
	}

	d.Log.Info("directory.register.completed", zap.String("userId", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func createProfile(tx *gorm.DB, user *models.User, in RegisterInput) error {
	switch user.Role {
	case models.RoleDoctor:
		number, err := nextProfileNumber(tx, &models.Doctor{})
		if err != nil {
			return err
		}
		fee := models.DefaultConsultationFee
		if in.ConsultationFee != nil {
			fee = *in.ConsultationFee
		}
		specialization := strings.TrimSpace(in.Specialization)
		if specialization == "" {
			specialization = "General Medicine"
		}
		return tx.Create(&models.Doctor{
			UserID:          user.ID,
			Number:          number,
			Code:            models.ProfileCode(models.DoctorCodePrefix, number),
			Specialization:  specialization,
			ExperienceYears: 1,
			ConsultationFee: fee,
			DepartmentID:    in.DepartmentID,
			IsAvailable:     true,
		}).Error
	case models.RolePatient:
		number, err := nextProfileNumber(tx, &models.Patient{})
		if err != nil {
			return err
		}
		return tx.Create(&models.Patient{
			UserID: user.ID,
			Number: number,
			Code:   models.ProfileCode(models.PatientCodePrefix, number),
		}).Error
	}
	return nil
}

func nextProfileNumber(tx *gorm.DB, model interface{}) (int, error) {
	var max int
	if err := tx.Model(model).Select("COALESCE(MAX(number), 0)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

// GetIdentity looks up the directory identity for a user id.
func (d *Directory) GetIdentity(ctx context.Context, userID string) (models.Identity, error) {
	var user models.User
	if err := d.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return models.Identity{}, d.lookupError(err, "User not found.")
	}
	return user.Identity(), nil
}

// DoctorFor resolves the doctor profile of a doctor identity.
func (d *Directory) DoctorFor(ctx context.Context, identity models.Identity) (*models.Doctor, error) {
	if identity.Role != models.RoleDoctor {
		return nil, ForbiddenError("Access denied. Doctors only.")
	}
	var doctor models.Doctor
	if err := d.DB.WithContext(ctx).Preload("User").First(&doctor, "user_id = ?", identity.UserID).Error; err != nil {
		return nil, d.lookupError(err, "Doctor profile not found.")
	}
	return &doctor, nil
}

// PatientFor resolves the patient profile of a patient identity.
func (d *Directory) PatientFor(ctx context.Context, identity models.Identity) (*models.Patient, error) {
	if identity.Role != models.RolePatient {
		return nil, ForbiddenError("Access denied. Patients only.")
	}
	var patient models.Patient
	if err := d.DB.WithContext(ctx).Preload("User").First(&patient, "user_id = ?", identity.UserID).Error; err != nil {
		return nil, d.lookupError(err, "Patient profile not found.")
	}
	return &patient, nil
}

// FindDoctor loads a doctor profile by id.
func (d *Directory) FindDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := d.DB.WithContext(ctx).Preload("User").First(&doctor, "id = ?", id).Error; err != nil {
		return nil, d.lookupError(err, "Selected doctor does not exist.")
	}
	return &doctor, nil
}

// FindPatient loads a patient profile by id.
func (d *Directory) FindPatient(ctx context.Context, id string) (*models.Patient, error) {
	var patient models.Patient
	if err := d.DB.WithContext(ctx).Preload("User").First(&patient, "id = ?", id).Error; err != nil {
		return nil, d.lookupError(err, "Selected patient does not exist.")
	}
	return &patient, nil
}

// ListDoctors returns doctor profiles, optionally only those accepting bookings.
func (d *Directory) ListDoctors(ctx context.Context, onlyAvailable bool) ([]models.Doctor, error) {
	query := d.DB.WithContext(ctx).Preload("User").Preload("Department")
	if onlyAvailable {
		query = query.Where("is_available = ?", true)
	}
	var doctors []models.Doctor
	if err := query.Order("code asc").Find(&doctors).Error; err != nil {
		d.Log.Error("directory.list_doctors.failed", zap.Error(err))
		return nil, InternalError(err)
	}
	return doctors, nil
}

// DoctorProfileUpdate carries the fields a doctor may change on their own
// profile. Nil fields are left as they are.
type DoctorProfileUpdate struct {
	FirstName       *string
	LastName        *string
	PhoneNumber     *string
	Specialization  *string
	LicenseNumber   *string
	ExperienceYears *int
	ConsultationFee *decimal.Decimal
	IsAvailable     *bool
	DepartmentID    *string
}

// UpdateDoctorProfile applies in to the doctor profile of identity and its user.
// Turning IsAvailable off stops new bookings; existing appointments are kept.
func (d *Directory) UpdateDoctorProfile(ctx context.Context, identity models.Identity, in DoctorProfileUpdate) (*models.Doctor, error) {
	doctor, err := d.DoctorFor(ctx, identity)
	if err != nil {
		return nil, err
	}

	doctorColumns := map[string]interface{}{}
	if in.Specialization != nil {
		specialization := strings.TrimSpace(*in.Specialization)
		if specialization == "" {
			specialization = "General Medicine"
		}
		doctorColumns["specialization"] = specialization
	}
	if in.LicenseNumber != nil {
		doctorColumns["license_number"] = strings.TrimSpace(*in.LicenseNumber)
	}
	if in.ExperienceYears != nil {
		if *in.ExperienceYears < 0 {
			return nil, ValidationError("Experience years cannot be negative.")
		}
		doctorColumns["experience_years"] = *in.ExperienceYears
	}
	if in.ConsultationFee != nil {
		if in.ConsultationFee.IsNegative() {
			return nil, ValidationError("Consultation fee cannot be negative.")
		}
		doctorColumns["consultation_fee"] = *in.ConsultationFee
	}
	if in.IsAvailable != nil {
		doctorColumns["is_available"] = *in.IsAvailable
	}
	if in.DepartmentID != nil {
		if *in.DepartmentID == "" {
			doctorColumns["department_id"] = nil
		} else {
			var count int64
			if err := d.DB.WithContext(ctx).Model(&models.Department{}).Where("id = ?", *in.DepartmentID).Count(&count).Error; err != nil {
				return nil, InternalError(err)
			}
			if count == 0 {
				return nil, NotFoundError("Department not found.")
			}
			doctorColumns["department_id"] = *in.DepartmentID
		}
	}

	userColumns := map[string]interface{}{}
	if in.FirstName != nil {
		userColumns["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		userColumns["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.PhoneNumber != nil {
		userColumns["phone_number"] = strings.TrimSpace(*in.PhoneNumber)
	}

	err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(doctorColumns) > 0 {
			if err := tx.Model(&models.Doctor{}).Where("id = ?", doctor.ID).Updates(doctorColumns).Error; err != nil {
				return err
			}
		}
		if len(userColumns) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", doctor.UserID).Updates(userColumns).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		d.Log.Error("directory.update_doctor.failed", zap.String("doctorId", doctor.ID), zap.Error(err))
		return nil, InternalError(err)
	}

	d.Log.Info("directory.doctor_updated", zap.String("doctorId", doctor.ID), zap.Int("fields", len(doctorColumns)+len(userColumns)))
	return d.DoctorFor(ctx, identity)
}

// ListUsers pages through all users, newest first.
func (d *Directory) ListUsers(ctx context.Context, page int) (Page[models.UserSanitized], error) {
	users, err := paginate[models.User](d.DB.WithContext(ctx).Model(&models.User{}), "created_at desc", page, AdminPageSize)
	if err != nil {
		d.Log.Error("directory.list_users.failed", zap.Error(err))
		return Page[models.UserSanitized]{}, InternalError(err)
	}
	out := Page[models.UserSanitized]{
		Items:       make([]models.UserSanitized, len(users.Items)),
		Page:        users.Page,
		PageSize:    users.PageSize,
		TotalItems:  users.TotalItems,
		TotalPages:  users.TotalPages,
		HasNext:     users.HasNext,
		HasPrevious: users.HasPrevious,
	}
	for i := range users.Items {
		out.Items[i] = users.Items[i].Sanitize()
	}
	return out, nil
}

// GetUser loads one user.
func (d *Directory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := d.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, d.lookupError(err, "User not found.")
	}
	return &user, nil
}

// DeleteUser removes a user and everything it owns: its profile, the
// appointments, records and prescriptions that profile takes part in,
// payments and refresh tokens.
func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	user, err := d.GetUser(ctx, id)
	if err != nil {
		return err
	}

	err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doctorIDs, patientIDs []string
		if err := tx.Model(&models.Doctor{}).Where("user_id = ?", user.ID).Pluck("id", &doctorIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Patient{}).Where("user_id = ?", user.ID).Pluck("id", &patientIDs).Error; err != nil {
			return err
		}

		if len(doctorIDs) > 0 {
			if err := tx.Where("doctor_id IN ?", doctorIDs).Delete(&models.Payment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("doctor_id IN ?", doctorIDs).Delete(&models.Appointment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("doctor_id IN ?", doctorIDs).Delete(&models.MedicalRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("doctor_id IN ?", doctorIDs).Delete(&models.Prescription{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", doctorIDs).Delete(&models.Doctor{}).Error; err != nil {
				return err
			}
		}
		if len(patientIDs) > 0 {
			if err := tx.Where("appointment_id IN (?)",
				tx.Model(&models.Appointment{}).Select("id").Where("patient_id IN ?", patientIDs),
			).Delete(&models.Payment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("patient_id IN ?", patientIDs).Delete(&models.Appointment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("patient_id IN ?", patientIDs).Delete(&models.MedicalRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("patient_id IN ?", patientIDs).Delete(&models.Prescription{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", patientIDs).Delete(&models.Patient{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		d.Log.Error("directory.delete_user.failed", zap.String("userId", id), zap.Error(err))
		return InternalError(err)
	}
	return nil
}

// AdminStats are the headline counts on the admin dashboard.
type AdminStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalPatients     int64 `json:"totalPatients"`
	TotalDoctors      int64 `json:"totalDoctors"`
	TotalAppointments int64 `json:"totalAppointments"`
	TotalDepartments  int64 `json:"totalDepartments"`
}

// AdminStats counts the main tables.
func (d *Directory) AdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	db := d.DB.WithContext(ctx)
	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.User{}, &stats.TotalUsers},
		{&models.Patient{}, &stats.TotalPatients},
		{&models.Doctor{}, &stats.TotalDoctors},
		{&models.Appointment{}, &stats.TotalAppointments},
		{&models.Department{}, &stats.TotalDepartments},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dest).Error; err != nil {
			d.Log.Error("directory.admin_stats.failed", zap.Error(err))
			return AdminStats{}, InternalError(err)
		}
	}
	return stats, nil
}

func (d *Directory) lookupError(err error, notFoundMessage string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(notFoundMessage)
	}
	d.Log.Error("directory.lookup.failed", zap.Error(err))
	return InternalError(err)
}
