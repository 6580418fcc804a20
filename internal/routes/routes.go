package routes

import (
	"net/http"

	"ehospital-server/internal/config"
	"ehospital-server/internal/events"
	"ehospital-server/internal/handlers"
	"ehospital-server/internal/middleware"
	"ehospital-server/internal/models"
	"ehospital-server/internal/payments"
	"ehospital-server/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles the application services shared by the handlers.
type Services struct {
	Directory    *services.Directory
	Appointments *services.AppointmentService
	Schedules    *services.ScheduleService
	Dashboards   *services.DashboardService
	Payments     *services.PaymentService
	Records      *services.RecordService
}

// NewServices wires the services over one database handle.
func NewServices(db *gorm.DB, cfg *config.Config, gateway payments.Gateway, publisher events.Publisher, log *zap.Logger) *Services {
	directory := services.NewDirectory(db, log)
	appointments := services.NewAppointmentService(db, directory, publisher, cfg.Location, log)
	return &Services{
		Directory:    directory,
		Appointments: appointments,
		Schedules:    services.NewScheduleService(db, cfg.Location, log),
		Dashboards:   services.NewDashboardService(db, directory, cfg.Location, log),
		Payments:     services.NewPaymentService(db, gateway, directory, appointments, cfg.Payment.Currency, log),
		Records:      services.NewRecordService(db, directory, cfg.Location, log),
	}
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, svc *Services, log *zap.Logger) {
	authHandler := handlers.NewAuthHandler(db, cfg, svc.Directory, log)
	userHandler := handlers.NewUserHandler(svc.Directory, log)
	appointmentHandler := handlers.NewAppointmentHandler(svc.Appointments, log)
	doctorHandler := handlers.NewDoctorHandler(svc.Directory, svc.Dashboards, svc.Schedules, log)
	patientHandler := handlers.NewPatientHandler(svc.Directory, svc.Dashboards, log)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments, log)
	recordHandler := handlers.NewMedicalRecordHandler(svc.Records, log)

	// One bucket set per route group.
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		authRoutes.Use(authLimiter.Middleware())
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		// Called by the gateway's checkout; authenticated by signature.
		public.POST("/payments/callback", paymentHandler.PaymentCallback)
	}

	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/doctors", userHandler.GetDoctors)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RequireRole(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		private.GET("/admin/stats", middleware.RequireRole(models.RoleAdmin), userHandler.GetAdminStats)

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("",
				middleware.RequireRole(models.RolePatient, models.RoleDoctor, models.RoleAdmin),
				bookingLimiter.Middleware(),
				appointmentHandler.CreateAppointment,
			)
			// Scoped by role inside the service
			appointmentRoutes.GET("", appointmentHandler.ListAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)

			appointmentRoutes.POST("/:id/complete", middleware.RequireRole(models.RoleDoctor, models.RoleAdmin), appointmentHandler.CompleteAppointment)
			appointmentRoutes.POST("/:id/no-show", middleware.RequireRole(models.RoleDoctor, models.RoleAdmin), appointmentHandler.MarkNoShow)
			appointmentRoutes.POST("/:id/cancel", middleware.RequireRole(models.RolePatient, models.RoleDoctor, models.RoleAdmin), appointmentHandler.CancelAppointment)
		}

		doctorRoutes := private.Group("/doctors/me")
		doctorRoutes.Use(middleware.RequireRole(models.RoleDoctor))
		{
			doctorRoutes.PATCH("", doctorHandler.UpdateProfile)
			doctorRoutes.GET("/dashboard", doctorHandler.GetDashboard)
			doctorRoutes.GET("/schedule", doctorHandler.GetSchedule)
			doctorRoutes.GET("/patients/:patientId/summary", doctorHandler.GetPatientSummary)

			doctorRoutes.POST("/records", recordHandler.CreateMedicalRecord)
			doctorRoutes.GET("/records", recordHandler.GetDoctorRecords)
			doctorRoutes.POST("/prescriptions", recordHandler.CreatePrescription)
			doctorRoutes.GET("/prescriptions", recordHandler.GetDoctorPrescriptions)
		}

		patientRoutes := private.Group("/patients/me")
		patientRoutes.Use(middleware.RequireRole(models.RolePatient))
		{
			patientRoutes.GET("/dashboard", patientHandler.GetDashboard)
			patientRoutes.GET("/records", recordHandler.GetPatientRecords)
			patientRoutes.GET("/prescriptions", recordHandler.GetPatientPrescriptions)
		}

		paymentRoutes := private.Group("/payments")
		paymentRoutes.Use(middleware.RequireRole(models.RolePatient))
		{
			paymentRoutes.POST("/appointments/:id", paymentHandler.InitiatePayment)
			paymentRoutes.GET("", paymentHandler.GetPaymentHistory)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
