package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/config"
	"github.com/iterahealth/activation-engine/internal/domain"
	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
	"github.com/iterahealth/activation-engine/internal/service"
	"github.com/iterahealth/activation-engine/pkg/auth"
	"github.com/iterahealth/activation-engine/pkg/metrics"
)

type RouterDeps struct {
	Config         *config.Config
	Log            *zap.Logger
	Collector      *metrics.Collector
	JWTManager     *auth.JWTManager
	AuthSvc        *service.AuthService
	EligibilitySvc *service.EligibilityService
	ActivationSvc  *service.ActivationService
	IntakeSvc      *service.IntakeService
	ManagerRepo    caremanager.Repository
}

// NewRouter assembles the full HTTP surface: health and metrics endpoints,
// auth, and the versioned API behind JWT middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(deps.Log))
	router.Use(Metrics(deps.Collector))
	router.Use(CORS(deps.Config.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   deps.Config.App.Name,
			"version":   deps.Config.App.Version,
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	authHandler := NewAuthHandler(deps.AuthSvc, deps.Log)
	patientHandler := NewPatientHandler(deps.EligibilitySvc, deps.Collector, deps.Log)
	activationHandler := NewActivationHandler(deps.ActivationSvc, deps.Collector, deps.Log)
	scheduleHandler := NewScheduleHandler(deps.ActivationSvc, deps.ManagerRepo, deps.Log)
	intakeHandler := NewIntakeHandler(deps.IntakeSvc, deps.Collector, deps.Log, deps.Config.Intake.MaxUploadBytes)

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/change-password", Authenticated(deps.JWTManager), authHandler.ChangePassword)
		}

		patients := api.Group("/patients")
		patients.Use(Authenticated(deps.JWTManager))
		{
			patients.GET("", patientHandler.List)
			patients.POST("", patientHandler.Create)
			patients.GET("/:id", patientHandler.Get)
			patients.POST("/:id/evaluate", patientHandler.Evaluate)
			patients.GET("/:id/calls", patientHandler.CallHistory)
			patients.GET("/:id/events", activationHandler.AllowedEvents)

			patients.POST("/:id/reject", activationHandler.Reject)
			patients.POST("/:id/reset", activationHandler.Reset)
			patients.POST("/:id/calls", activationHandler.LogCall)
			patients.POST("/:id/schedule", activationHandler.Schedule)
			patients.POST("/:id/device-shipped", activationHandler.DeviceShipped)
			patients.POST("/:id/activate", activationHandler.Activate)
		}

		// Batch approval is restricted; care managers work the funnel but do
		// not admit patients into it.
		api.POST("/patients/approve",
			Authenticated(deps.JWTManager),
			RequireRole(domain.RoleAdmin, domain.RoleCoordinator),
			activationHandler.Approve,
		)

		managers := api.Group("/care-managers")
		managers.Use(Authenticated(deps.JWTManager))
		{
			managers.GET("", scheduleHandler.ListCareManagers)
			managers.GET("/:id/slots", scheduleHandler.Slots)
		}

		api.POST("/intake/import",
			Authenticated(deps.JWTManager),
			RequireRole(domain.RoleAdmin, domain.RoleCoordinator),
			intakeHandler.Import,
		)
	}

	return router
}
