package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iterahealth/activation-engine/internal/config"
	"github.com/iterahealth/activation-engine/internal/domain"
	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
	"github.com/iterahealth/activation-engine/internal/domain/patient"
	v1 "github.com/iterahealth/activation-engine/internal/handler/v1"
	"github.com/iterahealth/activation-engine/internal/notify"
	"github.com/iterahealth/activation-engine/internal/repository/memory"
	"github.com/iterahealth/activation-engine/internal/repository/postgres"
	"github.com/iterahealth/activation-engine/internal/service"
	"github.com/iterahealth/activation-engine/pkg/auth"
	"github.com/iterahealth/activation-engine/pkg/database"
	"github.com/iterahealth/activation-engine/pkg/logger"
	"github.com/iterahealth/activation-engine/pkg/metrics"
	"github.com/iterahealth/activation-engine/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting activation engine",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
		zap.Bool("database", cfg.Database.Enabled),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		log.Fatal("initializing tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("activation_engine")

	var (
		patientRepo patient.Repository
		managerRepo caremanager.Repository
		userRepo    service.UserRepository
		auditRepo   service.AuditRepository
	)

	if cfg.Database.Enabled {
		db, err := database.Connect(cfg.Database, collector)
		if err != nil {
			log.Fatal("connecting to database", zap.Error(err))
		}
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("migrating database", zap.Error(err))
		}

		patientRepo = postgres.NewPatientRepository(db)
		managerRepo = postgres.NewCareManagerRepository(db)
		userRepo = postgres.NewUserRepository(db)
		auditRepo = postgres.NewAuditRepository(db)
	} else {
		memPatients := memory.NewPatientRepository()
		memManagers := memory.NewCareManagerRepository()
		memManagers.Seed(memory.DefaultRoster())
		memUsers := memory.NewUserRepository()
		seedDevAdmin(memUsers, log)

		patientRepo = memPatients
		managerRepo = memManagers
		userRepo = memUsers
		auditRepo = memory.NewAuditRepository()
	}

	jwtManager := auth.NewJWTManager(cfg.JWT)

	auditSvc := service.NewAuditService(auditRepo, collector, log)
	defer auditSvc.Shutdown()

	authSvc := service.NewAuthService(userRepo, jwtManager, log)
	eligibilitySvc := service.NewEligibilityService(patientRepo, auditSvc, log)
	activationSvc := service.NewActivationService(
		patientRepo,
		managerRepo,
		auditSvc,
		notify.NewLogNotifier(log),
		cfg.Intake.DefaultCareManager,
		log,
	)
	intakeSvc := service.NewIntakeService(eligibilitySvc, auditSvc, log)

	router := v1.NewRouter(v1.RouterDeps{
		Config:         cfg,
		Log:            log,
		Collector:      collector,
		JWTManager:     jwtManager,
		AuthSvc:        authSvc,
		EligibilitySvc: eligibilitySvc,
		ActivationSvc:  activationSvc,
		IntakeSvc:      intakeSvc,
		ManagerRepo:    managerRepo,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	log.Info("stopped")
}

// seedDevAdmin creates a bootstrap admin when running against the in-memory
// store, which starts empty. Controlled by ADMIN_EMAIL / ADMIN_PASSWORD;
// without both, no account is seeded and only unauthenticated endpoints work.
func seedDevAdmin(users *memory.UserRepository, log *zap.Logger) {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn("no bootstrap admin configured; set ADMIN_EMAIL and ADMIN_PASSWORD")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("hashing bootstrap admin password", zap.Error(err))
		return
	}

	if err := users.Create(context.Background(), &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Name:         "Bootstrap Admin",
		IsActive:     true,
	}); err != nil {
		log.Error("seeding bootstrap admin", zap.Error(err))
		return
	}

	log.Info("bootstrap admin seeded", zap.String("email", email))
}
