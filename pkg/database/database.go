package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iterahealth/activation-engine/internal/config"
	"github.com/iterahealth/activation-engine/internal/domain"
	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/pkg/metrics"
)

func Connect(cfg config.DatabaseConfig, collector *metrics.Collector) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := instrument(db, collector); err != nil {
		return nil, fmt.Errorf("registering metrics callbacks: %w", err)
	}
	go func() {
		for range time.Tick(15 * time.Second) {
			collector.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}()

	return db, nil
}

const queryStartKey = "metrics:query_start"

// instrument hangs timing callbacks around gorm's CRUD processors so every
// query lands in the duration histogram, labelled by operation and table.
func instrument(db *gorm.DB, collector *metrics.Collector) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			collector.DBQueryDuration.
				WithLabelValues(op, tx.Statement.Table).
				Observe(time.Since(v.(time.Time)).Seconds())
		}
	}

	if err := db.Callback().Create().Before("gorm:create").Register("metrics:before_create", before); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("metrics:after_create", after("create")); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("metrics:before_query", before); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("metrics:after_query", after("query")); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("metrics:before_update", before); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("metrics:after_update", after("update")); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("metrics:before_delete", before); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("metrics:after_delete", after("delete")); err != nil {
		return err
	}
	return nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"activation", "auth", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&patient.Patient{},
		&caremanager.CareManager{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// Pipeline board groups by status; almost every list query filters on it.
		{
			name:  "idx_patients_status",
			query: `CREATE INDEX IF NOT EXISTS idx_patients_status ON activation.patients (status) WHERE deleted_at IS NULL`,
		},
		// Slot conflict checks scan one care manager's booked appointments.
		{
			name:  "idx_patients_cm_appointment",
			query: `CREATE INDEX IF NOT EXISTS idx_patients_cm_appointment ON activation.patients (care_manager, appointment_date) WHERE deleted_at IS NULL AND appointment_date <> ''`,
		},
		// Patient search: GIN index for fuzzy name/MRN lookup
		{
			name:  "idx_patients_name_search",
			query: `CREATE INDEX IF NOT EXISTS idx_patients_name_trgm ON activation.patients USING gin (name gin_trgm_ops) WHERE deleted_at IS NULL`,
		},
		// Outreach worklist: patients due for a follow-up call.
		{
			name:  "idx_patients_next_call",
			query: `CREATE INDEX IF NOT EXISTS idx_patients_next_call ON activation.patients (next_call_date) WHERE deleted_at IS NULL AND next_call_date <> ''`,
		},
	}

	for _, idx := range indexes {
		_ = db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error

		if err := db.Exec(idx.query).Error; err != nil {
			_ = err
		}
	}

	return nil
}
