package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
	"github.com/slotter-org/clinic-voice-scheduler/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// PostgresDSN prefers DATABASE_URL and falls back to the POSTGRES_* variables.
func PostgresDSN(log *logger.Logger) string {
	if dsn := utils.GetEnv("DATABASE_URL", "", log); dsn != "" {
		return dsn
	}
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "clinic", log)
	log.Debug("Environment variables loaded for Postgres",
		"host", postgresHost,
		"port", postgresPort,
		"user", postgresUser,
		"dbname", postgresName,
	)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)
}

func NewPostgresService(dsn string, log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	serviceLog.Info("Attempting to connect to Postgres DB now...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres DB", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres DB: %w", err)
	}
	serviceLog.Info("Successfully Connected to Postgres DB :)")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension :(", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	serviceLog.Info("uuid-ossp extension enabled or already exists :)")

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Starting AutoMigrateAll for all GORM models now...")

	err := s.db.AutoMigrate(
		&types.User{},
		&types.Appointment{},
		&types.SessionRecord{},
		&types.ChatMessage{},
	)
	if err != nil {
		s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
		return err
	}
	s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

	// At most one booked appointment may hold a slot. Cancelled rows keep
	// their time so history survives.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS "ux_appointments_booked_time"
		ON "appointments" ("appointment_time")
		WHERE "status" = 'booked'
	`).Error; err != nil {
		return fmt.Errorf("failed to add ux_appointments_booked_time: %w", err)
	}

	s.log.Info("Configuring Foreign Key Relationships for Base Tables now...")
	constraints := []struct {
		table string
		name  string
		body  string
	}{
		{"session_memory", "fk_session_memory_user_id", `FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE SET NULL`},
		{"messages", "fk_messages_user_id", `FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
		{"appointments", "fk_appointments_contact_number", `FOREIGN KEY ("contact_number") REFERENCES "users"("contact_number") ON DELETE RESTRICT`},
	}
	for _, c := range constraints {
		stmt := fmt.Sprintf(`ALTER TABLE %q DROP CONSTRAINT IF EXISTS %q, ADD CONSTRAINT %q %s`, c.table, c.name, c.name, c.body)
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	s.log.Info("Successfully Added Foreign Key Relationships to Base Tables :)")

	return nil
}

// Ping checks connectivity within ctx.
func (s *PostgresService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
