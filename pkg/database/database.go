package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/config"
	applogger "github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
)

var db *gorm.DB

// Models returns every persisted model, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.Business{},
		&model.User{},
		&model.AccessToken{},
		&model.RefreshToken{},
		&model.Client{},
		&model.Project{},
		&model.Invoice{},
		&model.ChatRoom{},
		&model.ChatParticipant{},
		&model.ChatMessage{},
		&model.Notification{},
		&model.Lead{},
		&model.Task{},
	}
}

// InitDB initializes the database connection and runs migrations
func InitDB(cfg *config.Config) error {
	var logLevel gormlogger.LogLevel
	if cfg.Server.Env == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	// Override log level if explicitly set in config
	switch cfg.Database.LogLevel {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "warn":
		logLevel = gormlogger.Warn
	case "info":
		logLevel = gormlogger.Info
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	pgConfig := postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	var err error
	db, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log := applogger.GetLogger()

	start := time.Now()
	log.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	log.Info("Database migration completed",
		zap.Duration("duration", time.Since(start)))

	return nil
}

// GetDB returns a reference to the database instance
func GetDB() *gorm.DB {
	return db
}

// Use replaces the database instance. Tests use this to point the
// handlers at an in-memory database.
func Use(conn *gorm.DB) {
	db = conn
}
