package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BayanLab/Backbone/internal/models"
)

// Connect opens the Postgres store the batch jobs write to. The handle is
// passed into each component constructor; there is no package-level DB.
func Connect(dsn string) (*gorm.DB, error) {
	// Surface slow queries in batch-job logs.
	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: lg,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}

	// Pool defaults sized for a single batch process.
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

// Migrate brings the staging, canonical, and metadata tables up to date.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.StagingEvent{},
		&models.StagingBusiness{},
		&models.Event{},
		&models.Business{},
		&models.BuildMetadata{},
	)
}
