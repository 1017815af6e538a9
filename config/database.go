package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andrewpaige1/sysviz-api/models"
)

// Connect opens the database named by dsn and migrates the schema.
// postgres:// URLs use the postgres driver; file:, sqlite:// and :memory:
// use sqlite.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	dialector, memory, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if memory {
		// Every new sqlite connection would get its own empty in-memory database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Workspace{},
		&models.Design{},
		&models.Activity{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto migrate database: %w", err)
	}

	log.Info("Database connected", zap.String("driver", dialector.Name()))
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), false, nil
	case dsn == ":memory:":
		return sqlite.Open("file::memory:"), true, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		return sqlite.Open(path), strings.Contains(path, ":memory:"), nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory"), nil
	default:
		return nil, false, fmt.Errorf("config: unsupported database URL %q", dsn)
	}
}
