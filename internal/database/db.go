package database

import (
	"strings"

	"github.com/JackBerck/guyub-rukun-sub001/internal/config"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqlitePrefix = "sqlite://"

var DB *gorm.DB

// Open picks the dialect from the DSN: "sqlite://<path>" opens SQLite,
// anything else is handed to the PostgreSQL driver.
func Open(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), &gorm.Config{})
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func Connect(cfg *config.Config) {
	var err error

	DB, err = Open(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect database", zap.Error(err))
	}

	logger.Log.Info("Database connected successfully")
}

// AutoMigrate creates or updates the users and messages tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Message{})
}

func Migrate() {
	if err := AutoMigrate(DB); err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}

	logger.Log.Info("Database migration completed")
}
