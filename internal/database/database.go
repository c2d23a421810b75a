package database

import (
	"fmt"
	"log"
	"time"

	"lifelink-backend/internal/config"
	"lifelink-backend/internal/models"
	"lifelink-backend/pkg/utils"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect initializes and returns a GORM database connection
func Connect(cfg *config.Config) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.GinMode == "release" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})

	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Successfully connected to database")

	return db
}

// Migrate runs auto-migration for all tables
func Migrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.ResourceEntry{},
		&models.Rejection{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}

// SeedAdmin creates the bootstrap admin account if it does not exist yet.
// Skipped when no admin password is configured.
func SeedAdmin(db *gorm.DB, cfg *config.Config) {
	if cfg.Admin.Password == "" {
		return
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", cfg.Admin.Email).Count(&count)
	if count > 0 {
		return
	}

	hash, err := utils.HashPassword(cfg.Admin.Password)
	if err != nil {
		log.Printf("Warning: failed to hash admin password: %v", err)
		return
	}

	admin := &models.User{
		Name:         "Administrator",
		Email:        cfg.Admin.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		log.Printf("Warning: failed to seed admin account: %v", err)
		return
	}
	log.Printf("Seeded admin account %s", cfg.Admin.Email)
}
