package config

import (
	"fmt"

	"github.com/mawulik/togomart/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection and runs migrations.
func InitDB(config *Config) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	DB = db

	err = DB.AutoMigrate(
		&models.User{},
		&models.ShippingMethod{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}

	if err := EnsureLivePaymentIndex(DB); err != nil {
		panic(fmt.Sprintf("Failed to create live payment index: %v", err))
	}
}

// EnsureLivePaymentIndex enforces at most one payment per order outside the
// failed/cancelled states. GORM tags cannot express a partial unique index,
// so it is created with raw SQL after AutoMigrate. Concurrent initiations
// hitting this constraint are translated into a domain conflict by the
// payment service.
func EnsureLivePaymentIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_live_per_order
		ON payments (order_id)
		WHERE status NOT IN ('failed', 'cancelled')
	`).Error
}
