package client

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"checkout-core/internal/config"
	"checkout-core/internal/model"
)

func InitDB(cfg *config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "mysql":
		dialector = mysql.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Product{},
		&model.Plan{},
		&model.Coupon{},
		&model.CouponProduct{},
		&model.CouponCategory{},
		&model.CouponUsage{},
		&model.Membership{},
		&model.Address{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Subscription{},
		&model.SubscriptionItem{},
		&model.PostponementRequest{},
		&model.WebhookEvent{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}
