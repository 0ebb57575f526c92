// Package bootstrap wires the process-level dependencies shared by the
// server and the maintenance commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sprout/internal/auth"
	"sprout/internal/cache"
	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/mailer"
	"sprout/internal/middleware"
	"sprout/internal/models"
	"sprout/internal/payment"
	"sprout/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
	// SeedDemo fills an empty database with demo content.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis, applies the schema and
// runs the optional bootstrap steps. A nil Redis client means caching and
// token revocation are disabled.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if _, err := database.ConnectReplica(cfg); err != nil {
		return nil, nil, err
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureBootstrapAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(db, cfg); err != nil {
			return nil, nil, err
		}
	}

	return db, r, nil
}

func seedIfEmpty(db *gorm.DB, cfg *config.Config) error {
	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if users > 0 {
		return nil
	}
	if err := seed.Seed(db, seed.Options{NumUsers: 20, NumPosts: 60, BcryptCost: cfg.BcryptCost, PremiumRatio: 0.2}); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

// ensureBootstrapAdmin makes sure the configured account exists with the
// admin role. It never runs in production.
func ensureBootstrapAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.IsProduction() {
		return nil
	}
	email := strings.TrimSpace(strings.ToLower(cfg.BootstrapAdminEmail))
	password := cfg.BootstrapAdminPassword
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return errors.New("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}

	hashed, err := auth.NewBcryptHasher(cfg.BcryptCost).Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.User{
				Name:     "Administrator",
				Email:    email,
				Password: hashed,
				Role:     models.RoleAdmin,
				Phone:    "0000000000",
				Address:  "Not provided",
			}
			return tx.Create(&admin).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&admin).Updates(map[string]any{"role": models.RoleAdmin, "password": hashed}).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("bootstrap admin ensured", slog.String("email", email))
	return nil
}

// NewMailer returns an SMTP mailer when SMTP_HOST is set and a logging
// mailer otherwise.
func NewMailer(cfg *config.Config) mailer.Mailer {
	if cfg.SMTPHost == "" {
		middleware.Logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return mailer.LogMailer{}
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		Username:           cfg.SMTPUsername,
		Password:           cfg.SMTPPassword,
		From:               cfg.MailFrom,
		InsecureSkipVerify: !cfg.IsProduction() && cfg.SMTPHost == "localhost",
	})
}

// NewPaymentProcessor returns the Stripe processor for cfg.
func NewPaymentProcessor(cfg *config.Config) payment.Processor {
	if cfg.StripeSecretKey == "" {
		middleware.Logger.Warn("STRIPE_SECRET_KEY not set, checkout requests will fail")
	}
	return payment.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.FrontendURL, nil)
}
