// Package main provides role management utilities for the gardening API.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/models"

	"gorm.io/gorm"
)

const usageText = `Usage:
  go run ./cmd/admin promote <user_id>     - Grant the admin role
  go run ./cmd/admin demote <user_id>      - Revert to the user role
  go run ./cmd/admin list-admins           - List all admins
`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usageText)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := run(db, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Print(usageText)
		}
		log.Fatal(err)
	}
}

func run(db *gorm.DB, args []string, out io.Writer) error {
	switch args[0] {
	case "promote", "demote":
		if len(args) < 2 {
			return errUsage
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", args[1], errUsage)
		}
		role := models.RoleAdmin
		if args[0] == "demote" {
			role = models.RoleUser
		}
		return setRole(db, uint(id), role, out)
	case "list-admins":
		return listAdmins(db, out)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func setRole(db *gorm.DB, userID uint, role models.Role, out io.Writer) error {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user with ID %d not found", userID)
		}
		return fmt.Errorf("database error: %w", err)
	}

	if user.Role == role {
		_, _ = fmt.Fprintf(out, "User %s (ID: %d) already has role %s\n", user.Name, user.ID, role)
		return nil
	}

	if err := db.Model(&user).Update("role", role).Error; err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	_, _ = fmt.Fprintf(out, "✅ %s (ID: %d) now has role %s\n", user.Name, user.ID, role)
	return nil
}

func listAdmins(db *gorm.DB, out io.Writer) error {
	var admins []models.User
	if err := db.Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}

	if len(admins) == 0 {
		_, _ = fmt.Fprintln(out, "No admins found in the system")
		return nil
	}

	_, _ = fmt.Fprintln(out, "📋 Current Admins:")
	for _, admin := range admins {
		_, _ = fmt.Fprintf(out, "ID: %d | Name: %s | Email: %s\n", admin.ID, admin.Name, admin.Email)
	}
	return nil
}
