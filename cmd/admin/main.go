// Package main provides admin management utilities for MAIN Q.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"mainq/internal/config"
	"mainq/internal/database"
	"mainq/internal/models"
	"mainq/internal/repository"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <email>   - Grant the admin flag")
	fmt.Println("  go run ./cmd/admin demote <email>    - Revoke the admin flag")
	fmt.Println("  go run ./cmd/admin list-admins       - List all admins")
	fmt.Println("  go run ./cmd/admin migrate           - Create or update tables")
}

func main() {
	if len(os.Args) < 2 {
		usage()
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
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	switch os.Args[1] {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		setAdmin(ctx, users, os.Args[2], os.Args[1] == "promote")
	case "list-admins":
		listAdmins(db)
	case "migrate":
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Migration complete")
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// setAdmin flips the stored flag. The admin gate reads it on every request,
// so the change applies without the user signing in again.
func setAdmin(ctx context.Context, users repository.UserRepository, email string, admin bool) {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		if models.StatusFor(err) == http.StatusNotFound {
			fmt.Printf("User with email %s not found\n", email)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsAdmin == admin {
		fmt.Printf("%s (%s) already has admin=%v\n", user.DisplayName, user.Email, admin)
		return
	}
	if err := users.SetAdmin(ctx, user.ID, admin); err != nil {
		log.Fatalf("Failed to update admin flag: %v", err)
	}

	verb := "demoted"
	if admin {
		verb = "promoted"
	}
	fmt.Printf("Successfully %s %s (%s)\n", verb, user.DisplayName, user.Email)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("email").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found")
		return
	}
	for _, admin := range admins {
		fmt.Printf("ID: %s | Name: %s | Email: %s\n", admin.ID, admin.DisplayName, admin.Email)
	}
}
