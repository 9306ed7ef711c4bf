// Package main provides admin management utilities for SocialConnect.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"socialconnect/internal/config"
	"socialconnect/internal/database"
	"socialconnect/internal/featureflags"
	"socialconnect/internal/models"
	"socialconnect/internal/repository"
	"socialconnect/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>     - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>      - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins           - List all admins")
	fmt.Println("  go run ./cmd/admin prune-tokens          - Delete expired refresh tokens")
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

	admins := service.NewAdminService(service.AdminDeps{
		Users:         repository.NewUserRepository(db),
		Posts:         repository.NewPostRepository(db),
		Stats:         repository.NewStatsRepository(db),
		RefreshTokens: repository.NewRefreshTokenStore(db),
		Flags:         featureflags.NewManager(cfg.FeatureFlags),
		AdminSecret:   cfg.AdminSecretKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		setAdmin(ctx, admins, os.Args[2], command == "promote")

	case "list-admins":
		listAdmins(ctx, admins)

	case "prune-tokens":
		n, err := admins.PruneTokens(ctx)
		if err != nil {
			log.Fatalf("Failed to prune tokens: %v", err)
		}
		fmt.Printf("✅ Deleted %d expired refresh tokens\n", n)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, admins *service.AdminService, rawID string, admin bool) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID: %s\n", rawID)
		os.Exit(1)
	}

	user, err := admins.SetAdmin(ctx, uint(id), admin)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %s not found\n", rawID)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	verb := "demoted"
	if admin {
		verb = "promoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d). Existing access tokens keep their old role until they expire.\n",
		verb, user.Username, user.ID)
}

func listAdmins(ctx context.Context, admins *service.AdminService) {
	users, err := admins.ListAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(users) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range users {
		status := "active"
		if !admin.IsActive {
			status = "inactive"
		}
		fmt.Printf("ID: %d | Username: %s | Email: %s | %s\n", admin.ID, admin.Username, admin.Email, status)
	}
	fmt.Println("─────────────────────────────────────")
}
