// Command main runs the database seeder for SocialConnect.
package main

import (
	"flag"
	"log"

	"socialconnect/internal/config"
	"socialconnect/internal/database"
	"socialconnect/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a named preset (minimal, demo, qa, large)")
	fixture := flag.String("fixture", "demo", "Apply a YAML fixture (built-in name or path); empty to skip")
	distribution := flag.String("distribution", "", "Post category mix (default, questions, announcements)")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing to the database")
	fast := flag.Bool("fast", false, "Hash passwords at the minimum bcrypt cost")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring -users and -posts)\n", *preset)
	} else {
		log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		DryRun:       *dryRun,
		SkipBcrypt:   *fast,
		BatchSize:    100,
		RandomSeed:   *randomSeed,
		Distribution: *distribution,
	})

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if *fixture != "" {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("❌ Fixture load failed: %v", err)
		}
		if _, err := s.ApplyFixture(fx); err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
	}

	if *preset != "" {
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatalf("❌ Preset seeding failed: %v", err)
		}
	} else if *numUsers > 0 {
		users, err := s.SeedSocialMesh(*numUsers)
		if err != nil {
			log.Fatalf("❌ User seeding failed: %v", err)
		}
		if _, err := s.SeedEngagement(users, *numPosts); err != nil {
			log.Fatalf("❌ Engagement seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
