// Command main runs the database seeder.
package main

import (
	"context"
	"flag"
	"log"

	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Category mix: balanced, kitchen-garden or ornamental")
	premium := flag.Float64("premium", 0.2, "Share of posts marked premium")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v preset=%q\n", *numUsers, *numPosts, *shouldClean, *preset)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	err = seed.Seed(db, seed.Options{
		NumUsers:     *numUsers,
		NumPosts:     *numPosts,
		ShouldClean:  *shouldClean,
		BcryptCost:   cfg.BcryptCost,
		DryRun:       *dryRun,
		PremiumRatio: *premium,
		Preset:       *preset,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s", seed.DefaultPassword)
}
