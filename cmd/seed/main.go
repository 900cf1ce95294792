// Command seed fills the database with demo data and an optional fake
// social graph.
package main

import (
	"context"
	"flag"
	"log"

	"socialhub/internal/config"
	"socialhub/internal/database"
	"socialhub/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 0, "Number of fake users to create (0 skips the mesh)")
	numPosts := flag.Int("posts", 200, "Number of fake posts spread over the fake users")
	fixture := flag.String("fixture", "", "YAML fixture to load instead of the demo data set")
	clean := flag.Bool("clean", false, "Delete all existing social data first")
	fast := flag.Bool("fast", false, "Hash passwords at minimum bcrypt cost")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s, err := seed.NewSeeder(db, seed.Options{FastHash: *fast})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	fx := seed.DemoFixture()
	if *fixture != "" {
		if fx, err = seed.LoadFixture(*fixture); err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
	}
	if _, err := s.ApplyFixture(ctx, fx); err != nil {
		log.Fatalf("Fixture seeding failed: %v", err)
	}

	if *numUsers > 0 {
		users, err := s.SeedSocialMesh(ctx, *numUsers)
		if err != nil {
			log.Fatalf("User seeding failed: %v", err)
		}
		if _, err := s.SeedEngagement(ctx, users, *numPosts); err != nil {
			log.Fatalf("Engagement seeding failed: %v", err)
		}
		log.Printf("Generated users have the password: %s", seed.DefaultPassword)
	}

	log.Println("Seeding complete")
}
