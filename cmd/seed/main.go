// Command seed fills the database with demo content.
package main

import (
	"flag"
	"log"

	"mainq/internal/config"
	"mainq/internal/database"
	"mainq/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	users := flag.Int("users", defaults.Users, "Number of accounts to create")
	games := flag.Int("games", defaults.Games, "Number of games to create")
	labs := flag.Int("labs", defaults.Labs, "Number of labs to create")
	articles := flag.Int("articles", defaults.Articles, "Number of articles to create")
	comments := flag.Int("comments", defaults.CommentsPerEntry, "Maximum comments per entry")
	legacy := flag.Float64("legacy", defaults.LegacyRatio, "Share of entries without a creation date")
	randSeed := flag.Int64("rand-seed", 0, "Random seed (0 uses the clock)")
	fast := flag.Bool("fast", false, "Skip bcrypt and store the demo password as-is")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(seed.Options{
		Users:            *users,
		Games:            *games,
		Labs:             *labs,
		Articles:         *articles,
		CommentsPerEntry: *comments,
		MaxDays:          defaults.MaxDays,
		LegacyRatio:      *legacy,
		RandSeed:         *randSeed,
		SkipBcrypt:       *fast,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d games/labs, %d articles, %d comments",
		res.Users, res.Items, res.Articles, res.Comments)
	if !*fast {
		log.Printf("All demo accounts use the password: %s", seed.DemoPassword)
	}
}
