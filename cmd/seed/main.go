package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zfogg/paddock/internal/config"
	"github.com/zfogg/paddock/internal/database"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/seed"
)

func main() {
	users := flag.Int("users", 50, "Number of fans to create in dev mode")
	seedValue := flag.Int64("seed", 0, "Random seed for a reproducible dev run (0 = random)")
	flag.Usage = usage
	flag.Parse()

	command := "dev"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	switch command {
	case "dev", "test", "reference", "clean":
	default:
		usage()
		os.Exit(1)
	}

	cfg, envFileLoaded, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if !envFileLoaded {
		log.Println("Warning: .env file not found, using system environment variables")
	}
	if err := logger.Initialize(logger.Options{Level: cfg.LogLevel, Environment: cfg.Environment}); err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	if cfg.IsProduction() && command != "reference" {
		log.Fatalf("❌ Refusing to run %q against a production environment", command)
	}

	if err := database.Initialize(database.Options{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL}); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	db := database.DB
	seeder := seed.NewSeeder(db, polls.NewService(db, nil, nil), grids.NewService(db, nil))
	if *seedValue != 0 {
		seeder.SetSeed(*seedValue)
	}

	ctx := context.Background()
	switch command {
	case "dev":
		log.Printf("🌱 Seeding development database with %d fans...", *users)
		err = seeder.SeedDev(ctx, *users)
	case "test":
		log.Println("🌱 Seeding test fixtures...")
		err = seeder.SeedTest(ctx)
	case "reference":
		log.Println("🏎️  Seeding teams, drivers and tracks...")
		var stats *seed.ReferenceStats
		stats, err = seeder.SeedReference(ctx)
		if err == nil {
			log.Printf("   %d teams, %d drivers, %d tracks", stats.Teams, stats.Drivers, stats.Tracks)
		}
	case "clean":
		log.Println("🧹 Removing seeded data...")
		err = seeder.Clean(ctx)
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✅ Done")
	if command == "dev" || command == "test" {
		log.Printf("   Seeded accounts log in with password %q", seed.DevPassword)
	}
}

func usage() {
	fmt.Println("Usage: seed [flags] [dev|test|reference|clean]")
	fmt.Println("  dev       - Reference data plus fake fans, posts, polls and grids")
	fmt.Println("  test      - Reference data plus fixed fixture accounts")
	fmt.Println("  reference - Teams, drivers and tracks only (safe in production)")
	fmt.Println("  clean     - Remove social data and seeded accounts")
	flag.PrintDefaults()
}
