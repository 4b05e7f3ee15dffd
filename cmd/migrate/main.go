// Command migrate applies or rolls back the schema under /migrations
// using golang-migrate, pointed at DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/insider-one/notify-dispatch/internal/config"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	steps := flag.Int("steps", 0, "number of steps to apply (0 = all)")
	flag.Parse()

	cfg := config.Load()

	m, err := migrate.New("file://migrations", cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to initialize migrator: %v", err)
	}

	var runErr error
	switch *direction {
	case "up":
		if *steps > 0 {
			runErr = m.Steps(*steps)
		} else {
			runErr = m.Up()
		}
	case "down":
		if *steps > 0 {
			runErr = m.Steps(-*steps)
		} else {
			runErr = m.Down()
		}
	default:
		log.Fatalf("unknown direction %q, expected up or down", *direction)
	}

	if runErr != nil && !errors.Is(runErr, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", runErr)
	}

	log.Println("migrations applied successfully")
}
