package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/database"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: migrate [-config path] <up|down [steps]|version>\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	log := logrus.New()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	switch flag.Arg(0) {
	case "up":
		if err := database.Migrate(db.DB); err != nil {
			log.WithError(err).Fatal("An error occurred while migrating up")
		}
		log.Info("Migrations applied successfully")

	case "down":
		steps := 1
		if flag.NArg() > 1 {
			steps, err = strconv.Atoi(flag.Arg(1))
			if err != nil {
				log.Fatalf("Invalid step count %q", flag.Arg(1))
			}
		}
		if err := database.MigrateDown(db.DB, steps); err != nil {
			log.WithError(err).Fatal("An error occurred while migrating down")
		}
		log.WithField("steps", steps).Info("Migrations rolled back successfully")

	case "version":
		v, dirty, err := database.Version(db.DB)
		if err != nil {
			log.WithError(err).Fatal("Failed to read schema version")
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)

	default:
		log.Fatalf("Unknown command: %s. Use `up`, `down` or `version`.", flag.Arg(0))
	}
}
