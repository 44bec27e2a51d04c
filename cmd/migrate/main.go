// Command migrate manages the PostgreSQL schema.
//
//	migrate up | down | version | steps <n> | force <version>
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jason-s-yu/songdecks/internal/config"
	"github.com/jason-s-yu/songdecks/internal/database"
	"github.com/sirupsen/logrus"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up | down | version | steps <n> | force <version>")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := cfg.Logger()
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	mm, err := database.NewMigrationManager(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("open migrations")
	}
	defer func() {
		if err := mm.Close(); err != nil {
			logger.WithError(err).Warn("closing migration manager")
		}
	}()

	// argument parses the numeric operand of steps and force.
	argument := func() int {
		if len(os.Args) < 3 {
			usage()
		}
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logger.WithError(err).Fatalf("invalid number %q", os.Args[2])
		}
		return n
	}

	switch os.Args[1] {
	case "up":
		err = mm.Up()
	case "down":
		err = mm.Down()
	case "steps":
		err = mm.Steps(argument())
	case "force":
		logger.Warn("force sets the version without running migrations")
		err = mm.Force(argument())
	case "version", "status":
	default:
		usage()
	}
	if err != nil {
		logger.WithError(err).Fatalf("migrate %s", os.Args[1])
	}

	version, dirty, err := mm.Version()
	if err != nil {
		logger.WithError(err).Fatal("read version")
	}
	entry := logger.WithFields(logrus.Fields{"version": version, "dirty": dirty})
	if dirty {
		entry.Warn("schema is dirty, use 'migrate force <version>' to recover")
		return
	}
	entry.Info("schema version")
}
