package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pixpot/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const migrationsDir = "db/migrations"

func main() {
	name := flag.String("name", "", "migration name for create")
	steps := flag.Int("steps", 1, "migrations to roll back for down")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [flags] up|down|create")
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	if command == "create" {
		if err := create(*name); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	m, err := migrate.New("file://"+migrationsDir, mustDatabaseURL())
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}
	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-*steps)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("database migration failed: %v", err)
	}
	version, dirty, _ := m.Version()
	log.Printf("database migrations applied (version %d, dirty %t)", version, dirty)
}

func mustDatabaseURL() string {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	return dsn
}

func create(name string) error {
	if name == "" {
		return errors.New("migration name is required")
	}
	if strings.ContainsAny(name, " ") {
		return errors.New("migration name must not contain spaces")
	}
	version := time.Now().UTC().Format("20060102150405")
	base := fmt.Sprintf("%s_%s", version, name)
	upPath := filepath.Join(migrationsDir, base+".up.sql")
	downPath := filepath.Join(migrationsDir, base+".down.sql")
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeFile(upPath, "-- up migration\n"); err != nil {
		return fmt.Errorf("create up migration: %w", err)
	}
	if err := writeFile(downPath, "-- down migration\n"); err != nil {
		return fmt.Errorf("create down migration: %w", err)
	}
	log.Printf("created %s and %s", upPath, downPath)
	return nil
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
