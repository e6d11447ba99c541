// Command seed populates the database with a default admin account and a
// small set of sample machines for local development.
//
// Existing rows are left alone: seeding is idempotent and safe to run on a
// database that already has data. The admin credentials come from
// ADMIN_USERNAME/ADMIN_PASSWORD (defaults admin/admin123 — development
// only; set real values before seeding anything shared).
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/config"
	"github.com/tasave/tasave-go/internal/model"
	sqliteRepo "github.com/tasave/tasave-go/internal/repository/sqlite"
)

var sampleMachines = []model.Machine{
	{
		Name:         "Trust",
		Description:  "A beginner-friendly box covering basic enumeration and weak credentials.",
		Difficulty:   model.DifficultyVeryEasy,
		DownloadLink: "https://dockerlabs.es/machines/trust",
		Author:       "dockerlabs",
		CreationDate: "2023-11-05",
	},
	{
		Name:         "Internship",
		Description:  "Web exploitation practice with a simple privilege escalation path.",
		Difficulty:   model.DifficultyEasy,
		DownloadLink: "https://dockerlabs.es/machines/internship",
		Author:       "dockerlabs",
		CreationDate: "2024-01-18",
	},
	{
		Name:         "Walking Dead",
		Description:  "Service misconfiguration hunting across several exposed ports.",
		Difficulty:   model.DifficultyEasy,
		DownloadLink: "https://dockerlabs.es/machines/walkingdead",
		Author:       "dockerlabs",
		CreationDate: "2024-02-02",
	},
	{
		Name:         "Unrecover",
		Description:  "Binary exploitation and forensics challenges around a broken backup system.",
		Difficulty:   model.DifficultyMedium,
		DownloadLink: "https://dockerlabs.es/machines/unrecover",
		Author:       "dockerlabs",
		CreationDate: "2024-03-21",
	},
	{
		Name:         "Insanity",
		Description:  "A long exploitation chain for experienced players. Bring coffee.",
		Difficulty:   model.DifficultyHard,
		DownloadLink: "https://dockerlabs.es/machines/insanity",
		Author:       "dockerlabs",
		CreationDate: "2024-05-09",
	},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			logger.Error("failed to create database directory", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if err := seedAdmin(ctx, db, logger); err != nil {
		logger.Error("seeding admin failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := seedMachines(ctx, db, logger); err != nil {
		logger.Error("seeding machines failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("seeding complete", slog.String("database", cfg.DBPath))
}

func seedAdmin(ctx context.Context, db *sqliteRepo.DB, logger *slog.Logger) error {
	username := envOr("ADMIN_USERNAME", "admin")
	password := envOr("ADMIN_PASSWORD", "admin123")

	if _, err := db.Users().GetByUsername(ctx, username); err == nil {
		logger.Info("admin user already exists, skipping", slog.String("username", username))
		return nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	hash, err := auth.NewPasswordService().Hash(password)
	if err != nil {
		return err
	}

	admin := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}
	if err := db.Users().Create(ctx, admin); err != nil {
		return err
	}

	logger.Info("admin user created",
		slog.Int64("userID", admin.ID),
		slog.String("username", admin.Username),
	)
	return nil
}

func seedMachines(ctx context.Context, db *sqliteRepo.DB, logger *slog.Logger) error {
	existing, err := db.Machines().ListViewRows(ctx, 0)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(existing))
	for _, row := range existing {
		present[row.Machine.Name] = true
	}

	created := 0
	for _, m := range sampleMachines {
		if present[m.Name] {
			continue
		}
		machine := m
		if err := db.Machines().Create(ctx, &machine); err != nil {
			return err
		}
		created++
	}

	logger.Info("machines seeded",
		slog.Int("created", created),
		slog.Int("skipped", len(sampleMachines)-created),
	)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
