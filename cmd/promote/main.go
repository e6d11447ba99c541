// Command promote changes an account's role from the command line:
//
//	go run ./cmd/promote -user alice -role contributor
//
// It writes the database directly rather than going through the API, so it
// works even when no admin account exists yet — this is how the first admin
// gets minted on a database that wasn't seeded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tasave/tasave-go/internal/config"
	"github.com/tasave/tasave-go/internal/model"
	sqliteRepo "github.com/tasave/tasave-go/internal/repository/sqlite"
)

func main() {
	username := flag.String("user", "", "username of the account to change")
	role := flag.String("role", "", "new role: user, contributor, or admin")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *username == "" || !model.ValidRole(*role) {
		fmt.Fprintln(os.Stderr, "usage: promote -user <username> -role user|contributor|admin")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	user, err := db.Users().UpdateRole(context.Background(), *username, model.Role(*role))
	if err != nil {
		logger.Error("promotion failed",
			slog.String("username", *username),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("role updated",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
}
