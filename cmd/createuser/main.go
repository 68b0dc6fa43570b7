// Command createuser provisions an account that can log in through
// /auth/token/.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Clark-Hu/bookshelf/internal/auth"
	"github.com/Clark-Hu/bookshelf/internal/config"
	"github.com/Clark-Hu/bookshelf/internal/logging"
	"github.com/Clark-Hu/bookshelf/internal/repository"
	"github.com/Clark-Hu/bookshelf/internal/store"
)

func main() {
	var (
		username  = flag.String("username", "", "login name (required)")
		password  = flag.String("password", "", "password (required)")
		firstName = flag.String("first", "", "first name")
		lastName  = flag.String("last", "", "last name")
		staff     = flag.Bool("staff", false, "grant staff rights")
	)
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DBAutoMigrate {
		if err := store.Migrate(cfg.DBURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
	}

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               1,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash password")
	}

	user, err := repository.New(st).Users.Create(ctx, repository.UserCreateParams{
		Username:     *username,
		FirstName:    *firstName,
		LastName:     *lastName,
		PasswordHash: hash,
		IsStaff:      *staff,
	})
	if errors.Is(err, repository.ErrConflict) {
		logger.Fatal().Str("username", *username).Msg("username already taken")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("create user")
	}

	logger.Info().Int64("id", user.ID).Str("username", user.Username).Bool("staff", user.IsStaff).Msg("user created")
}
