// Package main runs the wallet API: accounts, funding, withdrawals, transfers and history.
package main

import (
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/go-petr/pet-wallet/cmd/httpserver"
	"github.com/go-petr/pet-wallet/internal/middleware"
	"github.com/go-petr/pet-wallet/pkg/configpkg"
	"github.com/go-petr/pet-wallet/pkg/dbpkg"

	_ "github.com/lib/pq"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	var db *sql.DB

	if config.LedgerStore != configpkg.StoreMemory {
		db, err = dbpkg.Setup(config.DBDriver, config.DBSource)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot connect to database")
		}
		defer db.Close()

		if config.MigrationURL != "" {
			if err := dbpkg.Migrate(db, config.MigrationURL); err != nil {
				logger.Fatal().Err(err).Msg("cannot migrate database")
			}

			logger.Info().Str("url", config.MigrationURL).Msg("database migrated")
		}
	}

	server, err := httpserver.New(db, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}
	defer server.Close()

	logger.Info().
		Str("store", config.LedgerStore).
		Str("locks", config.LockBackend).
		Msg("WALLET API SERVER HAS STARTED")

	if err := server.Engine.Run(config.ServerAddress); err != nil {
		logger.Error().Err(err).Msg("cannot start server")
	}
}
