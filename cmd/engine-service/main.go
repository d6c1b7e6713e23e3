package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ruleflow/internal/config"
	"ruleflow/internal/constants"
	"ruleflow/internal/logger"
	"ruleflow/pkg/bootstrap"
	"ruleflow/pkg/logging"
	"ruleflow/pkg/migrations"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "engine-service",
		Short: "Automation rule engine",
		Long:  "Engine Service evaluates tenant automation rules against domain events and dispatches their actions",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog(serviceName)

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config", "config_file", configFile, "error", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger", "level", cfg.Logging.Level, "error", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the engine service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Engine Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				app.Shutdown(context.Background())
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Shutdown complete")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			connector := bootstrap.NewDatabaseConnector(cfg, log)

			db, err := connector.InitPostgreSQL(ctx)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				if err := migrations.Postgres(db); err != nil {
					return err
				}
				log.InfowCtx(ctx, "PostgreSQL migrations applied")
			}

			mongoClient, err := connector.InitMongoDB(ctx)
			if err != nil {
				return err
			}
			if mongoClient != nil {
				defer mongoClient.Disconnect(ctx)
				dbName := cfg.Database.MongoDB.Database
				if dbName == "" {
					dbName = constants.DefaultMongoDBName
				}
				if err := migrations.EnsureRecordsCollection(ctx, mongoClient.Database(dbName), cfg.Actions.Records.Collection); err != nil {
					return err
				}
				log.InfowCtx(ctx, "MongoDB indexes ensured", "collection", cfg.Actions.Records.Collection)
			}
			return nil
		},
	}
}
