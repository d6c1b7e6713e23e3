package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "ruleflow/cmd/rules-service/docs"
	"ruleflow/internal/config"
	"ruleflow/internal/logger"
	"ruleflow/internal/rules"
	"ruleflow/pkg/bootstrap"
	"ruleflow/pkg/cel"
	"ruleflow/pkg/logging"
	"ruleflow/pkg/migrations"
)

var (
	configFile string
	seedFile   string
)

// @title           Ruleflow Rules Service API
// @version         1.0
// @description     REST API for managing tenant automation rules and their version history

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "rules-service",
		Short: "Rules Service for automation rules",
		Long:  "Rules Service provides a REST API for creating, versioning and publishing tenant automation rules",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

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
		Short: "Start the rules service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Rules Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				app.Shutdown(context.Background())
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := bootstrap.NewDatabaseConnector(cfg, log).InitPostgreSQL(cmd.Context())
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("database.postgres is not configured")
			}
			defer db.Close()

			if err := migrations.Postgres(db); err != nil {
				return err
			}
			log.InfowCtx(cmd.Context(), "Migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bulk-load rules from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()

			seed, err := rules.LoadSeedFile(seedFile)
			if err != nil {
				return err
			}

			db, err := bootstrap.NewDatabaseConnector(cfg, log).InitPostgreSQL(ctx)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("database.postgres is not configured")
			}
			defer db.Close()

			celEvaluator, err := cel.NewEvaluator()
			if err != nil {
				return err
			}

			n, err := rules.Seed(ctx, rules.NewPostgresRepository(db, serviceName), rules.NewValidator(celEvaluator), seed)
			if err != nil {
				log.ErrorwCtx(ctx, "Seeding stopped", "stored", n, "error", err)
				return err
			}
			log.InfowCtx(ctx, "Rules seeded", "file", seedFile, "count", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "file", "", "Path to the YAML rule file")
	cmd.MarkFlagRequired("file")
	return cmd
}
