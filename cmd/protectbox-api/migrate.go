package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"protectbox/internal/auth"
	"protectbox/internal/config"
	"protectbox/internal/db"
	"protectbox/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateDir string

// migrateCmd applies the goose migrations. A migrations directory on disk
// wins over the copy embedded in the binary.
var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"goose-migrate"},
	Short:   "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return errors.New("database.url is not set")
		}

		logger, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()

		dir := cfg.Database.MigrationsDir
		if migrateDir != "" {
			return db.MigrateDir(cfg.Database.URL, migrateDir, logger)
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return db.MigrateDir(cfg.Database.URL, dir, logger)
		}
		return db.Migrate(cfg.Database.URL, logger)
	},
}

var (
	tokenID       string
	tokenName     string
	tokenRole     string
	tokenRegional string
	tokenTTL      time.Duration
)

// tokenCmd issues a signed actor token, for WebSocket clients and local testing
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed actor token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		actor := model.Actor{
			ID:       tokenID,
			Name:     tokenName,
			Role:     model.Role(strings.ToUpper(tokenRole)),
			Regional: tokenRegional,
		}
		if actor.ID == "" {
			return errors.New("--id is required")
		}
		token, err := auth.NewJWTConfig(cfg.Auth.JWTSecret, false).Issue(actor, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "Apply migrations from this directory instead of database.migrations_dir")

	tokenCmd.Flags().StringVar(&tokenID, "id", "", "Actor ID")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Actor display name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(model.RoleOfficial), "NATIONAL_LEAD, REGIONAL_LEAD, OFFICIAL, FISCAL or CASE_OPENER")
	tokenCmd.Flags().StringVar(&tokenRegional, "regional", "", "Regional unit of the actor")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
}
