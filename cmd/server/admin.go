package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smallplates/internal/config"
	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and the recipe counter trigger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Logger)
		if err := db.Init(cfg.Database); err != nil {
			return err
		}
		logger.WithComponent("migrate").Info("database migrated", "driver", cfg.Database.Driver)
		return nil
	},
}

var (
	adminUsername string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an operations account or reset its password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(adminUsername) == "" || strings.TrimSpace(adminPassword) == "" {
			return errors.New("--username and --password are required")
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Logger)
		if err := db.Init(cfg.Database); err != nil {
			return err
		}
		user, err := db.UpsertUser(db.DB, adminUsername, adminPassword)
		if err != nil {
			return fmt.Errorf("save admin user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %q ready\n", user.Username)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "account name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "account password")
}
