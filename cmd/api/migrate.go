package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yourusername/account-api/internal/config"
	"github.com/yourusername/account-api/internal/database"
)

// NewMigrateCmd はマイグレーションコマンドを作成します。
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrateUp(url); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every table)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := withMigrator(url, (*database.Migrator).Down); err != nil {
				return err
			}
			cmd.Println("Migrations rolled back")
			return nil
		},
	})

	return cmd
}

// databaseURL は migrate 用に DATABASE_URL だけを読み込みます。
// ストア種別などの設定には依存しません。
func databaseURL() (string, error) {
	url := config.DatabaseURL()
	if url == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return url, nil
}

func migrateUp(url string) error {
	return withMigrator(url, (*database.Migrator).Up)
}

func withMigrator(url string, fn func(*database.Migrator) error) (err error) {
	m, err := database.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(m)
}
