package main

import (
	"github.com/spf13/cobra"

	"github.com/njprem/ems_auth_backend/internal/config"
	"github.com/njprem/ems_auth_backend/internal/repository/postgres"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := config.DatabaseURL()
			if err != nil {
				return err
			}
			if err := migrateUp(dsn); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *postgres.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *postgres.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})
	return cmd
}

func migrateUp(dsn string) error {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func withMigrator(fn func(*postgres.Migrator) error) error {
	dsn, err := config.DatabaseURL()
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
