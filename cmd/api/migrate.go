package main

import (
	"github.com/Byak-ko/Qualification-work-sub001/internal/database"
	"github.com/spf13/cobra"
)

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(a.cfg.DatabaseURL, a.logger)
			if err != nil {
				return err
			}
			if err := database.RunMigrations(db); err != nil {
				return err
			}
			a.logger.Info("migrations applied")
			return nil
		},
	}
}

func seedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the initial administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(a.cfg.DatabaseURL, a.logger)
			if err != nil {
				return err
			}
			if err := database.RunMigrations(db); err != nil {
				return err
			}
			return database.SeedAdmin(db, a.logger)
		},
	}
}
