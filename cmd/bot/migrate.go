package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer manager.Close()

		logger.Info("migration finished", "driver", cfg.Database.Driver)
		return nil
	},
}
