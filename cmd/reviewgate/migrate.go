package main

import (
	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/reviewgate/internal/adapter/driven/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := sqliteadapter.NewDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			return err
		}
		v, dirty, err := sqliteadapter.SchemaVersion(db.Writer)
		if err != nil {
			return err
		}
		if dirty {
			ui.Warning("schema version %d is dirty; a previous migration failed part way", v)
			return nil
		}
		ui.Success("%s is at schema version %d", cfg.DBPath, v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
