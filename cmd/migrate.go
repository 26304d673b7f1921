package cmd

import (
	"github.com/spf13/cobra"

	"github.com/betagouv/zacharie-sub006/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run server-side database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := newLogger()

	database, err := db.Connect(&cfg.Database, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}

	log.Info("Migrations completed")
	return nil
}
