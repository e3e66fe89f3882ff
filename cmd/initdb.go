package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/datamodel"
)

func initDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the PostGIS extension, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if err := datamodel.Migrate(rt.db.Gorm); err != nil {
				return err
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}
