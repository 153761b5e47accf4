package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudestation/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run the Store migration standalone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(resolveDBPath())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			fmt.Println("migration complete:", resolveDBPath())
			return nil
		},
	}
}
