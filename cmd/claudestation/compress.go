package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compress <conversation-id>",
		Short: "Manually run a compression pass, for exercising the worker in isolation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := context.Background()
			conv, err := d.app.GetConversation(ctx, args[0])
			if err != nil {
				return err
			}
			project, err := d.app.GetProject(ctx, conv.ProjectID)
			if err != nil {
				return err
			}

			if err := d.orch.CompressNow(ctx, conv, project); err != nil {
				return err
			}
			fmt.Println("compression pass complete for", conv.ID)
			return nil
		},
	}
}
