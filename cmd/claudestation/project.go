package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectSetDocCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var systemPrompt, model string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			p, err := d.app.CreateProject(context.Background(), args[0], systemPrompt, model)
			if err != nil {
				return err
			}
			fmt.Println(p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt")
	cmd.Flags().StringVar(&model, "model", "claude-sonnet-4.5", "default model id")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			projects, err := d.app.ListProjects(context.Background())
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.DefaultModel)
			}
			return nil
		},
	}
}

func newProjectSetDocCmd() *cobra.Command {
	var fileType string
	var tokenCount int
	cmd := &cobra.Command{
		Use:   "set-doc <project-id> <filename> <extracted-text>",
		Short: "Attach a document's already-extracted text to a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			doc, err := d.app.AddDocument(context.Background(), args[0], args[1], args[2], fileType, tokenCount)
			if err != nil {
				return err
			}
			fmt.Println(doc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&fileType, "type", "text", "document file type")
	cmd.Flags().IntVar(&tokenCount, "tokens", 0, "known token count, stored as given (0 if unknown)")
	return cmd
}
