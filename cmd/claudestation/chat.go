package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"claudestation/internal/store"
)

// stdoutSink prints streamed deltas directly to the terminal, the
// minimal Sink a CLI needs — the GUI shell's Sink instead forwards into
// its own rendering pipeline.
type stdoutSink struct{}

func (stdoutSink) OnTextDelta(text string)    { fmt.Print(text) }
func (stdoutSink) OnThinkingDelta(string)     {}
func (stdoutSink) OnUsage(string, store.Usage) {}
func (stdoutSink) OnDone()                    { fmt.Println() }

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <conversation-id> <message>",
		Short: "Run one foreground turn through the orchestrator and print the streamed reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := context.Background()
			convID, message := args[0], args[1]

			conv, err := d.app.GetConversation(ctx, convID)
			if err != nil {
				return err
			}
			project, err := d.app.GetProject(ctx, conv.ProjectID)
			if err != nil {
				return err
			}
			docs, err := d.app.ListDocuments(ctx, project.ID)
			if err != nil {
				return err
			}

			return d.orch.RunTurn(ctx, conv, project, docs, message, stdoutSink{})
		},
	}
	return cmd
}
