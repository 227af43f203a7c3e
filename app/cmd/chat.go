package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lexcodex/planform/app/planform/tui"
)

func newChatCmd() *cobra.Command {
	var (
		serverURL string
		session   string
	)
	cmd := &cobra.Command{
		Use:   "chat <project-id>",
		Short: "Open an interactive chat session against a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(serverURL, args[0], session)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the API server")
	cmd.Flags().StringVar(&session, "session", "default", "Chat session ID")
	return cmd
}
