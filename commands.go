package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the HTTP server.
func buildServeCmd(configPath *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Sidekick server",
		Long: `Start the Sidekick server.

Configuration is read from the YAML file given with --config and then
overridden by environment variables. Graceful shutdown is handled on
SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  sidekick serve

  # Start without calling the remote assistant service
  SIDEKICK_MODE=mock sidekick serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// buildChatCmd creates the "chat" command, an interactive client for a
// running server.
func buildChatCmd() *cobra.Command {
	var (
		addr     string
		greeting string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running Sidekick server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), addr, greeting, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:8080/v1/chat/ws", "WebSocket server address")
	cmd.Flags().StringVar(&greeting, "greeting", "", "Greeting shown before the first message")
	return cmd
}

// buildToolsCmd creates the "tools" command that prints the tool catalog.
func buildToolsCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed to the assistant",
		Long: `Build the tool catalog for the configured environment and list the
encoded tool names. Fails when a tool name exceeds the maximum length.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd.Context(), *configPath, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full descriptors as JSON")
	return cmd
}

// buildPromptCmd creates the "prompt" command that prints the compiled
// system instructions.
func buildPromptCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the system instructions given to the assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}
