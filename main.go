// Package main provides the CLI entry point for the Sidekick assistant
// service.
//
// Start the server:
//
//	sidekick serve --config sidekick.yaml
//
// Chat with a running server:
//
//	sidekick chat --addr ws://localhost:8080/v1/chat/ws
//
// Inspect the tools and instructions given to the assistant:
//
//	sidekick tools
//	sidekick prompt
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sidekick",
		Short:         "AI assistant for managing a CMS installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SIDEKICK_CONFIG"),
		"Path to YAML configuration file")

	root.AddCommand(
		buildServeCmd(&configPath),
		buildChatCmd(),
		buildToolsCmd(&configPath),
		buildPromptCmd(&configPath),
	)
	return root
}
