package main

import (
	"fmt"
	"os"

	"github.com/nao1215/relayview/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for relayview.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayview",
		Short: "View web pages through public relay endpoints",
		Long: `relayview fetches a page through public relay (CORS proxy) endpoints,
decodes it with the correct charset, rewrites its links and rebuilds legacy
framesets, producing a self-contained document for a sandboxed frame.

Use "render" to write documents to files or stdout, and "serve" to browse
interactively in a local viewer.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" in current or home directory)")

	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
