package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base mailsort command
var rootCmd = &cobra.Command{
	Use:   "mailsort",
	Short: "Sorts unread Gmail messages into category labels",
	Long: `mailsort reads the unread messages in your Gmail inbox, classifies each
one into a category such as Work, Personal or Promotions using an OpenAI
model, and applies the matching Gmail label.

Besides the one-shot CLI run it offers a local web interface for browsing
categories and triggering runs, and an MCP (Model Context Protocol) server
that exposes the same pipeline to AI assistants.`,
	SilenceUsage: true,
}

// version is stamped in by main at build time
var version = "dev"

// SetVersion propagates the build version to the root command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the CLI. Invoking mailsort with no arguments runs the
// organize command.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailsort version %s\n" .Version}}`)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "organize")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(newOrganizeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newWebCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
