// Package cmd wires configuration, storage, backends, and the
// question answering flow into the docent command line interface.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docent",
	Short: "Docent - question answering over your own documents",
	Long: `Docent indexes a directory of text documents into a vector store and
answers questions about them with a locally hosted model, citing the
documents each answer was grounded in.

Typical usage:

  docent ingest ./documents   index the corpus
  docent ask "..."            answer a single question
  docent serve                start the HTTP API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	// A local .env is a development convenience; absence is fine.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	return rootCmd.Execute()
}
