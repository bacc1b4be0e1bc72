package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docent-ai/docent/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index a directory of documents into the knowledge store",
	Long: `Index every .txt and .md file under a directory.

Re-running ingest over an unchanged corpus is a no-op apart from
refreshing stored chunks; removed or shrunk documents have their stale
chunks cleaned up. Without an argument the configured corpus_dir is
used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		return runIngest(cmd.Context(), dir)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, dir string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if dir == "" {
		dir = a.cfg.CorpusDir
	}

	docs, err := ingest.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Printf("No .txt or .md documents found under %s\n", dir)
		return nil
	}

	report, err := a.pipeline.Ingest(ctx, docs)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d documents: %d chunks added, %d updated, %d removed\n",
		report.Documents, report.ChunksAdded, report.ChunksUpdated, report.ChunksRemoved)
	for _, docErr := range report.Errors {
		fmt.Printf("  failed: %s: %v\n", docErr.Source, docErr.Err)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(report.Errors), len(docs))
	}
	return nil
}
