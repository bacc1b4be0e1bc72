package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docent-ai/docent/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [addr]",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

The address may be given as a positional argument or via --addr:

  docent serve
  docent serve :8080
  docent serve --addr 0.0.0.0:8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if len(args) > 0 {
			addr = args[0]
		}
		if addr == "" {
			addr = api.DefaultAddr
		}
		if err := validateAddr(addr); err != nil {
			return fmt.Errorf("invalid address %q: %w", addr, err)
		}
		return runServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (host:port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context, addr string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("docent starting",
		"version", AppVersion,
		"embed_model", a.cfg.EmbedModel,
		"generate_model", a.cfg.GenerateModel)

	server := api.NewServer(a.pool, a.backend, a.sessions, a.answerer,
		a.logger.With("component", "api"))
	return server.Run(ctx, addr)
}
