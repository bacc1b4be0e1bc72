package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var askNoStream bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the answer only when complete")
	rootCmd.AddCommand(askCmd)
}

func runAsk(parent context.Context, question string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if askNoStream {
		answer, err := a.answerer.Ask(ctx, question, nil)
		if err != nil {
			return err
		}
		fmt.Println(answer.Text)
		printSources(answer.Sources)
		return nil
	}

	stream, err := a.answerer.AskStream(ctx, question, nil)
	if err != nil {
		return err
	}
	for fragment, err := range stream.Fragments {
		if err != nil {
			fmt.Fprintln(os.Stdout)
			return err
		}
		fmt.Print(fragment)
	}
	fmt.Println()
	printSources(stream.Sources)
	return nil
}

func printSources(sources []string) {
	if len(sources) == 0 {
		return
	}
	fmt.Printf("\nSources: %s\n", strings.Join(sources, ", "))
}
