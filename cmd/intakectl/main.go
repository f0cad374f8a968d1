// cmd/intakectl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "intakectl",
		Short: "Operator tool for the loan intake workers",
		Long: `intakectl talks to the same staff API, Redis and Zeebe broker as the
intake workers. It previews product matching and document checklists, submits
applications by hand, inspects signing and manages signing overrides.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: configs/config.yaml)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "yaml", "output format (yaml, json)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		productsCmd(a),
		recommendCmd(a),
		documentsCmd(a),
		submitCmd(a),
		uploadCmd(a),
		checkDocumentsCmd(a),
		statusCmd(a),
		signingCmd(a),
		registryCmd(a),
		processCmd(a),
	)
	return root
}
