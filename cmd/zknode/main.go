// Package main is the entry point for the zknode binary: a single
// operator's co-SNARK MPC service node. It exposes one subcommand,
// serve, which bootstraps the node's identity and data directory and
// then blocks serving the job surface.
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cosnark/zksaas-node/internal/config"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the root Cobra command and executes it.
func run(ctx context.Context) error {
	rootCmd, err := newRootCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "zknode",
		Short:         "zknode runs one operator's co-SNARK MPC service node.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	conf, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	serveCmd := newServeCommand(conf)
	c.AddCommand(serveCmd)

	return c, nil
}

// newServeCommand builds the serve subcommand. Its flags are bound
// into conf so that every config.Option resolves flag > environment
// variable > config file > default, matching the teacher's layered
// configuration convention.
func newServeCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the node's identity and serve its job surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context(), conf)
			if err != nil {
				return fmt.Errorf("assemble node: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.NodeOptions); err != nil {
		// BindFlags only fails on programmer error (duplicate or
		// malformed option definitions), never on user input.
		panic(fmt.Sprintf("bind node flags: %v", err))
	}

	return cmd
}
