package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kecskemeti/arm-hand-ai/internal/platform"
	"github.com/kecskemeti/arm-hand-ai/pkg/armhand"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "armhandctl",
		Short:         "Evolve and replay arm-hold controllers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults are embedded)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	root.AddCommand(
		newRunCmd(opts),
		newEvalCmd(opts),
		newCheckpointsCmd(opts),
		newRunsCmd(opts),
		newTopologiesCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (armhand.Config, error) {
	cfg, err := armhand.LoadConfig(o.configPath)
	if err != nil {
		return armhand.Config{}, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) newClient(cfg armhand.Config) (*armhand.Client, error) {
	logger, err := platform.NewLogger(o.stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return armhand.New(armhand.Options{Config: cfg, Logger: logger})
}
