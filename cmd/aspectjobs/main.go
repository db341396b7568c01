package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/aspectjobs/internal/config"
	"github.com/ZanzyTHEbar/aspectjobs/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run builds the command tree and executes it with args.
func run(ctx context.Context, out, errOut io.Writer, args []string) error {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{errOut: errOut}
	root := &cobra.Command{
		Use:           "aspectjobs",
		Short:         "Run dependency-ordered job frames on a fixed worker pool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a JSON configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format (console, json)")

	root.AddCommand(
		newRunCmd(opts),
		newBenchCmd(opts),
		newBarrierCmd(opts),
	)
	return root
}

// load resolves configuration from file, environment and flags, in that
// order, and builds the logger. override applies command-specific flags.
func (o *globalOptions) load(cmd *cobra.Command, override func(*config.Config)) (*config.Config, zerolog.Logger, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(o.configPath); err != nil {
			return nil, zerolog.Nop(), err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, zerolog.Nop(), err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, o.errOut)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
