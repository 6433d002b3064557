// Command serialtail follows the serial output of a kconsole kernel and prints
// the log records it contains by level.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// options holds the values bound to the command line flags.
type options struct {
	configFile string
	verbose    bool
	flags      Config
}

func newRootCmd() *cobra.Command {
	opts := options{flags: DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "serialtail [file]",
		Short: "Follow kconsole serial output and filter log records by level",
		Long: `serialtail reads the serial stream of a kconsole kernel from a file, stdin
or an emulator unix socket (for example "qemu -serial unix:/tmp/ttyS0,server").

Colored log records are mapped back to their level; output that was not
written by the kernel logger is reported as "raw".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if opts.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}

			var err error
			logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.flags.Socket, "socket", opts.flags.Socket, "read from a unix socket instead of a file")
	flags.StringVarP(&opts.flags.Level, "level", "l", opts.flags.Level, "most verbose level to print (error, warn, info, debug, trace)")
	flags.BoolVar(&opts.flags.JSON, "json", opts.flags.JSON, "print one JSON entry per record")
	flags.BoolVar(&opts.flags.NoRaw, "no-raw", opts.flags.NoRaw, "hide output that was not written by the kernel logger")
	flags.BoolVar(&opts.flags.Timestamps, "timestamps", opts.flags.Timestamps, "prefix records with the time they were received")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// resolve merges the config file (if any) with the flags that were
// explicitly set on the command line.
func (o *options) resolve(cmd *cobra.Command, args []string) (Config, error) {
	cfg := DefaultConfig()
	if o.configFile != "" {
		var err error
		if cfg, err = LoadConfig(o.configFile); err != nil {
			return cfg, err
		}
		logger.Debug("loaded config", zap.String("path", o.configFile))
	}

	flags := cmd.Flags()
	if flags.Changed("socket") {
		cfg.Socket = o.flags.Socket
	}
	if flags.Changed("level") {
		cfg.Level = o.flags.Level
	}
	if flags.Changed("json") {
		cfg.JSON = o.flags.JSON
	}
	if flags.Changed("no-raw") {
		cfg.NoRaw = o.flags.NoRaw
	}
	if flags.Changed("timestamps") {
		cfg.Timestamps = o.flags.Timestamps
	}
	if len(args) == 1 {
		cfg.Input = args[0]
	}

	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	in, err := openInput(ctx, cfg)
	if err != nil {
		return err
	}

	var sink Sink = newTextSink(out, cfg.Timestamps)
	if cfg.JSON {
		sink = newJSONSink(out, cfg.Timestamps)
	}

	logger.Debug("tailing serial output",
		zap.String("input", cfg.Input),
		zap.String("socket", cfg.Socket),
		zap.String("level", cfg.Level),
		zap.Bool("json", cfg.JSON))

	err = Tail(ctx, in, Filter{MaxLevel: cfg.MaxLevel(), NoRaw: cfg.NoRaw}, sink)
	_ = sink.Sync()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "[serialtail] error: %s\n", err)
		os.Exit(1)
	}
}
