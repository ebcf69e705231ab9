// Package main is the entry point for the polis-compose binary.
// It assembles the composed types declared in a manifest and lets operators
// inspect them, call their methods and validate the manifest.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/polisai/polis-compose/pkg/config"
	"github.com/polisai/polis-compose/pkg/engine"
	"github.com/polisai/polis-compose/pkg/logging"
	"github.com/polisai/polis-compose/pkg/telemetry"
)

const defaultLogLevel = "info"

// CLIConfig holds the parsed global flags
type CLIConfig struct {
	Config   string
	LogLevel string
	Pretty   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for polis-compose
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polis-compose",
		Short: "Compose capability bundles into types and intercept their calls",
		Long: `polis-compose assembles types from named capability bundles declared in a
YAML manifest and applies the manifest's interceptors (log, metrics, trace,
policy) to every instance it constructs.

Example:
  polis-compose -c compose.yaml call Dog speak --init pizza`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to manifest file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Use human readable log output")

	rootCmd.AddCommand(newTypesCmd(), newCallCmd(), newValidateCmd())
	return rootCmd
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List composed types and their method tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			e, err := engine.New(cmd.Context(), env.cfg, env.engineOptions())
			if err != nil {
				return err
			}
			return printTypes(cmd.OutOrStdout(), e.Types())
		},
	}
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <type> <method> [args...]",
		Short: "Construct an instance and call one of its methods",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runCall,
	}
	cmd.Flags().StringArray("init", nil, "Argument passed to initialize (repeatable)")
	cmd.Flags().Bool("metrics", false, "Print the recorded metrics after the call")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	cmd.Flags().Bool("watch", false, "Keep running and revalidate when the manifest changes")
	return cmd
}

// parseCLIConfig reads the global flags
func parseCLIConfig(cmd *cobra.Command) (*CLIConfig, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}

	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return nil, fmt.Errorf("failed to get pretty flag: %w", err)
	}

	return &CLIConfig{Config: configPath, LogLevel: logLevel, Pretty: pretty}, nil
}

// environment is the loaded manifest plus the loggers built from it.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	console logging.Console
}

func (env *environment) engineOptions() engine.Options {
	return engine.Options{Logger: env.logger, Console: env.console}
}

// setup loads the manifest and builds the loggers. Flags override the
// manifest. Operational logs go through slog; the Loggable bundle and the log
// interceptor write through zerolog.
func setup(cmd *cobra.Command) (*environment, error) {
	cli, err := parseCLIConfig(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Pretty {
		cfg.Logging.Pretty = true
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	}
	logger := logging.NewLogger(logCfg)
	slog.SetDefault(logger)

	return &environment{
		cfg:     cfg,
		logger:  logger,
		console: logging.ZerologConsole(logging.SetupLogger(logCfg)),
	}, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg, logger := env.cfg, env.logger

	initRaw, err := cmd.Flags().GetStringArray("init")
	if err != nil {
		return fmt.Errorf("failed to get init flag: %w", err)
	}
	showMetrics, err := cmd.Flags().GetBool("metrics")
	if err != nil {
		return fmt.Errorf("failed to get metrics flag: %w", err)
	}

	ctx := cmd.Context()
	provider, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics()
	opts := env.engineOptions()
	opts.Metrics = metrics
	e, err := engine.New(ctx, cfg, opts)
	if err != nil {
		return err
	}

	typeName, method := args[0], args[1]
	ctx, span := otel.Tracer("polis-compose").Start(ctx, "polis-compose.call")
	defer span.End()

	logger.Debug("Calling method", "type", typeName, "method", method, "args", len(args)-2)
	result, callErr := e.Call(ctx, typeName, parseArgs(initRaw), method, parseArgs(args[2:])...)
	if callErr != nil {
		span.RecordError(callErr)
	} else if result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), result)
	}

	// Metrics print even when the call fails.
	if showMetrics {
		out := cmd.OutOrStdout()
		if err := metrics.WriteText(out); err != nil {
			return err
		}
		if err := provider.WriteCallCounts(ctx, out); err != nil {
			return err
		}
	}
	return callErr
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cli, err := parseCLIConfig(cmd)
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to get watch flag: %w", err)
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := checkManifest(cmd, env, env.cfg); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	if cli.Config == "" {
		return fmt.Errorf("--watch requires --config")
	}

	provider, err := config.NewFileProvider(cli.Config, env.logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates := provider.Subscribe()
	<-updates // current manifest, already checked
	env.logger.Info("Watching manifest", "path", cli.Config)
	for {
		select {
		case <-ctx.Done():
			env.logger.Info("Stopped watching manifest")
			return nil
		case next, ok := <-updates:
			if !ok {
				return nil
			}
			if err := checkManifest(cmd, env, next); err != nil {
				env.logger.Error("Manifest rejected", "error", err)
			}
		}
	}
}

// checkManifest assembles every type, which resolves bundles and compiles
// policy modules, and reports the result.
func checkManifest(cmd *cobra.Command, env *environment, cfg *config.Config) error {
	e, err := engine.New(cmd.Context(), cfg, env.engineOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "manifest ok: %d types\n", len(e.Types()))
	return nil
}

func printTypes(w io.Writer, infos []engine.TypeInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tBUNDLES\tMETHODS\tINTERCEPT")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			info.Name,
			orDash(info.Bundles),
			orDash(info.Methods),
			orDash(info.Intercept),
		)
	}
	return tw.Flush()
}

func orDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}

// parseArgs converts command line arguments to ints, floats or bools where
// they parse as such. Everything else stays a string with environment
// variables expanded.
func parseArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		args[i] = parseArg(s)
	}
	return args
}

func parseArg(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return os.ExpandEnv(s)
}
