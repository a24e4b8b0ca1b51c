package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ttscorpus/pkg/config"
	"ttscorpus/pkg/logging"
	"ttscorpus/pkg/metrics"
	"ttscorpus/pkg/version"
)

const defaultConfigPath = "configs/ttscorpus.yaml"

// Exit codes.
const (
	exitOK       = 0
	exitFailed   = 1
	exitWarnings = 2
)

// errWarnings marks a command that finished but found problems.
var errWarnings = errors.New("completed with warnings")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps its outcome to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.finish()

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errWarnings):
		return exitWarnings
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
}

// app carries global flags and the state a command sets up.
type app struct {
	configPath  string
	logLevel    string
	metricsFile string
	trace       bool

	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	metrics *metrics.Metrics
	cleanup func()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ttscorpus",
		Short: "Build and verify train/test speech corpora",
		Long: `ttscorpus partitions a tree of per-label recordings into a train/test
corpus of 16 kHz mono PCM wav files with paired .lab label files, and
verifies existing corpora for pairing and format defects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath, "config file (created with defaults if missing)")
	pf.StringVar(&a.logLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	pf.BoolVar(&a.trace, "trace", false, "log per-file decode and resample details")

	root.AddCommand(a.splitCmd(), a.verifyCmd(), a.statsCmd(), a.initConfigCmd(), a.versionCmd())
	return root
}

// setup loads .env and config, then initializes console logging and metrics.
// Nothing is written to disk; commands that produce output call logToFile
// once their inputs are validated.
func (a *app) setup() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsFile != "" {
		cfg.Metrics.Textfile = a.metricsFile
	}
	a.cfg = cfg

	logging.Console = a.stderr
	logging.EnableTrace = a.trace
	if _, err := logging.Init(&config.LogConfig{Level: cfg.Log.Level}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	a.metrics = metrics.New()
	slog.Debug("ttscorpus started", "version", version.Version, "config", a.configPath)
	return nil
}

// logToFile adds the configured log file to console logging.
func (a *app) logToFile() error {
	if a.cfg.Log.Path == "" {
		return nil
	}
	cleanup, err := logging.Init(&a.cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.cleanup = cleanup
	return nil
}

// finish flushes metrics and closes log files.
func (a *app) finish() {
	if a.cfg != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			slog.Warn("Metrics not written", "error", err)
		}
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}
