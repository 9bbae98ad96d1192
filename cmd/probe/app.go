package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/probe/internal/config"
	"github.com/born-ml/probe/internal/logger"
	"github.com/born-ml/probe/internal/monitor"
	"github.com/born-ml/probe/internal/scenario"
)

// options collects the global flags.
type options struct {
	configPath string
	logLevel   string
	logFormat  string

	cacheDir   string
	arch       string
	weightsURL string
	imageURL   string
	iterations int64

	trace           bool
	traceFormat     string
	traceMemory     bool
	traceTimestamps bool
	traceCallers    bool
}

// state is built once per invocation by the Before hook.
type state struct {
	cfg     config.Config
	log     logger.Logger
	monitor *monitor.Monitor
	printer *monitor.Printer
}

type stateKey struct{}

func stateFrom(ctx context.Context) *state {
	st, _ := ctx.Value(stateKey{}).(*state)
	return st
}

func newApp() *cli.Command {
	opts := &options{}
	return &cli.Command{
		Name:  "probe",
		Usage: "Exercise the tensor engine and trace what it does",
		Flags: globalFlags(opts),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			st, err := setup(cmd, opts)
			if err != nil {
				return ctx, err
			}
			ctx = context.WithValue(ctx, stateKey{}, st)
			return logger.WithContext(ctx, st.log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			addFixedCmd(),
			addChainedCmd(),
			addCmd(),
			resnetCmd(),
			devicesCmd(),
			versionCmd(),
		},
	}
}

func globalFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       config.Path(),
			Destination: &opts.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       config.DefaultLogLevel,
			Destination: &opts.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       config.DefaultLogFormat,
			Destination: &opts.logFormat,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "directory for downloaded model weights",
			Destination: &opts.cacheDir,
		},
		&cli.StringFlag{
			Name:        "arch",
			Usage:       "ResNet architecture for the resnet command",
			Destination: &opts.arch,
		},
		&cli.StringFlag{
			Name:        "weights-url",
			Usage:       "override the model weights URL",
			Destination: &opts.weightsURL,
		},
		&cli.StringFlag{
			Name:        "image-url",
			Usage:       "override the sample image URL",
			Destination: &opts.imageURL,
		},
		&cli.Int64Flag{
			Name:        "iterations",
			Aliases:     []string{"n"},
			Usage:       "iterations of the add <device> command",
			Value:       config.DefaultIterations,
			Destination: &opts.iterations,
		},
		&cli.BoolFlag{
			Name:        "trace",
			Usage:       "print forward and backward operator events",
			Destination: &opts.trace,
		},
		&cli.StringFlag{
			Name:        "trace-format",
			Usage:       "trace output format (text, json)",
			Value:       "text",
			Destination: &opts.traceFormat,
		},
		&cli.BoolFlag{
			Name:        "trace-memory",
			Usage:       "also print allocation events (implies --trace)",
			Destination: &opts.traceMemory,
		},
		&cli.BoolFlag{
			Name:        "trace-timestamps",
			Usage:       "add timestamps to text trace output",
			Destination: &opts.traceTimestamps,
		},
		&cli.BoolFlag{
			Name:        "trace-callers",
			Usage:       "print the calling frames of each operator (implies --trace)",
			Destination: &opts.traceCallers,
		},
	}
}

// setup merges the config file, the environment and the flags (in increasing
// precedence) and builds the logger and the optional monitor.
func setup(cmd *cli.Command, opts *options) (*state, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, &cfg)

	level, err := logger.ParseLevel(config.Or(cfg.LogLevel, config.DefaultLogLevel))
	if err != nil {
		return nil, err
	}
	log, err := logger.Open(config.Or(cfg.LogFormat, config.DefaultLogFormat), cmd.Root().ErrWriter, level)
	if err != nil {
		return nil, err
	}
	log = log.With("run_id", uuid.NewString())

	st := &state{cfg: cfg, log: log}
	if opts.trace || opts.traceMemory || opts.traceCallers {
		if st.monitor, st.printer, err = newTracer(cmd, opts); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cli.Command, opts *options, cfg *config.Config) {
	if cmd.IsSet("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if cmd.IsSet("cache-dir") {
		cfg.CacheDir = opts.cacheDir
	}
	if cmd.IsSet("arch") {
		cfg.Arch = opts.arch
	}
	if cmd.IsSet("weights-url") {
		cfg.WeightsURL = opts.weightsURL
	}
	if cmd.IsSet("image-url") {
		cfg.ImageURL = opts.imageURL
	}
	if cmd.IsSet("iterations") {
		n := int(opts.iterations)
		cfg.Iterations = &n
	}
}

func newTracer(cmd *cli.Command, opts *options) (*monitor.Monitor, *monitor.Printer, error) {
	format, err := monitor.ParseFormat(opts.traceFormat)
	if err != nil {
		return nil, nil, err
	}
	m := monitor.New()
	m.EnableCallPath(opts.traceCallers)
	domains := []monitor.Domain{monitor.Function, monitor.BackwardFunction}
	if opts.traceMemory {
		domains = append(domains, monitor.Memory)
	}
	for _, d := range domains {
		if err := m.EnableDomain(d); err != nil {
			return nil, nil, err
		}
	}
	p := monitor.NewPrinter(cmd.Root().Writer, monitor.WithFormat(format), monitor.WithTimestamps(opts.traceTimestamps))
	if err := m.Subscribe(p.Handle); err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// run builds a Runner and executes f with the monitor running around it.
func run(ctx context.Context, f func(context.Context, *scenario.Runner) error) error {
	st := stateFrom(ctx)
	if st == nil {
		return fmt.Errorf("probe: command run without setup")
	}
	r := scenario.New(st.cfg, st.log)
	if st.monitor == nil {
		return f(ctx, r)
	}

	r.Monitor = st.monitor
	if err := st.monitor.Start(); err != nil {
		return err
	}
	runErr := f(ctx, r)
	if err := st.monitor.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	if err := st.printer.Err(); err != nil && runErr == nil {
		runErr = fmt.Errorf("write trace: %w", err)
	}
	return runErr
}
