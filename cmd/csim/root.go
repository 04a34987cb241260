package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/accesslog"
	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/config"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

// options holds the raw command-line flags.
type options struct {
	configPath      string
	setBits         uint
	lines           int
	blockBits       uint
	traceFile       string
	engine          string
	marker          string
	separator       string
	accessLog       string
	accessLogFormat string
	logLevel        string
	logFormat       string
	verbose         bool
	report          bool
	jsonOutput      bool
	cpuProfile      string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "csim [flags] [S E B TRACE]",
		Short: "Simulate a set-associative LRU cache against a memory trace",
		Long: `csim replays a Valgrind lackey memory trace against a set-associative ` +
			`cache with least-recently-used replacement and reports hits, misses ` +
			`and evictions. The cache has 2^s sets of E lines with 2^b-byte blocks. ` +
			`Geometry and trace may be given as flags, as the four positional ` +
			`arguments S E B TRACE, or in a JSON or YAML config file; flags win.`,
		Args:          positionalArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}
			return run(cfg, opts, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON or YAML run configuration")
	flags.UintVarP(&opts.setBits, "set-bits", "s", 0, "number of set index bits (2^s sets)")
	flags.IntVarP(&opts.lines, "lines", "E", 0, "number of lines per set (associativity)")
	flags.UintVarP(&opts.blockBits, "block-bits", "b", 0, "number of block offset bits (2^b-byte blocks)")
	flags.StringVarP(&opts.traceFile, "trace", "t", "", "trace file to replay")
	flags.StringVar(&opts.engine, "engine", "", "cache engine: lru or akita")
	flags.StringVar(&opts.marker, "marker", "", "first character of data-access records")
	flags.StringVar(&opts.separator, "separator", "", "separator between address and size")
	flags.StringVar(&opts.accessLog, "access-log", "", "write every access to this file")
	flags.StringVar(&opts.accessLogFormat, "access-log-format", "", "access log format: text, csv or sqlite")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print the outcome of every access")
	flags.BoolVar(&opts.report, "report", false, "print a breakdown after the summary")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the result as JSON")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")

	return cmd
}

func positionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 4 {
		return fmt.Errorf("expected 0 or 4 positional arguments (S E B TRACE), got %d", len(args))
	}
	return nil
}

// resolve merges the config file, positional arguments and flags, in that
// order of precedence from lowest to highest, and validates the result.
func (o *options) resolve(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	if len(args) == 4 {
		if err := applyPositional(cfg, args); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("set-bits") {
		cfg.SetIndexBits = o.setBits
	}
	if flags.Changed("lines") {
		cfg.LinesPerSet = o.lines
	}
	if flags.Changed("block-bits") {
		cfg.BlockOffsetBits = o.blockBits
	}
	if flags.Changed("trace") {
		cfg.TraceFile = o.traceFile
	}
	if flags.Changed("engine") {
		cfg.Engine = cache.Engine(o.engine)
	}
	if flags.Changed("marker") {
		cfg.Marker = o.marker
	}
	if flags.Changed("separator") {
		cfg.Separator = o.separator
	}
	if flags.Changed("access-log") {
		cfg.AccessLog = o.accessLog
	}
	if flags.Changed("access-log-format") {
		cfg.AccessLogFormat = accesslog.Format(o.accessLogFormat)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TraceFile == "" {
		return nil, errors.New("no trace file given")
	}

	return cfg, nil
}

func applyPositional(cfg *config.Config, args []string) error {
	s, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid set bits %q: %w", args[0], err)
	}
	e, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid lines per set %q: %w", args[1], err)
	}
	b, err := strconv.ParseUint(args[2], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid block bits %q: %w", args[2], err)
	}

	cfg.SetIndexBits = uint(s)
	cfg.LinesPerSet = e
	cfg.BlockOffsetBits = uint(b)
	cfg.TraceFile = args[3]

	return nil
}

func run(cfg *config.Config, opts *options, stdout, stderr io.Writer) error {
	logger := setupLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	model, err := cache.NewModel(cfg.Engine, cfg.Geometry())
	if err != nil {
		return err
	}

	reader, err := trace.Open(cfg.TraceFile)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	simOpts := []sim.SimulatorOption{
		sim.WithParser(trace.NewParser(cfg.ParserOptions())),
		sim.WithLogger(logger),
	}

	sink, err := openSink(cfg, opts, stdout, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		closeSink := sync.OnceFunc(func() {
			if err := sink.Close(); err != nil {
				logger.Error("failed to close access log", "error", err)
			}
		})
		atexit.Register(closeSink)
		defer closeSink()

		simOpts = append(simOpts, sim.WithSink(sink))
	}

	logger.Debug("starting simulation",
		"geometry", cfg.Geometry().String(),
		"engine", cfg.Engine,
		"trace", cfg.TraceFile)

	result, err := sim.New(model, simOpts...).Run(reader)
	if err != nil {
		return err
	}

	logger.Debug("simulation finished",
		"records", result.Records,
		"skipped", result.Skipped,
		"malformed", result.Malformed)

	switch {
	case opts.jsonOutput:
		return result.WriteJSON(stdout)
	case opts.report:
		return result.WriteText(stdout)
	default:
		_, err := fmt.Fprintln(stdout, result.Summary())
		return err
	}
}

// openSink combines the verbose stdout log and the access log file. It
// returns nil when neither is requested.
func openSink(
	cfg *config.Config,
	opts *options,
	stdout io.Writer,
	logger *slog.Logger,
) (accesslog.Sink, error) {
	var sinks []accesslog.Sink

	if opts.verbose {
		sinks = append(sinks, accesslog.NewTextSink(stdout))
	}

	if cfg.AccessLogEnabled() {
		s, err := accesslog.Open(cfg.AccessLogFormat, cfg.AccessLog)
		if err != nil {
			return nil, err
		}

		path := cfg.AccessLog
		if db, ok := s.(*accesslog.SQLiteSink); ok {
			path = db.Path()
		}
		logger.Info("writing access log", "path", path, "format", cfg.AccessLogFormat)

		sinks = append(sinks, s)
	}

	if len(sinks) == 0 {
		return nil, nil
	}

	return accesslog.Multi(sinks...), nil
}
