package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/UnknownOlympus/aquifer/internal/client"
	"github.com/UnknownOlympus/aquifer/internal/config"
	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/geocoding"
	"github.com/UnknownOlympus/aquifer/internal/logger"
	"github.com/UnknownOlympus/aquifer/internal/table"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
)

// GlobalOptions apply to every command.
type GlobalOptions struct {
	Config string `short:"c" long:"config" env:"SGU_CONFIG" description:"YAML config file"`
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"csv" choice:"yaml" default:"json"`
	Output string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Debug  bool   `short:"d" long:"debug" description:"Trace requests and print a metrics summary"`

	Sort      string   `long:"sort" description:"Sort table rows by column"`
	Series    string   `long:"series" description:"Print only an index,value column pair, e.g. obsdatum,niva"`
	Centroids bool     `long:"centroids" description:"Add centroid columns for every geometry"`
	ParseTime []string `long:"parse-time" description:"Parse column as a date (repeatable)"`
}

// tabular reports whether the output goes through the table conversion even
// for JSON.
func (o *GlobalOptions) tabular() bool {
	return o.Sort != "" || o.Series != "" || o.Centroids || len(o.ParseTime) > 0
}

func (o *GlobalOptions) tableOptions() []table.Option {
	opts := []table.Option{table.WithIDColumn("id")}
	for _, col := range o.ParseTime {
		opts = append(opts, table.WithTimeColumn(col, col))
	}
	if o.Centroids {
		opts = append(opts, table.WithCentroids())
	}
	return opts
}

// validate checks the output options before any request is made.
func (o *GlobalOptions) validate() error {
	if (o.Format != "json" || o.tabular()) && !table.Enabled {
		return fmt.Errorf("%w: table output is not available in this build", errs.ErrInvalidArgument)
	}
	if o.Series != "" {
		index, data, ok := strings.Cut(o.Series, ",")
		if !ok || index == "" || data == "" {
			return fmt.Errorf("%w: --series wants index,value, got %q", errs.ErrInvalidArgument, o.Series)
		}
	}
	return nil
}

// app carries what the commands share once the global options are parsed.
type app struct {
	ctx      context.Context //nolint:containedctx // go-flags commands take no context
	opts     *GlobalOptions
	out      io.Writer
	closer   io.Closer
	log      *slog.Logger
	reg      *prometheus.Registry
	client   *client.Client
	geocoder client.Geocoder
	cfg      *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], &app{out: os.Stdout}))
}

func run(ctx context.Context, args []string, a *app) int {
	var opts GlobalOptions
	a.opts = &opts
	a.ctx = ctx

	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := a.setup(); err != nil {
			return err
		}
		defer a.closeOutput()
		err := cmd.Execute(args)
		a.logMetrics(ctx)
		return err
	}
	registerCommands(parser, a)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				return exitOK
			}
			return exitUsage
		}
		return exitCode(err)
	}
	return exitOK
}

// setup loads the configuration and builds the logger, client and geocoder.
// Pre-populated fields are kept.
func (a *app) setup() error {
	if err := a.opts.validate(); err != nil {
		return err
	}
	if a.cfg == nil {
		cfg, err := config.Load(a.opts.Config)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.opts.Debug {
		a.cfg.Debug = true
	}
	if a.log == nil {
		a.log = logger.Setup(a.cfg.Env, os.Stderr, a.cfg.Debug)
	}
	if a.reg == nil {
		a.reg = prometheus.NewRegistry()
	}

	if a.client == nil {
		c, err := client.New(a.cfg, client.WithLogger(a.log), client.WithRegistry(a.reg))
		if err != nil {
			return err
		}
		a.client = c
	}

	if a.opts.Output != "" {
		f, err := os.Create(a.opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		a.out = f
		a.closer = f
	}
	return nil
}

func (a *app) closeOutput() {
	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil {
		a.log.Error("Failed to close output file", "error", err)
	}
	a.closer = nil
}

// placeGeocoder builds the configured geocoder on first use.
func (a *app) placeGeocoder() (client.Geocoder, error) {
	if a.geocoder != nil {
		return a.geocoder, nil
	}
	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(a.cfg.Geocoder.Type),
		APIKey:    a.cfg.Geocoder.APIKey,
		Transport: a.client.Transport(),
		Logger:    a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	a.log.Debug("Geocoding provider initialized", "type", a.cfg.Geocoder.Type)
	a.geocoder = provider
	return provider, nil
}

// logMetrics logs the client counters at debug level.
func (a *app) logMetrics(ctx context.Context) {
	if a.reg == nil || a.log == nil || !a.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	families, err := a.reg.Gather()
	if err != nil {
		a.log.DebugContext(ctx, "Failed to gather metrics", "error", err)
		return
	}

	attrs := make([]any, 0, 2*len(families))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "sgu_") {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		attrs = append(attrs, mf.GetName(), total)
	}
	a.log.DebugContext(ctx, "Client metrics", attrs...)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return exitNotFound
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, errs.ErrConversion):
		return exitUsage
	default:
		return exitFailure
	}
}
