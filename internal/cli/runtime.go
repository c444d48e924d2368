package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/ytget/soft-downloader/internal/app"
	"github.com/ytget/soft-downloader/internal/backend"
	"github.com/ytget/soft-downloader/internal/catalog"
	"github.com/ytget/soft-downloader/internal/config"
	"github.com/ytget/soft-downloader/internal/download"
	"github.com/ytget/soft-downloader/internal/logging"
	"github.com/ytget/soft-downloader/internal/metrics"
)

// Runtime holds what every command shares: configuration, logger, metrics
// and the backend connections opened on its behalf.
type Runtime struct {
	Config  *config.Config
	Manager *config.Manager
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Demo replaces the catalog and the backend with in-process fakes
	Demo       bool
	Simulation backend.Simulation

	closers []func() error
}

// runtimeOptions are the persistent flags of the root command
type runtimeOptions struct {
	configFile string
	envDir     string
	logLevel   string
	demo       bool
}

// newRuntime loads .env files and the configuration and builds the logger
func newRuntime(opts runtimeOptions) (*Runtime, error) {
	if err := config.LoadEnvFiles(opts.envDir); err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(opts.configFile)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		if err := mgr.Set("logging.level", opts.logLevel); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	cfg := mgr.Get()
	if opts.demo {
		cfg.Backend.Kind = config.BackendLoopback
	}

	// the logger itself passes everything; the global level does the
	// filtering so that it can change on config reload
	logger := logging.New(logging.Config{
		Level:      zerolog.TraceLevel,
		Format:     cfg.Logging.Format,
		TimeFormat: time.RFC3339,
	})
	if err := applyLogLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:     cfg,
		Manager:    mgr,
		Logger:     logger,
		Metrics:    metrics.New(),
		Demo:       opts.demo,
		Simulation: backend.DefaultSimulation(),
	}

	if file := mgr.GetConfigFile(); file != "" {
		logger.Debug().Str("file", file).Msg("config loaded")
	}
	return rt, nil
}

// applyLogLevel sets the process-wide zerolog level
func applyLogLevel(level string) error {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// watchConfig hot-reloads the log level when the config file changes
func (rt *Runtime) watchConfig() {
	if rt.Manager.GetConfigFile() == "" {
		return
	}

	rt.Manager.OnConfigChange(func(cfg *config.Config) {
		if err := applyLogLevel(cfg.Logging.Level); err != nil {
			rt.Logger.Warn().Err(err).Msg("ignoring log level from reloaded config")
			return
		}
		rt.Logger.Info().Str("level", cfg.Logging.Level).Msg("log level reloaded")
	})
	if err := rt.Manager.Watch(rt.Logger); err != nil {
		rt.Logger.Debug().Err(err).Msg("config watch disabled")
	}
}

// serveMetrics exposes /metrics until ctx ends when metrics.addr is set
func (rt *Runtime) serveMetrics(ctx context.Context) {
	addr := rt.Config.Metrics.Addr
	if addr == "" {
		return
	}

	go func() {
		rt.Logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := rt.Metrics.Serve(ctx, addr); err != nil {
			rt.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
}

// catalogClient returns the client for the configured catalog service
func (rt *Runtime) catalogClient() *catalog.Client {
	if rt.Demo {
		return catalog.NewClient(demoCatalog{})
	}
	return catalog.NewClient(catalog.NewHTTPService(catalog.HTTPConfig{
		BaseURL:      rt.Config.Catalog.URL,
		Timeout:      rt.Config.Catalog.Timeout,
		ResolveLinks: rt.Config.Catalog.ResolveLinks,
		Concurrency:  rt.Config.Catalog.Concurrency,
	}))
}

// buildCore opens the configured backend and wires it into a Core. The
// backend lives until Close is called.
func (rt *Runtime) buildCore(ctx context.Context) (*app.Core, error) {
	requester, bus, err := rt.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	orch := download.NewOrchestrator(requester, bus,
		download.WithLogger(rt.Logger),
		download.WithMetrics(rt.Metrics),
	)
	return app.NewCore(rt.catalogClient(), orch, rt.Logger.With().Str("component", "core").Logger()), nil
}

func (rt *Runtime) openBackend(ctx context.Context) (backend.Requester, backend.Bus, error) {
	logger := rt.Logger.With().Str("component", "backend").Logger()

	switch rt.Config.Backend.Kind {
	case config.BackendProcess:
		// the child outlives signal cancellation so interrupted runs can still send cancels; Close ends it
		p, err := backend.StartProcess(context.WithoutCancel(ctx), backend.ProcessConfig{
			Command: rt.Config.Backend.Command,
			Args:    slices.Clone(rt.Config.Backend.Args),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, p.Close)
		return p, p, nil

	case config.BackendAMQP:
		a, err := backend.DialAMQP(backend.AMQPConfig{
			URL:          rt.Config.AMQP.URL,
			Exchange:     rt.Config.AMQP.Exchange,
			RequestQueue: rt.Config.AMQP.RequestQueue,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, a.Close)
		return a, a, nil

	case config.BackendLoopback:
		lb := backend.NewLoopback()
		lb.Simulate(rt.Simulation)
		logger.Info().Int("steps", rt.Simulation.Steps).Msg("using simulated backend")
		return lb, lb, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q", rt.Config.Backend.Kind)
	}
}

// Close releases backend connections in reverse order of opening
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
