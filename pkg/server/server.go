package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/admission"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/allowlist"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/audit"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/config"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard/cache"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/pipeline"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/proxy"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/proxy/middleware"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/ratelimit"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/telemetry/metrics"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/upstream"
)

// auditBufferSize bounds the async recorder queue.
const auditBufferSize = 1000

// Options adjusts server construction beyond the configuration file.
type Options struct {
	// Logger receives all server logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ConfigPath enables hot reload of the allowlist and rate limits
	// when set. Empty disables watching.
	ConfigPath string

	// Scanner overrides the remote guard scanner, for tests.
	Scanner guard.Scanner
}

// Server is the assembled proxy: every component built from configuration
// and ready to serve.
type Server struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	collector  *metrics.Collector
	store      cache.Store
	controller *admission.Controller
	limiter    *ratelimit.Limiter
	allow      atomic.Pointer[allowlist.Allowlist]
	client     *upstream.Client
	auditStore *audit.Store
	recorder   *audit.Recorder
	pruner     *audit.Pruner
	pipeline   *pipeline.Pipeline
	handler    *proxy.Handler

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.Mutex
	isRunning    bool
}

// New builds a Server from validated configuration. The caller owns the
// returned server and must Start it; resources are released on Shutdown.
func New(cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		opts:   opts,
		logger: logger.With("component", "server"),
	}

	al, err := allowlist.New(cfg.Allowlist)
	if err != nil {
		return nil, fmt.Errorf("failed to build allowlist: %w", err)
	}
	s.allow.Store(al)

	s.store, err = cache.New(cache.Config{
		Backend:    cfg.Cache.Backend,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		RedisURL:   cfg.Cache.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}

	s.controller = admission.NewController(admission.Config{
		MaxParallel:  int(cfg.Admission.MaxParallel),
		MaxQueue:     cfg.Admission.MaxQueue,
		QueueTimeout: cfg.Admission.QueueTimeout,
	})

	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		Burst:     cfg.RateLimit.Burst,
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
	})

	s.client = upstream.NewClient(upstream.Config{
		BaseURL:         cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		MaxConnections:  cfg.Upstream.MaxConnections,
		MaxIdleConns:    cfg.Upstream.MaxIdleConns,
		IdleConnTimeout: cfg.Upstream.IdleConnTimeout,
		InlineBodyLimit: cfg.Upstream.InlineBodyLimit,
	})

	if *cfg.Telemetry.Metrics.Enabled {
		s.collector = metrics.NewCollector(cfg.Telemetry.Metrics)
	}

	if *cfg.Audit.Enabled {
		s.auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		s.recorder = audit.NewRecorder(s.auditStore, auditBufferSize)
		s.pruner = audit.NewPruner(s.auditStore, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule)
	}

	scanner := opts.Scanner
	if scanner == nil {
		scanner = guard.NewRemoteScanner(guard.RemoteConfig{
			ServiceURL: cfg.Guard.ServiceURL,
			Timeout:    cfg.Guard.Timeout,
		})
	}

	s.pipeline = pipeline.New(scanner, s.store, s.controller, s.client, pipeline.Config{
		ScanCadenceChars:       cfg.Guard.ScanCadenceChars,
		MinOutputLength:        cfg.Guard.MinOutputLengthForScan,
		BlockOnInputScanError:  *cfg.Guard.BlockOnInputScanError,
		BlockOnOutputScanError: *cfg.Guard.BlockOnOutputScanError,
		ConfigVersion:          cfg.Guard.ConfigVersion,
	}, &observer{collector: s.collector, recorder: s.recorder, store: s.store})

	s.handler = proxy.NewHandler(proxy.HandlerConfig{
		Pipeline:       s.pipeline,
		Controller:     s.controller,
		Limiter:        s.limiter,
		Store:          s.store,
		Allow:          s.allow.Load,
		Collector:      s.collector,
		RequestTimeout: cfg.Proxy.RequestTimeout,
		Logger:         logger,
	})

	return s, nil
}

// Handler returns the fully assembled HTTP handler, routes behind the
// middleware chain.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	s.handler.Register(api)

	var apiHandler http.Handler = api
	if *s.cfg.RateLimit.Enabled {
		apiHandler = middleware.RateLimit(s.limiter, s.onRateLimited)(apiHandler)
	}
	apiHandler = middleware.Allowlist(s.allow.Load, s.onAllowlistDenied)(apiHandler)

	root := http.NewServeMux()
	root.Handle("/", apiHandler)
	if s.collector != nil {
		root.Handle(s.cfg.Telemetry.Metrics.Path, s.collector.Handler())
	}

	mws := []func(http.Handler) http.Handler{
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logging(s.logger),
	}
	if s.collector != nil {
		mws = append(mws, middleware.Metrics(s.collector.RecordRequest))
	}
	return middleware.Chain(root, mws...)
}

func (s *Server) onRateLimited(window string) {
	if s.collector != nil {
		s.collector.RecordRateLimited(window)
	}
}

func (s *Server) onAllowlistDenied() {
	if s.collector != nil {
		s.collector.RecordAllowlistDenied()
	}
}

// Start runs the HTTP server and blocks until ctx is cancelled, a
// shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	if s.pruner != nil {
		if err := s.pruner.Start(); err != nil {
			return fmt.Errorf("failed to start audit pruner: %w", err)
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if s.opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(s.opts.ConfigPath, s.logger)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		go func() {
			if err := watcher.Watch(watchCtx, s.applyReload); err != nil {
				s.logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Proxy.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Proxy.ReadTimeout,
		WriteTimeout: s.cfg.Proxy.WriteTimeout,
		IdleTimeout:  s.cfg.Proxy.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", s.cfg.Proxy.ListenAddress,
			"upstream", s.cfg.Upstream.BaseURL,
			"guard_service", s.cfg.Guard.ServiceURL,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.close()
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout and
// releases every component. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.Proxy.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Proxy.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.close()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// close releases component resources. The audit recorder is drained
// before its store closes so queued block events are not lost.
func (s *Server) close() {
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Error("error closing audit recorder", "error", err)
		}
	}
	if s.auditStore != nil {
		if err := s.auditStore.Close(); err != nil {
			s.logger.Error("error closing audit store", "error", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
}

// IsRunning reports whether Start has been called and Shutdown has not
// completed.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// applyReload swaps in the reloadable subset of a fresh configuration:
// the allowlist and the rate limit quotas. Everything else (listen
// address, pools, guard policy) requires a restart and is logged when it
// differs from the running values.
func (s *Server) applyReload(next *config.Config) {
	al, err := allowlist.New(next.Allowlist)
	if err != nil {
		// Validate has already accepted the entries; this is unreachable
		// short of a parser regression.
		s.logger.Error("reload produced an invalid allowlist", "error", err)
		return
	}
	s.allow.Store(al)

	s.limiter.SetConfig(ratelimit.Config{
		Burst:     next.RateLimit.Burst,
		PerMinute: next.RateLimit.PerMinute,
		PerHour:   next.RateLimit.PerHour,
	})

	if next.Proxy.ListenAddress != s.cfg.Proxy.ListenAddress {
		s.logger.Warn("listen_address changed on disk; restart required to apply")
	}
	if !guardEqual(next.Guard, s.cfg.Guard) {
		s.logger.Warn("guard settings changed on disk; restart required to apply")
	}

	s.logger.Info("configuration reloaded",
		"allowlist_entries", len(next.Allowlist),
		"ratelimit_burst", next.RateLimit.Burst,
		"ratelimit_per_minute", next.RateLimit.PerMinute,
		"ratelimit_per_hour", next.RateLimit.PerHour,
	)
}

// guardEqual compares guard settings by value, dereferencing the policy
// pointers that ApplyDefaults fills in.
func guardEqual(a, b config.GuardConfig) bool {
	return a.ServiceURL == b.ServiceURL &&
		a.Timeout == b.Timeout &&
		a.ScanCadenceChars == b.ScanCadenceChars &&
		a.MinOutputLengthForScan == b.MinOutputLengthForScan &&
		*a.BlockOnInputScanError == *b.BlockOnInputScanError &&
		*a.BlockOnOutputScanError == *b.BlockOnOutputScanError &&
		a.ConfigVersion == b.ConfigVersion
}
