package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/pasteshield/internal/cache"
	"github.com/raaihank/pasteshield/internal/config"
	"github.com/raaihank/pasteshield/internal/logger"
	"github.com/raaihank/pasteshield/internal/navigation"
	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/raaihank/pasteshield/internal/privacy"
	"github.com/raaihank/pasteshield/internal/store"
	"github.com/raaihank/pasteshield/internal/web"
	"github.com/raaihank/pasteshield/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info
const Version = "0.1.0"

// EventStore persists detection events
type EventStore interface {
	Insert(ctx context.Context, event *store.Event) error
	Recent(ctx context.Context, q store.Query) ([]store.Event, error)
}

// VerdictCache caches phishing results per detector version
type VerdictCache interface {
	Get(ctx context.Context, version, url string) (*phishing.Result, bool)
	Put(ctx context.Context, version string, result phishing.Result) error
	GetStats(ctx context.Context) (*cache.CacheStats, error)
	Clear(ctx context.Context) error
}

const cacheClearTimeout = 5 * time.Second

// snapshot is the immutable engine configuration used by one request.
// Reloads build a new snapshot and swap it in.
type snapshot struct {
	config   *config.Config
	mode     privacy.Mode
	detector *phishing.Detector
}

// Server exposes the privacy and phishing engines over HTTP
type Server struct {
	logger   *logger.Logger
	router   *mux.Router
	server   *http.Server
	hub      *websocket.Hub
	engine   *privacy.Engine
	registry *privacy.Registry
	guard    *navigation.Guard
	limiter  *RateLimiter
	store    EventStore
	cache    VerdictCache

	current atomic.Pointer[snapshot]
	started time.Time

	requests   atomic.Int64
	detections atomic.Int64
}

// Option customizes a Server
type Option func(*Server)

// WithStore persists detection events
func WithStore(st EventStore) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithCache caches phishing verdicts
func WithCache(c VerdictCache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		logger:  log.WithComponent("server"),
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := buildSnapshot(cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)

	patterns, err := cfg.Privacy.LoadPatterns()
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	s.registry, err = privacy.NewRegistry(patterns, log.WithComponent("patterns").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern registry: %w", err)
	}
	s.engine = privacy.NewEngine(privacy.EngineConfig{MatchTimeout: cfg.Privacy.MatchTimeout}, log.WithComponent("privacy").Logger)

	s.guard = navigation.NewGuard(cfg.Phishing.GuardConfig(), navigation.AnalyzerFunc(s.analyze), log.WithComponent("navigation").Logger)

	wsCfg := cfg.WebSocket
	s.hub = websocket.NewHub(&websocket.HubConfig{
		BroadcastDetections:  wsCfg.Events.BroadcastDetections,
		BroadcastNavigation:  wsCfg.Events.BroadcastNavigation,
		BroadcastSystem:      wsCfg.Events.BroadcastSystem,
		BroadcastConnections: wsCfg.Events.BroadcastConnections,
		MaxConnections:       wsCfg.MaxConnections,
		ReadBufferSize:       wsCfg.ReadBufferSize,
		WriteBufferSize:      wsCfg.WriteBufferSize,
		PingInterval:         wsCfg.PingInterval,
		PongTimeout:          wsCfg.PongTimeout,
		WriteTimeout:         wsCfg.WriteTimeout,
		MaxMessageSize:       wsCfg.MaxMessageSize,
		AllowedOrigins:       wsCfg.AllowedOrigins,
		Username:             wsCfg.Username,
		Password:             wsCfg.Password,
	}, log.Logger)

	if cfg.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTimeout)
	}

	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func buildSnapshot(cfg *config.Config, log *zap.Logger) (*snapshot, error) {
	mode, err := privacy.ParseMode(cfg.Privacy.Mode)
	if err != nil {
		return nil, err
	}
	if !cfg.Privacy.Enabled {
		mode = privacy.ModeDisabled
	}

	detectorCfg, err := cfg.Phishing.DetectorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load phishing tables: %w", err)
	}
	detector, err := phishing.NewDetector(detectorCfg, log.With(zap.String("component", "phishing")))
	if err != nil {
		return nil, fmt.Errorf("failed to create phishing detector: %w", err)
	}

	return &snapshot{config: cfg, mode: mode, detector: detector}, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg *config.Config) {
	s.router.Use(s.recoverMiddleware, s.requestIDMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/", web.Dashboard(cfg.WebSocket.Path)).Methods(http.MethodGet)
	s.router.HandleFunc("/warning.html", web.Warning("/api/v1/messages")).Methods(http.MethodGet)
	if cfg.WebSocket.Enabled {
		s.router.HandleFunc(cfg.WebSocket.Path, s.hub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/pii/detect", s.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/pii/redact", s.handleRedact).Methods(http.MethodPost)
	api.HandleFunc("/pii/highlight", s.handleHighlight).Methods(http.MethodPost)
	api.HandleFunc("/files/check", s.handleFileCheck).Methods(http.MethodPost)

	api.HandleFunc("/patterns", s.handleListPatterns).Methods(http.MethodGet)
	api.HandleFunc("/patterns", s.handleAddPattern).Methods(http.MethodPost)
	api.HandleFunc("/patterns/{id}", s.handleGetPattern).Methods(http.MethodGet)
	api.HandleFunc("/patterns/{id}", s.handleUpdatePattern).Methods(http.MethodPut)
	api.HandleFunc("/patterns/{id}", s.handleTogglePattern).Methods(http.MethodPatch)
	api.HandleFunc("/patterns/{id}", s.handleDeletePattern).Methods(http.MethodDelete)

	api.HandleFunc("/phishing/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/phishing/sensitivity", s.handleSensitivity).Methods(http.MethodPut)
	api.HandleFunc("/navigation", s.handleNavigation).Methods(http.MethodPost)
	api.HandleFunc("/navigation/mode", s.handleNavigationMode).Methods(http.MethodPut)
	api.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub for broadcasting events
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Start runs the hub and background maintenance, then serves until Stop
func (s *Server) Start(ctx context.Context) error {
	snap := s.current.Load()
	s.logger.Info("Starting PasteShield server",
		zap.String("address", s.server.Addr),
		zap.String("privacy_mode", string(snap.mode)),
		zap.String("navigation_mode", string(s.guard.Mode())),
		zap.String("detector_version", snap.detector.Version()),
	)

	go s.hub.Run(ctx)
	go s.maintain(ctx)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PasteShield server")
	return s.server.Shutdown(ctx)
}

// maintain evicts idle rate limit buckets and publishes system status
func (s *Server) maintain(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.limiter != nil {
				if n := s.limiter.Cleanup(); n > 0 {
					s.logger.Debug("Evicted idle rate limit buckets", zap.Int("count", n))
				}
			}
			s.hub.BroadcastEvent(websocket.Event{
				Type: websocket.EventTypeSystemStatus,
				Data: s.status(),
			})
		}
	}
}

// ApplyConfig swaps in engines built from a reloaded configuration. Requests
// in flight finish on the snapshot they started with. The pattern registry
// is only replaced when the configured pattern set changed, so API edits
// survive unrelated reloads.
func (s *Server) ApplyConfig(cfg *config.Config) error {
	snap, err := buildSnapshot(cfg, s.logger.Logger)
	if err != nil {
		return err
	}

	prev := s.current.Load()
	if !reflect.DeepEqual(prev.config.Privacy.Patterns, cfg.Privacy.Patterns) ||
		prev.config.Privacy.PatternsFile != cfg.Privacy.PatternsFile {
		patterns, err := cfg.Privacy.LoadPatterns()
		if err != nil {
			return fmt.Errorf("failed to load patterns: %w", err)
		}
		if err := s.registry.Replace(patterns); err != nil {
			return err
		}
		s.engine.Purge()
	}

	s.current.Store(snap)
	s.guard.SetMode(cfg.Phishing.GuardConfig().Mode)
	s.dropStaleVerdicts(prev.detector.Version(), snap.detector.Version())

	s.logger.Info("Configuration applied",
		zap.String("privacy_mode", string(snap.mode)),
		zap.String("navigation_mode", string(s.guard.Mode())),
		zap.String("detector_version", snap.detector.Version()),
	)
	return nil
}

// analyze scores a URL with the current detector, consulting the cache when enabled
func (s *Server) analyze(ctx context.Context, url string) phishing.Result {
	snap := s.current.Load()
	d := snap.detector

	if s.cache == nil || !snap.config.Phishing.CacheResults {
		return d.Check(url)
	}

	if cached, ok := s.cache.Get(ctx, d.Version(), url); ok {
		return *cached
	}
	result := d.Check(url)
	if err := s.cache.Put(ctx, d.Version(), result); err != nil {
		s.logger.Debug("Verdict not cached", zap.Error(err))
	}
	return result
}

func (s *Server) status() websocket.SystemStatusEvent {
	snap := s.current.Load()
	enabled := 0
	for _, p := range s.registry.List() {
		if p.Enabled {
			enabled++
		}
	}

	return websocket.SystemStatusEvent{
		Status:           "healthy",
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		TotalRequests:    s.requests.Load(),
		TotalDetections:  s.detections.Load(),
		ActivePatterns:   enabled,
		ConnectedClients: s.hub.ClientCount(),
		DetectorVersion:  snap.detector.Version(),
		PrivacyMode:      string(snap.mode),
		NavigationMode:   string(s.guard.Mode()),
	}
}

// dropStaleVerdicts clears the verdict cache once the detector version moves
// on, since entries keyed by the old version can never be read again
func (s *Server) dropStaleVerdicts(prevVersion, version string) {
	if s.cache == nil || prevVersion == version {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheClearTimeout)
	defer cancel()
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear stale verdicts",
			zap.String("detector_version", prevVersion),
			zap.Error(err),
		)
	}
}

// cacheStats is nil when caching is off or Redis cannot report
func (s *Server) cacheStats(ctx context.Context) *cache.CacheStats {
	if !s.cacheEnabled() {
		return nil
	}
	stats, err := s.cache.GetStats(ctx)
	if err != nil {
		s.logger.Debug("Cache stats unavailable", zap.Error(err))
	}
	return stats
}

// cacheEnabled is reported by /info
func (s *Server) cacheEnabled() bool {
	return s.cache != nil && s.current.Load().config.Phishing.CacheResults
}

var _ VerdictCache = (*cache.VerdictCache)(nil)
