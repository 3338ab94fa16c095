// ABOUTME: Gateway orchestrator wiring the store, registry, broker, and job coordinator
// ABOUTME: Manages the HTTP server, background sweeps, and graceful shutdown

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/scry-gateway/internal/auth"
	"github.com/2389/scry-gateway/internal/broker"
	"github.com/2389/scry-gateway/internal/config"
	"github.com/2389/scry-gateway/internal/job"
	"github.com/2389/scry-gateway/internal/registry"
	"github.com/2389/scry-gateway/internal/store"
	"github.com/2389/scry-gateway/internal/telemetry"
)

// Sweep defaults applied when the config leaves the timings unset.
const (
	defaultIdleTimeout   = 30 * time.Minute
	defaultEvictInterval = 10 * time.Minute
	defaultJobRetention  = time.Hour
	defaultPurgeInterval = 5 * time.Minute
)

// Gateway orchestrates the scry-gateway server components: the HTTP API,
// the push broker, the agent registry, and the job coordinator.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *registry.Registry
	broker      *broker.Broker
	tracker     *job.Tracker
	coordinator *job.Coordinator
	telemetry   *telemetry.Provider
	metrics     *telemetry.Metrics
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// serverID identifies this gateway instance in logs
	serverID string
}

// initStore creates the store from config, honoring the SCRY_DB_PATH override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SCRY_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway with the given configuration. The returned gateway
// owns its store and must be shut down even if Run is never called.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := telemetry.Init(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	metrics, err := telemetry.NewMetrics(provider.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	reg := registry.NewRegistry(logger.With("component", "registry"), nil)
	if cfg.Agents.ProfileDir != "" {
		if err := reg.LoadProfiles(cfg.Agents.ProfileDir); err != nil {
			return nil, err
		}
	}

	br := broker.NewBroker(logger)
	tracker := job.NewTracker(logger)
	coordinator := job.NewCoordinator(tracker, s, br, reg, metrics, logger)

	gw := &Gateway{
		config:      cfg,
		store:       s,
		registry:    reg,
		broker:      br,
		tracker:     tracker,
		coordinator: coordinator,
		telemetry:   provider,
		metrics:     metrics,
		logger:      logger.With("component", "gateway"),
		serverID:    generateServerID(),
	}

	mux := http.NewServeMux()

	// Health endpoints stay outside the auth middleware
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	gw.registerAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerAPIRoutes registers the /api surface, wrapped in the bearer-token
// middleware when a JWT secret is configured.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	var wrap func(http.Handler) http.Handler
	if g.config.Auth.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
		wrap = auth.HTTPAuthMiddleware(verifier, g.logger)
		g.logger.Info("HTTP auth middleware enabled")
	} else {
		g.logger.Warn("auth disabled - no jwt_secret configured")
	}

	handle := func(pattern string, h http.HandlerFunc) {
		if wrap != nil {
			mux.Handle(pattern, wrap(h))
			return
		}
		mux.HandleFunc(pattern, h)
	}

	handle("GET /api/stream", g.handleStream)
	handle("POST /api/messages", g.handleSubmitMessage)
	handle("GET /api/jobs/{id}", g.handleGetJob)
	handle("POST /api/jobs/{id}/stop", g.handleStopJob)
	handle("GET /api/agents", g.handleListAgents)
	handle("POST /api/threads/resume", g.handleResumeThread)
	handle("GET /api/threads", g.handleListThreads)
	handle("GET /api/threads/{id}", g.handleGetThread)
	handle("DELETE /api/threads/{id}", g.handleDeleteThread)
	handle("GET /api/threads/{id}/events", g.handleThreadEvents)
	handle("POST /api/dashboards", g.handleCreateDashboard)
	handle("GET /api/dashboards", g.handleListDashboards)
	handle("GET /api/dashboards/{id}", g.handleGetDashboard)
	handle("DELETE /api/dashboards/{id}", g.handleDeleteDashboard)
	handle("POST /api/dashboards/{id}/plots", g.handleAddPlot)
	handle("PATCH /api/plots/{id}", g.handleUpdatePlot)
	handle("DELETE /api/plots/{id}", g.handleDeletePlot)
	handle("POST /api/knowledge", g.handleSaveKnowledge)
	handle("GET /api/knowledge", g.handleListKnowledge)
	handle("DELETE /api/knowledge/{id}", g.handleDeleteKnowledge)
}

// Run starts the HTTP listener and the background sweeps, blocking until the
// context is canceled or the server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	httpLn, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	go g.runEvictionSweep(sweepCtx)
	go g.runPurgeSweep(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String(), "server_id", g.serverID)
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// evictionSettings returns the idle cutoff and sweep interval, defaulted.
func (g *Gateway) evictionSettings() (idle, interval time.Duration) {
	idle = g.config.Agents.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	interval = g.config.Agents.EvictInterval
	if interval <= 0 {
		interval = defaultEvictInterval
	}
	return idle, interval
}

// retentionSettings returns the job retention window and sweep interval, defaulted.
func (g *Gateway) retentionSettings() (retention, interval time.Duration) {
	retention = g.config.Jobs.Retention
	if retention <= 0 {
		retention = defaultJobRetention
	}
	interval = g.config.Jobs.PurgeInterval
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	return retention, interval
}

// runEvictionSweep periodically drops runtime thread handles that have been
// idle past the configured timeout.
func (g *Gateway) runEvictionSweep(ctx context.Context) {
	idle, interval := g.evictionSettings()
	g.logger.Debug("idle thread sweep running", "idle_timeout", idle.String(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.registry.EvictIdleThreads(idle); n > 0 {
				g.metrics.ThreadsEvicted.Add(ctx, int64(n))
			}
		}
	}
}

// runPurgeSweep periodically drops terminal jobs older than the retention
// window from the in-memory tracker.
func (g *Gateway) runPurgeSweep(ctx context.Context) {
	retention, interval := g.retentionSettings()
	g.logger.Debug("job purge sweep running", "retention", retention.String(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.tracker.PurgeExpired(retention); n > 0 {
				g.metrics.JobsPurged.Add(ctx, int64(n))
			}
		}
	}
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "scry-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns the HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.CertFile != "" && tsCfg.KeyFile != "":
		return g.createTailscaleTLSListener(tsCfg)
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener serves HTTPS on :443 with the configured cert pair.
func (g *Gateway) createTailscaleTLSListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	g.logger.Info("enabling HTTPS on :443", "cert_file", tsCfg.CertFile)
	cert, err := tls.LoadX509KeyPair(tsCfg.CertFile, tsCfg.KeyFile)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("loading TLS cert pair: %w", err)
	}
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.broker.Close()
	errs = appendCloseError(errs, "registry close", g.registry.Close())
	errs = appendCloseError(errs, "store close", g.store.Close())
	errs = appendCloseError(errs, "telemetry shutdown", g.telemetry.Shutdown(ctx))

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once at least one agent profile is loaded.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	profiles := g.registry.Profiles()
	if len(profiles) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no agent profiles loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d profiles)", len(profiles))
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("scry-gateway-%d", time.Now().UnixNano()%1000000)
}
