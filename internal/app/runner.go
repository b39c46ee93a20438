package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-integration-client/internal/config"
	"github.com/samvad-hq/samvad-integration-client/internal/logger"
	"github.com/samvad-hq/samvad-integration-client/internal/metrics"
	"github.com/samvad-hq/samvad-integration-client/internal/runner"
	"github.com/samvad-hq/samvad-integration-client/internal/storage"
	"github.com/samvad-hq/samvad-integration-client/pkg/calls"
	"github.com/samvad-hq/samvad-integration-client/pkg/httpclient"
	"github.com/samvad-hq/samvad-integration-client/pkg/integration"
	"github.com/samvad-hq/samvad-integration-client/pkg/publishers"
)

// Runner represents the integration runtime. It authenticates, executes the
// configured calls once or on an interval and publishes every outcome.
type Runner struct {
	cfg        *config.Config
	client     *integration.Service
	scheme     httpclient.Scheme
	callReg    *calls.Registry
	fanout     *publishers.Fanout
	runService *runner.Service
	metrics    *metrics.Metrics
	store      storage.SessionStore
	sessionKey string
	log        logger.Logger

	lastRun atomic.Int64
}

// NewRunner builds a runner runtime from config.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, fmt.Errorf("resolve auth scheme: %w", err)
	}
	client, err := integration.NewFromConfig(integration.Config{
		BaseURL: cfg.BaseURL,
		Scheme:  scheme,
		Token:   cfg.Token,
		Version: cfg.APIVersion,
		Timeout: cfg.Timeout,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("build integration client: %w", err)
	}

	callReg, err := calls.LoadRegistry(cfg.CallsFile)
	if err != nil {
		return nil, fmt.Errorf("load calls registry: %w", err)
	}
	enabled := callReg.Enabled()
	callIDs := make([]string, 0, len(enabled))
	for _, c := range enabled {
		callIDs = append(callIDs, c.ID)
	}
	log.InfoObj("calls registry loaded", "calls_meta", map[string]any{
		"count":   len(callReg.All()),
		"enabled": callIDs,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		SessionTTL:      cfg.SessionTTL,
		CleanupInterval: cfg.SessionCleanupInterval,
	}
	store, err := storage.NewStore(cfg.SessionStore, cfg.SessionPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}
	log.InfoObj("session store initialized", "storage_config", map[string]any{
		"type":                     cfg.SessionStore,
		"path":                     cfg.SessionPath,
		"session_ttl_seconds":      int(cfg.SessionTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.SessionCleanupInterval.Seconds()),
	})

	m := metrics.New()

	return &Runner{
		cfg:        cfg,
		client:     client,
		scheme:     scheme,
		callReg:    callReg,
		fanout:     fanout,
		runService: runner.NewService(client, fanout, m, log),
		metrics:    m,
		store:      store,
		sessionKey: storage.SessionKey(cfg.BaseURL, client.Version(), scheme.String()),
		log:        log,
	}, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; outcomes are only logged", "publishers_meta", map[string]any{"count": 0})
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Client exposes the integration client.
func (r *Runner) Client() *integration.Service { return r.client }

// Authenticate resolves the session token: configured token first, then an
// unexpired stored session, then a login with the configured credentials.
func (r *Runner) Authenticate(ctx context.Context) error {
	if r.cfg.Token != "" {
		r.client.SetToken(r.cfg.Token)
		r.log.InfoObj("session token resolved", "auth_meta", map[string]any{"source": "config"})
		return nil
	}

	token, ok, err := r.store.Token(r.sessionKey)
	if err != nil {
		r.log.WarnObj("session store read failed", "error", err)
	} else if ok {
		r.client.SetToken(token)
		r.log.InfoObj("session token resolved", "auth_meta", map[string]any{"source": "session_store"})
		return nil
	}

	if r.cfg.LoginCredentials != "" {
		_, err := r.Login(ctx)
		return err
	}

	if r.scheme.Kind != httpclient.SchemeNone {
		r.log.WarnObj("no session token available; calls are sent without credentials", "auth_meta", map[string]any{
			"scheme": r.scheme.String(),
		})
	}
	return nil
}

// Login performs the login handshake, installs the returned token and persists it.
func (r *Runner) Login(ctx context.Context) (integration.AuthenticationResult, error) {
	result, err := r.client.Login(ctx, r.cfg.LoginCredentials)
	if err != nil {
		r.metrics.RecordLogin("error")
		return result, fmt.Errorf("login: %w", err)
	}
	if !result.OK() {
		r.metrics.RecordLogin("rejected")
		msg := result.Message
		if msg == "" {
			msg = "no token returned"
		}
		return result, fmt.Errorf("login rejected (status %d): %s", result.StatusCode, msg)
	}
	r.metrics.RecordLogin("ok")
	r.client.SetToken(result.Token)

	expiry := result.Expiry()
	if err := r.store.SaveToken(r.sessionKey, result.Token, expiry); err != nil {
		r.log.WarnObj("session store write failed", "error", err)
	}

	fields := map[string]any{"source": "login", "status": result.StatusCode}
	if !expiry.IsZero() {
		fields["expires_at"] = expiry
	}
	r.log.InfoObj("session token resolved", "auth_meta", fields)
	return result, nil
}

// Run authenticates and executes the enabled calls until the context is
// cancelled. With no run interval a single pass is made and its error returned.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.runService == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	if r.cfg.MetricsAddr != "" {
		stop := r.serveOps(ctx, r.cfg.MetricsAddr)
		defer stop()
	}

	if err := r.Authenticate(ctx); err != nil {
		return err
	}

	enabled := r.callReg.Enabled()
	if len(enabled) == 0 {
		r.log.WarnObj("no calls enabled; runner idle", "calls_file", r.cfg.CallsFile)
		if r.cfg.RunInterval <= 0 {
			return nil
		}
		<-ctx.Done()
		return nil
	}

	r.log.InfoObj("runner starting", "runner_state", map[string]any{
		"calls_count":      len(enabled),
		"publishers_count": r.fanout.Size(),
		"run_interval":     r.cfg.RunInterval.String(),
	})

	if r.cfg.RunInterval <= 0 {
		return r.runOnce(ctx, enabled)
	}

	if err := r.runOnce(ctx, enabled); err != nil {
		r.log.ErrorObj("initial run failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("runner loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, enabled); err != nil {
				r.log.ErrorObj("scheduled run failed", "error", err)
			}
		}
	}
}

// runOnce performs a single pass across all enabled calls.
func (r *Runner) runOnce(ctx context.Context, cs []calls.Call) error {
	start := time.Now()
	r.log.InfoObj("run started", "run_meta", map[string]any{
		"calls_count": len(cs),
		"started_at":  start.UTC(),
	})
	results, err := r.runService.Run(ctx, cs)

	failed := 0
	for _, res := range results {
		if !res.Succeeded() {
			failed++
		}
	}
	finished := time.Now()
	r.lastRun.Store(finished.Unix())
	r.metrics.RecordRun(finished)
	r.log.InfoObj("run completed", "run_meta", map[string]any{
		"calls_count": len(results),
		"failed":      failed,
		"elapsed_ms":  finished.Sub(start).Milliseconds(),
	})
	return err
}

// close releases publishers and the session store, logging any errors encountered.
func (r *Runner) close() {
	if r == nil {
		return
	}
	var errs []error
	if r.fanout != nil {
		errs = append(errs, r.fanout.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		r.log.ErrorObj("runner close failed", "error", err)
	}
}

// Close releases resources without running. Used by one-shot commands.
func (r *Runner) Close() { r.close() }

// LastRun returns when the last pass finished, or the zero time.
func (r *Runner) LastRun() time.Time {
	if sec := r.lastRun.Load(); sec > 0 {
		return time.Unix(sec, 0).UTC()
	}
	return time.Time{}
}
