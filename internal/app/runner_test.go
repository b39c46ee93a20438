package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-integration-client/internal/config"
	"github.com/samvad-hq/samvad-integration-client/pkg/publishers"
)

type fakeAPI struct {
	srv       *httptest.Server
	logins    atomic.Int32
	loginCode int
	mu        sync.Mutex
	auths     []string
}

func newFakeAPI(t *testing.T, loginCode int) *fakeAPI {
	t.Helper()
	api := &fakeAPI{loginCode: loginCode}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/login":
			api.logins.Add(1)
			if r.Header.Get("Authorization") != "Basic Y3JlZHM=" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(api.loginCode)
			if api.loginCode == http.StatusOK {
				_, _ = io.WriteString(w, `{"authenticated":true,"token":"session-1"}`)
				return
			}
			_, _ = io.WriteString(w, `{"authenticated":false,"message":"bad credentials"}`)
		case "/v1/count":
			api.mu.Lock()
			api.auths = append(api.auths, r.Header.Get("Authorization"))
			api.mu.Unlock()
			_, _ = io.WriteString(w, "7")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppName:                "test",
		BaseURL:                baseURL,
		AuthScheme:             "bearer",
		APIVersion:             "v1",
		LoginCredentials:       "Y3JlZHM=",
		Timeout:                5 * time.Second,
		CallsFile:              writeFile(t, dir, "calls.yaml", "calls:\n  - id: count\n    path: count\n"),
		SessionStore:           "bbolt",
		SessionPath:            filepath.Join(dir, "sessions.db"),
		SessionTTL:             time.Hour,
		SessionCleanupInterval: time.Hour,
	}
}

func TestRunLogsInOnceAndReusesStoredSession(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK)
	cfg := testConfig(t, api.srv.URL)

	for i := 0; i < 2; i++ {
		r, err := NewRunner(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("NewRunner: %v", err)
		}
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if r.LastRun().IsZero() {
			t.Fatalf("last run not recorded")
		}
	}

	if got := api.logins.Load(); got != 1 {
		t.Fatalf("expected one login across runs, got %d", got)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.auths) != 2 {
		t.Fatalf("expected two count calls, got %d", len(api.auths))
	}
	for _, a := range api.auths {
		if a != "Bearer session-1" {
			t.Fatalf("count call sent %q", a)
		}
	}
}

func TestConfiguredTokenSkipsLogin(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK)
	cfg := testConfig(t, api.srv.URL)
	cfg.Token = "static"
	cfg.SessionStore = "none"

	r, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if api.logins.Load() != 0 {
		t.Fatalf("login should not be called")
	}
	if r.Client().Token() != "static" {
		t.Fatalf("token = %q", r.Client().Token())
	}
}

func TestRejectedLoginFailsRun(t *testing.T) {
	api := newFakeAPI(t, http.StatusUnauthorized)
	cfg := testConfig(t, api.srv.URL)

	r, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	err = r.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad credentials") {
		t.Fatalf("expected rejected login error, got %v", err)
	}
}

func TestRunPublishesOutcomes(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK)

	var (
		mu     sync.Mutex
		events []publishers.Event
	)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	}))
	defer sink.Close()

	cfg := testConfig(t, api.srv.URL)
	cfg.PublishersFile = writeFile(t, t.TempDir(), "publishers.yaml",
		"publishers:\n  - id: hook\n    type: http\n    http:\n      url: "+sink.URL+"\n")

	r, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].CallID != "count" || events[0].Outcome != "ok" || string(events[0].Payload) != "7" {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestRunOnIntervalStopsOnCancel(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK)
	cfg := testConfig(t, api.srv.URL)
	cfg.RunInterval = 10 * time.Millisecond

	r, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.auths) < 2 {
		t.Fatalf("expected repeated runs, got %d", len(api.auths))
	}
}

func TestOpsHandler(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK)
	cfg := testConfig(t, api.srv.URL)
	cfg.SessionStore = "none"

	r, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	h := r.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("healthz body: %v", err)
	}
	if health["status"] != "ok" || health["last_run"] == "" {
		t.Fatalf("healthz = %v", health)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `samvad_calls_total{call_id="count",method="GET",outcome="ok"} 1`) {
		t.Fatalf("metrics missing call counter:\n%s", body)
	}
	if !strings.Contains(body, `samvad_logins_total{result="ok"} 1`) {
		t.Fatalf("metrics missing login counter")
	}
}

func TestNewRunnerValidatesInputs(t *testing.T) {
	if _, err := NewRunner(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	cfg := testConfig(t, "https://api.example.com")
	cfg.CallsFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewRunner(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing calls file")
	}
	cfg = testConfig(t, "https://api.example.com")
	cfg.AuthScheme = "apikey"
	if _, err := NewRunner(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for apikey without header")
	}
}
