package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	_ "modernc.org/sqlite"

	"github.com/neomorfeo/processiq/internal/adapter/auth"
	"github.com/neomorfeo/processiq/internal/adapter/fsm"
	handler "github.com/neomorfeo/processiq/internal/adapter/http"
	"github.com/neomorfeo/processiq/internal/adapter/sqlite"
	"github.com/neomorfeo/processiq/internal/app"
	"github.com/neomorfeo/processiq/internal/domain"
)

const testSecret = "test-secret"

// testPublisher is a local EventPublisher for the smoke test.
// The smoke test verifies HTTP wiring, not River.
type testPublisher struct{}

func (p *testPublisher) Publish(context.Context, domain.Notification) error {
	return nil
}

func mintToken(t *testing.T) string {
	t.Helper()
	authn, err := auth.New(testSecret)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	token, err := authn.IssueToken("ana", time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

// TestSmoke wires the HTTP stack like run() and verifies it responds.
func TestSmoke(t *testing.T) {
	store, err := sqlite.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	processes := app.NewProcessService(store, store, &testPublisher{}, fsm.New())
	phases := app.NewCatalogService(store)

	authn, err := auth.New(testSecret)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	router := chi.NewMux()
	router.Use(authn.Middleware("/api/"))
	api := humachi.New(router, huma.DefaultConfig("processiq", "0.1.0"))
	handler.Register(api, processes, phases)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp := get(t, srv.URL+"/api/v1/processes", mintToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var page struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Errorf("got %d processes (total %d), want an empty database", len(page.Items), page.Total)
	}
}

// TestRun exercises the real run() function end-to-end: OTel, River, catalog
// seed, HTTP server, and graceful shutdown.
func TestRun(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "phases.yaml")
	if err := os.WriteFile(seed, []byte(`phases:
  - type: billing_transfer
    name: Solicitação
    position: 1
    sla: {kind: days, days: 2}
  - type: billing_transfer
    name: Concluído
    position: 99
    terminal: true
    sla: {kind: days, days: 0}
`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_PATH", filepath.Join(dir, "test-run.db"))
	t.Setenv("PORT", "19876")
	t.Setenv("PROCESSIQ_AUTH_SECRET", testSecret)
	t.Setenv("PROCESSIQ_CATALOG_SEED", seed)
	t.Setenv("OTEL_EXPORTER", "none")
	t.Setenv("OTEL_ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")

	errCh := make(chan error, 1)
	go func() { errCh <- run() }()

	// Wait for the HTTP server to become ready.
	serverURL := "http://localhost:19876"
	ready := false
	for i := 0; i < 50; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/metrics", nil)
		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ready {
		t.Fatal("server did not start within 5 seconds")
	}

	// Unauthenticated API calls are refused; the seeded catalog is visible.
	resp := get(t, serverURL+"/api/v1/phases?type=billing_transfer", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	resp = get(t, serverURL+"/api/v1/phases?type=billing_transfer", mintToken(t))
	var phases []map[string]any
	err := json.NewDecoder(resp.Body).Decode(&phases)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode phases: %v", err)
	}
	if len(phases) != 2 {
		t.Errorf("got %d seeded phases, want 2", len(phases))
	}

	// Send SIGINT to trigger graceful shutdown.
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("finding process: %v", err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("sending SIGINT: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not exit within 10 seconds")
	}
}

// TestRun_InvalidDB verifies run() returns an error for an invalid database path.
func TestRun_InvalidDB(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/nonexistent/path/db.sqlite")
	t.Setenv("PORT", "19877")
	t.Setenv("PROCESSIQ_AUTH_SECRET", testSecret)
	t.Setenv("OTEL_EXPORTER", "none")
	t.Setenv("OTEL_ENVIRONMENT", "test")

	if err := run(); err == nil {
		t.Fatal("expected error for invalid database path, got nil")
	}
}

func TestRun_MissingSecret(t *testing.T) {
	t.Setenv("PROCESSIQ_AUTH_SECRET", "")

	if err := run(); err == nil || !strings.Contains(err.Error(), "PROCESSIQ_AUTH_SECRET") {
		t.Fatalf("run() = %v, want missing secret error", err)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("PROCESSIQ_AUTH_SECRET", testSecret)

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--subject", "bruno", "--ttl", "10m"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token command: %v", err)
	}

	authn, err := auth.New(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	actor, err := authn.Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if actor != "bruno" {
		t.Errorf("actor = %q, want %q", actor, "bruno")
	}
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	t.Setenv("DATABASE_PATH", path)

	cmd := rootCmd()
	cmd.SetArgs([]string{"migrate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("migrate command: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"processes", "process_phases", "process_events", "process_feedback", "river_job"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migrate: %v", table, err)
		}
	}
}
