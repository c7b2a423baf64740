package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/musefactory/mediacache/internal/config"
	"github.com/musefactory/mediacache/internal/encoder"
	"github.com/musefactory/mediacache/internal/origin"
	"github.com/musefactory/mediacache/internal/pipeline"
	"github.com/musefactory/mediacache/internal/storage"
	"github.com/musefactory/mediacache/internal/tenant"
	"github.com/musefactory/mediacache/internal/transform"
)

type stubEncoder struct{}

func (stubEncoder) Encode(src []byte, opts transform.Options) ([]byte, encoder.Descriptor, error) {
	out := []byte("encoded")
	return out, encoder.Descriptor{Format: opts.Format, Size: len(out)}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir(), "https://cdn.example.com")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	selector := storage.NewSelector(store)

	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("source-bytes"))
	}))
	t.Cleanup(originSrv.Close)

	pipe := pipeline.New(pipeline.Options{
		Tenants:  tenant.NewResolver([]string{"acme"}, "default"),
		Norm:     transform.NewNormalizer(3840, 80, map[string]int{"auto:good": 80}),
		Fetcher:  origin.NewFetcher(1<<20, time.Second),
		Selector: selector,
		Image:    stubEncoder{},
	})

	cfg, err := config.Load("/nonexistent.yaml")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	cfg.Monitor.AccessCode = "sekrit"

	srv, err := New(cfg,
		WithPipeline(pipe),
		WithSelector(selector),
	)
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	return srv, originSrv
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body HealthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("health body is not JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Status = %q", body.Status)
	}
	if body.Storage != "local" {
		t.Errorf("Storage = %q", body.Storage)
	}
}

func TestRootBanner(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mediacache") {
		t.Errorf("banner = %q", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	tests := []struct {
		header string
		want   string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	}
	for _, tt := range tests {
		if got := rec.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestUploadRequiresPost(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Errorf("Allow = %q", got)
	}
}

func TestOptimizeRoute(t *testing.T) {
	srv, originSrv := newTestServer(t)

	target := "/optimize?client=acme&url=" + originSrv.URL + "/cat.jpg"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("miss status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("hit status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://cdn.example.com/acme/") {
		t.Errorf("Location = %q", loc)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMonitorRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitor", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitor?code=sekrit", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}
