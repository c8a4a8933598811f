package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/transport/http/handlers"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/transport/http/middleware"
	httproutes "github.com/DaveSmith227/duolingo-clone-sub001/internal/transport/http/routes"
)

type stubDatabase struct{ err error }

func (s stubDatabase) Ping(context.Context) error { return s.err }

type stubCache struct{ err error }

func (s stubCache) HealthCheck(context.Context) error { return s.err }

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App:       config.AppSettings{Env: "test"},
		Telemetry: config.TelemetrySettings{MetricsEnabled: true},
	}
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config: testConfig(),
		Logger: zaptest.NewLogger(t),
	})

	if w := serve(r, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		database   error
		cache      error
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all dependencies healthy",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			cache:      errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "redis": "unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httproutes.Register(httproutes.Dependencies{
				Config:   testConfig(),
				Logger:   zaptest.NewLogger(t),
				Database: stubDatabase{err: tt.database},
				Cache:    stubCache{err: tt.cache},
			})

			w := serve(r, "/readyz")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var body handlers.ReadyResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			for name, want := range tt.wantChecks {
				if body.Checks[name] != want {
					t.Fatalf("check %s: expected %s, got %s", name, want, body.Checks[name])
				}
			}
		})
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:   testConfig(),
		Logger:   zaptest.NewLogger(t),
		Metrics:  httpMetrics,
		Gatherer: registry,
	})

	serve(r, "/healthz")
	w := serve(r, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `lingua_ops_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected healthz request counter in metrics output:\n%s", w.Body.String())
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.Telemetry.MetricsEnabled = false
	r := httproutes.Register(httproutes.Dependencies{Config: cfg, Logger: zaptest.NewLogger(t)})

	if w := serve(r, "/metrics"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when metrics are disabled, got %d", w.Code)
	}
}
