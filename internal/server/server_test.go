package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/ailink/prompt"
	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/config"
	apperrors "github.com/writify/writify/internal/errors"
	"github.com/writify/writify/internal/export"
	"github.com/writify/writify/internal/fallback"
	"github.com/writify/writify/internal/gateway"
	"github.com/writify/writify/internal/server/handlers"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second}
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(testConfig(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
	require.NotEmpty(t, body.Error.RequestID)
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := New(testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/version", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerMountsAPIAndHealth(t *testing.T) {
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	offline := fallback.New(fallback.WithSeed(1))
	gw := gateway.New(gateway.ProviderFunc(func(context.Context, string, gateway.Options) (string, error) {
		return "ok", nil
	}), gateway.DefaultPolicy(), gateway.WithResponder(offline))

	api := handlers.NewAPI(handlers.APIConfig{
		Service:  compose.New(gw, reg, offline),
		Gateway:  gw,
		Exporter: export.New(t.TempDir()),
	})
	health := handlers.NewHealthManager("test")
	health.RegisterChecker("gateway", handlers.GatewayChecker(gw))

	srv := New(testConfig(), api, health)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	gw.ActivateFallback()
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "degraded", resp.Status)
	require.Equal(t, "degraded", resp.Checks["gateway"])
}

func TestServerAddr(t *testing.T) {
	srv := New(config.ServerConfig{Host: "localhost", Port: 3000}, nil, nil)
	require.Equal(t, "localhost:3000", srv.Addr())
	require.Equal(t, 3000, srv.Port())
	require.NoError(t, srv.Shutdown(context.Background()))
}
