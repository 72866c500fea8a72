package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuikova-e/nutritioner-bot/internal/auth"
	"github.com/chuikova-e/nutritioner-bot/internal/repository/sqlstore"
	"github.com/chuikova-e/nutritioner-bot/internal/service"
)

const testSecret = "ops-secret-for-tests-only"

func newTestServer(t *testing.T, origins ...string) (*Server, *sqlstore.Store) {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	reports := service.NewReportService(store, time.UTC, logger)

	srv, err := New(Config{Addr: "127.0.0.1:0", JWTSecret: testSecret, AllowedOrigins: origins}, reports, store, logger)
	require.NoError(t, err)
	return srv, store
}

func bearer(t *testing.T) string {
	t.Helper()
	ts, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	tok, err := ts.Generate("oncall", time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestNew_RejectsShortSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	_, err := New(Config{JWTSecret: "short"}, nil, nil, logger)
	assert.Error(t, err)
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestServer_ReportsRequireToken(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	_, err := store.AppendWeightMeasurement(ctx, "anna", 70, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/anna/weight", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users/anna/weight", nil)
	req.Header.Set("Authorization", bearer(t))
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"handle":"anna"`)
}

func TestServer_UnknownHandleIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/nobody/goals", nil)
	req.Header.Set("Authorization", bearer(t))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "https://dash.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/users/anna/today", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "https://dash.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
