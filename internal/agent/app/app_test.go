package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/authsession/internal/agent/client"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := defaultConfig()
	cfg.IssuerURL = "https://sso.example.com/realms/main"
	cfg.ClientID = "portal"
	cfg.StorageMode = StorageMemory
	cfg.OpenBrowser = false
	cfg.LogLevel = "error"
	cfg.applyDerived()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *Application {
	t.Helper()
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.coord.Close()
		_ = app.store.Close()
	})
	return app
}

func TestNewServesAgentAPI(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status client.SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.False(t, status.Authenticated)
	require.False(t, status.StorageDegraded)
}

func TestAgentSecretIsEnforced(t *testing.T) {
	cfg := testConfig(t)
	cfg.AgentSecret = "s3cret"
	app := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSQLiteStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageMode = StorageSQLite
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "session.db")
	cfg.StoragePassphrase = "correct horse"

	app := newTestApp(t, cfg)
	require.False(t, app.Store().Degraded())
}

func TestUnopenableDatabaseFallsBackToMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageMode = StorageSQLite
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "missing", "dir", "session.db")

	app := newTestApp(t, cfg)
	require.True(t, app.Store().Degraded())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status client.SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.True(t, status.StorageDegraded)
}

func TestNewRejectsBadProviderConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClientID = ""

	_, err := New(cfg)
	require.Error(t, err)
}
