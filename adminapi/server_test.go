package adminapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/device-transfer-backend/audit"
	"github.com/vitalsync/device-transfer-backend/identity"
	"github.com/vitalsync/device-transfer-backend/pairing"
	"github.com/vitalsync/device-transfer-backend/provider"
	"github.com/vitalsync/device-transfer-backend/secretstore"
	"github.com/vitalsync/device-transfer-backend/server"
)

type adminEnv struct {
	http     *httptest.Server
	pairing  *pairing.Service
	identity *identity.Service
	transfer *server.Server
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := secretstore.NewMemoryStore()

	identitySvc := identity.NewService(store, "test-device", "VitalSync", log)
	pairingSvc := pairing.NewService(store, log)
	require.NoError(t, pairingSvc.LoadPersistedTokens(context.Background()))

	transfer := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		DeviceName: "test-device",
		Log:        log,
	}, identitySvc, pairingSvc, provider.NewDemo(), audit.Nop{})

	admin := New(&Config{ListenAddr: "127.0.0.1:0", Log: log, GracefulShutdownDuration: time.Second},
		identitySvc, pairingSvc, transfer)

	ts := httptest.NewServer(admin.getRouter())
	t.Cleanup(ts.Close)
	t.Cleanup(transfer.Stop)

	return &adminEnv{http: ts, pairing: pairingSvc, identity: identitySvc, transfer: transfer}
}

func (e *adminEnv) do(t *testing.T, method, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, nil)
	require.NoError(t, err)
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthEndpoints(t *testing.T) {
	env := newAdminEnv(t)

	status, body := env.do(t, http.MethodGet, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = env.do(t, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestNewPairingCode(t *testing.T) {
	env := newAdminEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/pairing/code")
	require.Equal(t, http.StatusOK, status)
	code, ok := body["code"].(string)
	require.True(t, ok)
	assert.Len(t, code, 6)

	expiresAt, err := time.Parse(time.RFC3339, body["expiresAt"].(string))
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	assert.Equal(t, 1, env.pairing.ActiveCodeCount())
}

func TestCounters(t *testing.T) {
	env := newAdminEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/counters")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["activeCodes"])
	assert.Equal(t, float64(0), body["validTokens"])
	assert.Equal(t, "stopped", body["transferState"])
}

func TestRevokeDevice(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	code, err := env.pairing.GeneratePairingCode(ctx)
	require.NoError(t, err)
	token, err := env.pairing.ValidateCode(ctx, code.Code)
	require.NoError(t, err)
	require.NoError(t, env.pairing.RegisterDevice(ctx, "device-1", token))
	require.True(t, env.pairing.ValidateToken(token))

	status, body := env.do(t, http.MethodPost, "/api/v1/devices/device-1/revoke")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "revoked", body["status"])
	assert.False(t, env.pairing.ValidateToken(token))
}

func TestRevokeAll(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		code, err := env.pairing.GeneratePairingCode(ctx)
		require.NoError(t, err)
		_, err = env.pairing.ValidateCode(ctx, code.Code)
		require.NoError(t, err)
	}
	require.Equal(t, 3, env.pairing.ValidTokenCount())

	status, _ := env.do(t, http.MethodPost, "/api/v1/tokens/revoke-all")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.pairing.ValidTokenCount())
}

func TestRegenerateIdentity(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	before, err := env.identity.GetOrCreateIdentity(ctx)
	require.NoError(t, err)

	status, _ := env.do(t, http.MethodPost, "/api/v1/identity/regenerate")
	require.Equal(t, http.StatusOK, status)

	after, err := env.identity.GetOrCreateIdentity(ctx)
	require.NoError(t, err)
	assert.False(t, before.Equal(after))
}

func TestTransferLifecycle(t *testing.T) {
	env := newAdminEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/transfer/status")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stopped", body["state"])

	status, body = env.do(t, http.MethodPost, "/api/v1/transfer/start")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "started", body["status"])
	assert.NotZero(t, body["port"])

	// Starting a running server conflicts.
	status, _ = env.do(t, http.MethodPost, "/api/v1/transfer/start")
	assert.Equal(t, http.StatusConflict, status)

	status, body = env.do(t, http.MethodPost, "/api/v1/transfer/stop")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stopped", body["status"])

	status, body = env.do(t, http.MethodGet, "/api/v1/transfer/status")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stopped", body["state"])
}
