// Package adminapi exposes the operator-facing HTTP surface: pairing code
// generation, token and device revocation, identity rotation and transfer
// server lifecycle control. It binds to a local management address and is
// never reachable by paired devices.
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/vitalsync/device-transfer-backend/identity"
	"github.com/vitalsync/device-transfer-backend/pairing"
	"github.com/vitalsync/device-transfer-backend/server"
)

type Config struct {
	ListenAddr  string
	EnablePprof bool
	Log         *slog.Logger

	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Server is the admin HTTP server. It controls a transfer server and the
// identity and pairing services backing it.
type Server struct {
	cfg     *Config
	isReady atomic.Bool
	log     *slog.Logger

	identity *identity.Service
	pairing  *pairing.Service
	transfer *server.Server

	srv *http.Server
}

// New creates the admin server around the given services.
func New(cfg *Config, identitySvc *identity.Service, pairingSvc *pairing.Service, transfer *server.Server) *Server {
	srv := &Server{
		cfg:      cfg,
		log:      cfg.Log,
		identity: identitySvc,
		pairing:  pairingSvc,
		transfer: transfer,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.With(srv.httpLogger).Post("/api/v1/pairing/code", srv.handleNewPairingCode)
	mux.With(srv.httpLogger).Get("/api/v1/counters", srv.handleCounters)
	mux.With(srv.httpLogger).Post("/api/v1/devices/{device_id}/revoke", srv.handleRevokeDevice)
	mux.With(srv.httpLogger).Post("/api/v1/tokens/revoke-all", srv.handleRevokeAll)
	mux.With(srv.httpLogger).Post("/api/v1/identity/regenerate", srv.handleRegenerateIdentity)
	mux.With(srv.httpLogger).Post("/api/v1/transfer/start", srv.handleTransferStart)
	mux.With(srv.httpLogger).Post("/api/v1/transfer/stop", srv.handleTransferStop)
	mux.With(srv.httpLogger).Get("/api/v1/transfer/status", srv.handleTransferStatus)

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleNewPairingCode mints a short-lived pairing code for display to the
// operator. The code is returned exactly once and never logged.
func (srv *Server) handleNewPairingCode(w http.ResponseWriter, r *http.Request) {
	code, err := srv.pairing.GeneratePairingCode(r.Context())
	if err != nil {
		srv.log.Error("Generating pairing code failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not generate pairing code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (srv *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"activeCodes":   srv.pairing.ActiveCodeCount(),
		"validTokens":   srv.pairing.ValidTokenCount(),
		"transferState": srv.transfer.State().String(),
		"transferPort":  srv.transfer.Port(),
	})
}

func (srv *Server) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")
	if err := srv.pairing.RevokeDeviceToken(r.Context(), deviceID); err != nil {
		srv.log.Error("Revoking device token failed", "err", err, "deviceID", deviceID)
		writeError(w, http.StatusInternalServerError, "could not persist revocation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (srv *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	if err := srv.pairing.RevokeAll(r.Context()); err != nil {
		srv.log.Error("Revoking all tokens failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not persist revocation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleRegenerateIdentity rotates the TLS keypair and certificate. A running
// transfer server keeps serving the old certificate until restarted.
func (srv *Server) handleRegenerateIdentity(w http.ResponseWriter, r *http.Request) {
	if _, err := srv.identity.RegenerateIdentity(r.Context()); err != nil {
		srv.log.Error("Regenerating identity failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not regenerate identity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "regenerated"})
}

func (srv *Server) handleTransferStart(w http.ResponseWriter, r *http.Request) {
	err := srv.transfer.Start(r.Context())
	if errors.Is(err, server.ErrNotStopped) {
		writeError(w, http.StatusConflict, "transfer server is not stopped")
		return
	}
	if err != nil {
		srv.log.Error("Starting transfer server failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "started",
		"port":   srv.transfer.Port(),
	})
}

func (srv *Server) handleTransferStop(w http.ResponseWriter, r *http.Request) {
	srv.transfer.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (srv *Server) handleTransferStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"state": srv.transfer.State().String(),
		"port":  srv.transfer.Port(),
	}
	if err := srv.transfer.Err(); err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting admin HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("Admin HTTP server failed", "err", err)
		}
	}()
}

func (srv *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful admin HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("Admin HTTP server gracefully stopped")
	}
}
