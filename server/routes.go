package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/vitalsync/device-transfer-backend/interfaces"
	"github.com/vitalsync/device-transfer-backend/pairing"
	"github.com/vitalsync/device-transfer-backend/wire"
)

const (
	defaultPageLimit = 500
	maxPageLimit     = 1000
)

// route dispatches a parsed request to its handler by method and path.
func (s *Server) route(ctx context.Context, req *wire.Request, remoteAddr string) *wire.Response {
	switch {
	case req.Method == "GET" && req.Path == "/status":
		return s.handleStatus(ctx)
	case req.Method == "POST" && req.Path == "/api/v1/pair":
		return s.handlePair(ctx, req, remoteAddr)
	case req.Method == "GET" && req.Path == "/health/types":
		return s.withAuth(ctx, req, remoteAddr, s.handleTypes)
	case req.Method == "GET" && req.Path == "/health/data":
		return s.withAuth(ctx, req, remoteAddr, s.handleData)
	default:
		return wire.JSONError(404, "unknown route")
	}
}

// withAuth validates the bearer token before invoking the handler. Missing
// and invalid tokens are reported identically.
func (s *Server) withAuth(ctx context.Context, req *wire.Request, remoteAddr string, handler func(context.Context, *wire.Request) *wire.Response) *wire.Response {
	token, ok := req.BearerToken()
	if !ok || !s.pairing.ValidateToken(token) {
		s.audit.RecordEvent(ctx, interfaces.AuditEvent{
			Type:       interfaces.EventAuthFailure,
			Method:     req.Method,
			Path:       req.Path,
			RemoteAddr: remoteAddr,
		})
		return wire.JSONError(401, "missing or invalid credential")
	}
	return handler(ctx, req)
}

func (s *Server) handleStatus(ctx context.Context) *wire.Response {
	categories, err := s.provider.Categories(ctx)
	if err != nil {
		s.log.Error("Listing categories failed", "err", err)
		return wire.JSONError(500, "data provider unavailable")
	}
	return wire.JSONSuccess(map[string]any{
		"status":         "ok",
		"version":        s.cfg.Version,
		"deviceName":     s.cfg.DeviceName,
		"availableTypes": len(categories),
	})
}

func (s *Server) handlePair(ctx context.Context, req *wire.Request, remoteAddr string) *wire.Response {
	var body struct {
		Code       string `json:"code"`
		DeviceName string `json:"deviceName"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil || body.Code == "" {
		return wire.JSONError(400, "body must contain a pairing code")
	}

	token, err := s.pairing.ValidateCode(ctx, body.Code)
	if errors.Is(err, pairing.ErrInvalidCode) {
		s.audit.RecordEvent(ctx, interfaces.AuditEvent{
			Type:       interfaces.EventPairingFailure,
			RemoteAddr: remoteAddr,
		})
		return wire.JSONError(401, "invalid or expired pairing code")
	}
	if err != nil {
		s.log.Error("Activating token failed", "err", err)
		return wire.JSONError(500, "internal failure")
	}

	deviceID := uuid.New().String()
	if err := s.pairing.RegisterDevice(ctx, deviceID, token); err != nil {
		s.log.Error("Registering device failed", "err", err, "deviceID", deviceID)
		return wire.JSONError(500, "internal failure")
	}

	s.audit.RecordEvent(ctx, interfaces.AuditEvent{
		Type:       interfaces.EventPairingSuccess,
		RemoteAddr: remoteAddr,
		DeviceID:   deviceID,
		Detail:     body.DeviceName,
	})
	return wire.JSONSuccess(map[string]string{
		"token":    token,
		"deviceID": deviceID,
	})
}

func (s *Server) handleTypes(ctx context.Context, req *wire.Request) *wire.Response {
	categories, err := s.provider.Categories(ctx)
	if err != nil {
		s.log.Error("Listing categories failed", "err", err)
		return wire.JSONError(500, "data provider unavailable")
	}
	return wire.JSONSuccess(map[string]any{"types": categories})
}

func (s *Server) handleData(ctx context.Context, req *wire.Request) *wire.Response {
	category := req.Query["type"]
	if category == "" {
		return wire.JSONError(400, "missing type parameter")
	}

	offset, ok := intParam(req.Query, "offset", 0)
	if !ok || offset < 0 {
		return wire.JSONError(400, "bad offset parameter")
	}
	limit, ok := intParam(req.Query, "limit", defaultPageLimit)
	if !ok || limit <= 0 {
		return wire.JSONError(400, "bad limit parameter")
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	items, total, err := s.provider.Samples(ctx, category, offset, limit)
	if errors.Is(err, interfaces.ErrUnknownCategory) {
		return wire.JSONError(400, "unknown type parameter")
	}
	if err != nil {
		s.log.Error("Fetching samples failed", "err", err, "type", category)
		return wire.JSONError(500, "data provider unavailable")
	}

	return wire.JSONSuccess(map[string]any{
		"type":    category,
		"items":   items,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
		"hasMore": offset+len(items) < total,
	})
}

func intParam(query map[string]string, name string, fallback int) (int, bool) {
	raw, ok := query[name]
	if !ok || raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
