package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/cellular/at"
	"i4.energy/across/cellular/modem"
)

// Cellular is the part of modem.Module the server uses.
type Cellular interface {
	Name() string
	State() modem.State
	Signal(ctx context.Context) (at.Signal, error)
	Battery(ctx context.Context) (float64, error)
	Session() modem.Session
	AcquireFix(ctx context.Context, budget time.Duration) at.Fix
	OpenSession(ctx context.Context, address string, port int) error
	CloseSession(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, bool, error)
}

var _ Cellular = (*modem.Module)(nil)

const maxSendBody = 64 << 10

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *zap.Logger
	Modem  Cellular
	// GPSBudget is the longest a GPS request may search for a fix
	GPSBudget time.Duration
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /gps", s.handleGPS)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	s.sendJSON(w, resp, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Debug("write response", zap.Error(err))
	}
}

// statusFor maps modem errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modem.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrNotReady), errors.Is(err, modem.ErrSessionNotOpen):
		return http.StatusConflict
	case errors.Is(err, modem.ErrInvalidEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, modem.ErrSessionCapExceeded),
		errors.Is(err, modem.ErrSendRejected),
		errors.Is(err, modem.ErrTimeout),
		errors.Is(err, modem.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type signalStatus struct {
	RSSI int    `json:"rssi"`
	BER  int    `json:"ber"`
	Band string `json:"band"`
}

type statusResponse struct {
	Module  string         `json:"module"`
	State   modem.State    `json:"state"`
	Signal  *signalStatus  `json:"signal,omitempty"`
	Battery *float64       `json:"battery_volts,omitempty"`
	Session *modem.Session `json:"session,omitempty"`
}

// handleStatus reports the bring-up state and session. Signal and battery
// are added once the module is ready and not busy with another request.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Module: s.Modem.Name(),
		State:  s.Modem.State(),
	}
	if sess := s.Modem.Session(); sess.State != modem.SessionClosed {
		resp.Session = &sess
	}

	if resp.State == modem.StateReady {
		sig, err := s.Modem.Signal(r.Context())
		if err != nil {
			s.Logger.Debug("signal unavailable", zap.Error(err))
		} else {
			resp.Signal = &signalStatus{RSSI: sig.RSSI, BER: sig.BER, Band: sig.Band.String()}
		}

		volts, err := s.Modem.Battery(r.Context())
		if err != nil {
			s.Logger.Debug("battery unavailable", zap.Error(err))
		} else {
			resp.Battery = &volts
		}
	}

	s.sendJSON(w, resp, http.StatusOK)
}

type gpsResponse struct {
	Fixed      bool    `json:"fixed"`
	UTC        string  `json:"utc,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	Altitude   float64 `json:"altitude,omitempty"`
	Satellites int     `json:"satellites,omitempty"`
}

// handleGPS searches for a fix. The optional "budget" query parameter
// shortens the search below the configured maximum.
func (s *Server) handleGPS(w http.ResponseWriter, r *http.Request) {
	budget := s.GPSBudget
	if q := r.URL.Query().Get("budget"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d <= 0 {
			s.sendError(w, "invalid budget", http.StatusBadRequest)
			return
		}
		budget = min(budget, d)
	}

	fix := s.Modem.AcquireFix(r.Context(), budget)
	if !fix.Fixed {
		s.sendJSON(w, gpsResponse{}, http.StatusNotFound)
		return
	}
	s.sendJSON(w, gpsResponse{
		Fixed:      true,
		UTC:        fix.UTC,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Altitude:   fix.Altitude,
		Satellites: fix.Satellites,
	}, http.StatusOK)
}

type sendRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Data    string `json:"data"`
}

type sendResponse struct {
	Sent  int    `json:"sent"`
	Reply string `json:"reply,omitempty"`
}

// handleSend writes data to address:port, opening the session if needed,
// and returns whatever the peer answered so far.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSendBody)).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Address == "" || req.Data == "" {
		s.sendError(w, "'address', 'port' and 'data' fields are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := s.Logger.With(zap.String("address", req.Address), zap.Int("port", req.Port))

	if err := s.ensureSession(ctx, req.Address, req.Port); err != nil {
		log.Error("Failed to open session", zap.Error(err))
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	if err := s.Modem.Send(ctx, []byte(req.Data)); err != nil {
		log.Error("Failed to send data", zap.Error(err))
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	resp := sendResponse{Sent: len(req.Data)}
	reply, ok, err := s.Modem.Receive(ctx)
	switch {
	case err != nil:
		log.Warn("Failed to read reply", zap.Error(err))
	case ok:
		resp.Reply = string(reply)
	}

	log.Info("Data sent", zap.Int("bytes", resp.Sent), zap.Int("reply_bytes", len(resp.Reply)))
	s.sendJSON(w, resp, http.StatusOK)
}

// ensureSession reuses an open session to the same endpoint and replaces
// one to a different endpoint.
func (s *Server) ensureSession(ctx context.Context, address string, port int) error {
	sess := s.Modem.Session()
	if sess.State == modem.SessionOpen && sess.Address == address && sess.Port == port {
		return nil
	}
	if sess.State != modem.SessionClosed {
		if err := s.Modem.CloseSession(ctx); err != nil {
			s.Logger.Warn("Failed to close previous session", zap.Error(err))
		}
	}
	return s.Modem.OpenSession(ctx, address, port)
}
