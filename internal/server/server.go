// Package server exposes the driver as an HTTP and websocket compile service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dxdrive/internal/driver"
)

// DefaultMaxSource bounds request bodies and websocket messages.
const DefaultMaxSource = 4 << 20

// Options configures a Server.
type Options struct {
	Driver *driver.Driver
	Logger logrus.FieldLogger
	// RatePerSecond and Burst size each client's token bucket; a
	// non-positive rate disables limiting.
	RatePerSecond  float64
	Burst          int
	// TrustProxy takes client addresses from X-Forwarded-For.
	TrustProxy     bool
	MaxSource      int64
	MaxDiagnostics int
}

// Server handles compile requests. Every request gets its own driver call.
type Server struct {
	drv            *driver.Driver
	log            logrus.FieldLogger
	limiter        *Limiter
	maxSource      int64
	maxDiagnostics int
	upgrader       websocket.Upgrader
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		drv:            opts.Driver,
		log:            opts.Logger,
		limiter:        NewLimiter(opts.RatePerSecond, opts.Burst),
		maxSource:      opts.MaxSource,
		maxDiagnostics: opts.MaxDiagnostics,
	}
	s.limiter.trustForwarded = opts.TrustProxy
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	if s.maxSource <= 0 {
		s.maxSource = DefaultMaxSource
	}
	if s.maxDiagnostics <= 0 {
		s.maxDiagnostics = 100
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// Handler returns the service routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/compile", s.limiter.Middleware(s.handleCompile))
	mux.HandleFunc("GET /api/ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return enableCORS(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("compile service listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) compile(ctx context.Context, requestID string, c *CompileRequest) (CompileResponse, int) {
	log := s.log.WithField("request_id", requestID)
	req, err := c.toRequest()
	if err != nil {
		log.WithError(err).Debug("rejected request")
		return CompileResponse{
			RequestID: requestID,
			Status:    driver.StatusInvalidArgument.String(),
			Error:     err.Error(),
		}, http.StatusBadRequest
	}
	out := s.drv.Compile(ctx, req)
	defer out.Release()
	resp := s.respond(requestID, c, &out)
	log.WithFields(logrus.Fields{"call_id": out.CallID, "status": resp.Status}).Info("compiled request")
	return resp, httpStatus(out.Status)
}

// httpStatus maps an outcome to a response code. Compile errors are a
// successful call about a bad shader.
func httpStatus(st driver.Status) int {
	switch st {
	case driver.StatusSuccess, driver.StatusCompileErrors:
		return http.StatusOK
	case driver.StatusInvalidArgument:
		return http.StatusBadRequest
	case driver.StatusBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	var body CompileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxSource))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{RequestID: requestID, Error: "invalid request body: " + err.Error()})
		return
	}
	resp, code := s.compile(r.Context(), requestID, &body)
	writeJSON(w, code, resp)
}

// handleWS reads compile requests as JSON text messages and answers each in
// order on the same connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	client := clientIP(r, s.limiter.trustForwarded)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	log := s.log.WithField("remote", client)
	log.Debug("websocket client connected")
	defer func() {
		_ = conn.Close()
		log.Debug("websocket client disconnected")
	}()
	conn.SetReadLimit(s.maxSource)

	for {
		var body CompileRequest
		if err := conn.ReadJSON(&body); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				if werr := conn.WriteJSON(errorResponse{Error: "invalid message: " + err.Error()}); werr != nil {
					return
				}
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		requestID := uuid.NewString()
		if !s.limiter.Allow(client) {
			if err := conn.WriteJSON(errorResponse{RequestID: requestID, Error: "too many requests"}); err != nil {
				return
			}
			continue
		}
		resp, _ := s.compile(r.Context(), requestID, &body)
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Warn("websocket write failed")
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.drv.BackendName(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// enableCORS allows browser front ends on other origins.
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
