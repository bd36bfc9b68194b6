// Package api exposes the dispatcher over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tazhate/calbridge/internal/dispatch"
	"github.com/tazhate/calbridge/internal/pluginerr"
)

// maxBody bounds the options object of one call.
const maxBody = 1 << 20

// Caller runs commands and describes them.
type Caller interface {
	Call(ctx context.Context, name string, options map[string]any) (any, error)
	Catalog() []dispatch.CommandInfo
}

type Config struct {
	Addr     string
	Username string
	Password string
	// Webhook receives Telegram updates on POST /bot when set.
	Webhook http.Handler
}

type Server struct {
	caller Caller
	cfg    Config
	logger *slog.Logger
	server *http.Server
}

func New(caller Caller, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{caller: caller, cfg: cfg, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/call/{command}", s.basicAuth(s.apiCall))
	mux.HandleFunc("GET /api/commands", s.basicAuth(s.apiCommands))
	if s.cfg.Webhook != nil {
		mux.Handle("POST /bot", s.cfg.Webhook)
	}
	return mux
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// basicAuth middleware; a no-op when no credentials are configured.
func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != s.cfg.Username || password != s.cfg.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="calbridge API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// POST /api/call/{command} - run one command with a JSON options object
func (s *Server) apiCall(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.jsonRejection(w, pluginerr.New(pluginerr.InvalidKey, name, "options"))
		return
	}
	options := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&options); err != nil {
			s.jsonRejection(w, pluginerr.New(pluginerr.InvalidKey, name, "options"))
			return
		}
	}

	out, err := s.caller.Call(r.Context(), name, options)
	if err != nil {
		s.jsonRejection(w, pluginerr.FromError(err, name))
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// GET /api/commands - describe supported commands
func (s *Server) apiCommands(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.caller.Catalog())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *Server) jsonRejection(w http.ResponseWriter, pe *pluginerr.Error) {
	s.jsonResponse(w, StatusFor(pe.Kind), pe.Payload())
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind pluginerr.Kind) int {
	switch kind {
	case pluginerr.MissingKey, pluginerr.InvalidKey:
		return http.StatusBadRequest
	case pluginerr.NoAccess:
		return http.StatusForbidden
	case pluginerr.CalendarNotFound:
		return http.StatusNotFound
	case pluginerr.NoDefaultCalendar:
		return http.StatusConflict
	case pluginerr.Unimplemented:
		return http.StatusNotImplemented
	case pluginerr.NoViewController, pluginerr.UnableToOpenCalendar, pluginerr.UnableToOpenReminders:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
