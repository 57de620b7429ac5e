package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/app"
	"github.com/JakeFAU/company-signals/internal/config"
	"github.com/JakeFAU/company-signals/internal/crawler"
	"github.com/JakeFAU/company-signals/internal/metrics"
)

// DefaultMaxUploadBytes caps an uploaded target list when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// Runner executes one scrape over an uploaded target list.
type Runner interface {
	Process(ctx context.Context, r io.Reader) (app.Result, error)
	ArchiveName() string
}

// Server wires HTTP handlers to the runner.
type Server struct {
	router chi.Router
	runner Runner
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		// One run at a time; extra callers get 429.
		r.With(middleware.Throttle(1)).Post("/runs", s.createRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type skippedRows struct {
	Blank      int `json:"blank"`
	InvalidURL int `json:"invalid_url"`
}

type runResponse struct {
	Run        crawler.Run       `json:"run"`
	Counts     crawler.RunCounts `json:"counts"`
	Skipped    skippedRows       `json:"skipped"`
	ArchiveURI string            `json:"archive_uri,omitempty"`
}

// createRun accepts a target CSV either as the raw body or as the "file" field
// of a multipart form. The archive is returned unless format=json is requested.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Server.MaxUploadBytes)
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	body, closeBody, err := uploadedCSV(r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	defer closeBody()

	res, err := s.runner.Process(r.Context(), body)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	counts := res.Run.Counts()
	w.Header().Set("X-Run-ID", res.Run.ID)
	w.Header().Set("X-Targets", strconv.Itoa(counts.Targets))
	w.Header().Set("X-Profiles", strconv.Itoa(counts.Profiles))
	if res.ArchiveURI != "" {
		w.Header().Set("X-Archive-URI", res.ArchiveURI)
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, runResponse{
			Run:        res.Run,
			Counts:     counts,
			Skipped:    skippedRows{Blank: res.Input.Blank, InvalidURL: res.Input.InvalidURL},
			ArchiveURI: res.ArchiveURI,
		})
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": s.runner.ArchiveName(),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		s.logger.Warn("archive write failed", zap.String("run_id", res.Run.ID), zap.Error(err))
	}
}

func uploadedCSV(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, fmt.Errorf("%w: multipart field \"file\" is required", app.ErrInvalidInput)
		}
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, statusClientClosedRequest, "request canceled")
	default:
		s.logger.Error("run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run failed")
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("error", rec),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
