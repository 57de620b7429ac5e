package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/app"
	"github.com/JakeFAU/company-signals/internal/config"
	"github.com/JakeFAU/company-signals/internal/crawler"
	"github.com/JakeFAU/company-signals/internal/input"
)

const sampleCSV = "Company,Website,Person LinkedIn Url\nAcme,https://acme.test,p-1\n"

func TestServer_CreateRunReturnsArchive(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: sampleResult()}
	server := newTestServer(runner, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=scraping_output.zip", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "run-1", rec.Header().Get("X-Run-ID"))
	assert.Equal(t, "1", rec.Header().Get("X-Targets"))
	assert.Equal(t, "1", rec.Header().Get("X-Profiles"))
	assert.Equal(t, "PK-zip", rec.Body.String())
	assert.Equal(t, sampleCSV, runner.lastBody())
}

func TestServer_CreateRunAcceptsMultipart(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: sampleResult()}
	server := newTestServer(runner, config.Config{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "targets.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sampleCSV, runner.lastBody())
}

func TestServer_CreateRunMultipartMissingFile(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: sampleResult()}
	server := newTestServer(runner, config.Config{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file")
	assert.Zero(t, runner.callCount())
}

func TestServer_CreateRunJSONFormat(t *testing.T) {
	t.Parallel()

	result := sampleResult()
	result.Input.Blank = 2
	result.ArchiveURI = "memory://run-1/scraping_output.zip"
	server := newTestServer(&fakeRunner{result: result}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs?format=json", bytes.NewBufferString(sampleCSV))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, result.ArchiveURI, rec.Header().Get("X-Archive-URI"))

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Run.ID)
	assert.Equal(t, 1, body.Counts.Profiles)
	assert.Equal(t, 2, body.Skipped.Blank)
	assert.Equal(t, result.ArchiveURI, body.ArchiveURI)
}

func TestServer_CreateRunInvalidInput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: fmt.Errorf("%w: %w", app.ErrInvalidInput, input.ErrMissingColumn)}
	server := newTestServer(runner, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString("Name\nAcme\n"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateRunInternalError(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{err: errors.New("entropy")}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "entropy")
}

func TestServer_CreateRunUploadTooLarge(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: sampleResult()}
	server := newTestServer(runner, config.Config{Server: config.ServerConfig{MaxUploadBytes: 8}})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_CreateRunThrottlesConcurrentRuns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	runner := &fakeRunner{result: sampleResult(), block: release}
	server := newTestServer(runner, config.Config{})

	first := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		first <- rec.Code
	}()
	require.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestServer_HealthAndReady(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, config.Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	NewServer(nil, config.Config{}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Auth: config.AuthConfig{
			Enabled: true,
			APIKey:  "secret",
		},
	}
	runner := &fakeRunner{result: sampleResult()}
	server := newTestServer(runner, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(sampleCSV))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open for the orchestrator.
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestServer(&fakeRunner{}, config.Config{}).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeRunner struct {
	mu     sync.Mutex
	result app.Result
	err    error
	block  chan struct{}
	bodies []string
}

func (f *fakeRunner) Process(_ context.Context, r io.Reader) (app.Result, error) {
	data, err := io.ReadAll(r)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(data))
	f.mu.Unlock()
	if err != nil {
		return app.Result{}, fmt.Errorf("%w: %w", app.ErrInvalidInput, err)
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeRunner) ArchiveName() string {
	return "scraping_output.zip"
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func (f *fakeRunner) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

func sampleResult() app.Result {
	return app.Result{
		Run: crawler.Run{
			ID: "run-1",
			Profiles: []crawler.Profile{
				{Company: "Acme", Website: "https://acme.test", PageText: "rockets"},
			},
			Logs: []crawler.LogRecord{
				{Company: "Acme", Website: "https://acme.test", Status: crawler.StatusSuccess},
			},
		},
		Archive: []byte("PK-zip"),
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(runner Runner, cfg config.Config) *Server {
	return NewServer(runner, cfg, zap.NewNop())
}
