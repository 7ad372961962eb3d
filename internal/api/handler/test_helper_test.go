package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nourselim0/http-process-wrapper/internal/api/dto"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
	"github.com/nourselim0/http-process-wrapper/internal/infrastructure/sqlite"
	"github.com/nourselim0/http-process-wrapper/internal/supervisor"
	"github.com/nourselim0/http-process-wrapper/pkg/config"
)

// testEnv holds all test dependencies
type testEnv struct {
	db     *sqlite.DB
	sup    *supervisor.Supervisor
	router *gin.Engine
}

// setupTestEnv creates a test environment with a real supervisor and an
// in-memory SQLite database behind the event recorder
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	cfg := &config.Config{
		MaxBufferBytes:       1 << 20,
		DefaultGraceMillis:   2000,
		KillWaitMillis:       2000,
		SubscriberQueueDepth: 64,
		OverflowPolicy:       config.OverflowDropOldest,
	}

	eventRepo := sqlite.NewEventRepository(db)
	eventRecorder := service.NewEventRecorder(eventRepo, zerolog.Nop())
	sup := supervisor.New(cfg, eventRecorder, zerolog.Nop())

	procHandler := NewProcHandler(sup, eventRecorder)

	// Setup gin router in test mode, routes registered without auth middleware
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/procs", procHandler.ListProcs)
	router.POST("/procs", procHandler.CreateProc)
	router.GET("/procs/:name", procHandler.GetProc)
	router.POST("/procs/:name/start", procHandler.StartProc)
	router.POST("/procs/:name/stop", procHandler.StopProc)
	router.POST("/procs/:name/restart", procHandler.RestartProc)
	router.POST("/procs/:name/write", procHandler.WriteInput)
	router.GET("/procs/:name/output", procHandler.ReadOutput)
	router.GET("/procs/:name/tail", procHandler.Tail)
	router.GET("/procs/:name/tail-text", procHandler.TailText)
	router.GET("/procs/:name/events", procHandler.ListEvents)
	router.DELETE("/procs/:name", procHandler.DeleteProc)

	return &testEnv{
		db:     db,
		sup:    sup,
		router: router,
	}
}

// cleanup stops any supervised processes and closes the test database
func (env *testEnv) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	env.sup.Shutdown(ctx)

	if env.db != nil {
		env.db.Close()
	}
}

// makeRequest performs an HTTP request against the test router
func (env *testEnv) makeRequest(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// createProc registers a process through the API and fails the test on error
func (env *testEnv) createProc(t *testing.T, id string, command []string, start bool) {
	t.Helper()

	path := "/procs?start=false"
	if start {
		path = "/procs?start=true"
	}
	w := env.makeRequest(t, http.MethodPost, path, map[string]interface{}{
		"id":      id,
		"command": command,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create process %s: status %d, body %s", id, w.Code, w.Body.String())
	}
}

// waitForState polls the status endpoint until the process reaches the
// wanted state or the deadline passes
func (env *testEnv) waitForState(t *testing.T, id, want string) dto.ProcResponse {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := env.makeRequest(t, http.MethodGet, "/procs/"+id, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status request for %s failed: %d", id, w.Code)
		}
		resp := parseProcResponse(t, w)
		if resp.State == want {
			return resp
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("process %s never reached state %s", id, want)
	return dto.ProcResponse{}
}

func parseProcResponse(t *testing.T, w *httptest.ResponseRecorder) dto.ProcResponse {
	t.Helper()

	var resp dto.ProcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

func parseProcListResponse(t *testing.T, w *httptest.ResponseRecorder) dto.ProcListResponse {
	t.Helper()

	var resp dto.ProcListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

func parseOutputResponse(t *testing.T, w *httptest.ResponseRecorder) dto.OutputResponse {
	t.Helper()

	var resp dto.OutputResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

func parseTailResponse(t *testing.T, w *httptest.ResponseRecorder) dto.TailResponse {
	t.Helper()

	var resp dto.TailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

func parseEventListResponse(t *testing.T, w *httptest.ResponseRecorder) dto.EventListResponse {
	t.Helper()

	var resp dto.EventListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var resp dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}
