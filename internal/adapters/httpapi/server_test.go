package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jobrunner/tilery/internal/application"
)

type stubSource struct {
	status application.Status
}

func (s stubSource) Status() application.Status { return s.status }

func newTestServer(status application.Status) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewServer("127.0.0.1:0", stubSource{status: status}, logger)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(application.Status{
		RunID:         "run-1",
		State:         "rendering",
		TilesPlanned:  100,
		TilesRendered: 42,
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}

	var got application.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if got.RunID != "run-1" || got.State != "rendering" {
		t.Errorf("status = %+v", got)
	}
	if got.TilesPlanned != 100 || got.TilesRendered != 42 {
		t.Errorf("counts = %d/%d, want 42/100", got.TilesRendered, got.TilesPlanned)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(application.Status{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
}

func TestStatusEndpointRejectsPost(t *testing.T) {
	s := newTestServer(application.Status{})

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want 405", rec.Code)
	}
}
