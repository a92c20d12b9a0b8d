package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/service/dialogue"
	"github.com/zhouzirui/echomind/backend/internal/service/metrics"
	"github.com/zhouzirui/echomind/backend/internal/store"
)

func newTestRouter() http.Handler {
	st := store.NewMemoryStore()
	dialogueSvc := dialogue.NewService(st, auth.ContextProvider{}, nil, dialogue.Options{}, zap.NewNop())
	return NewRouter(st, dialogueSvc, metrics.NewService(st, auth.ContextProvider{}), "X-Caller", zap.NewNop())
}

func TestHealthz(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterUsesConfiguredIdentityHeader(t *testing.T) {
	r := newTestRouter()

	setup := httptest.NewRecorder()
	r.ServeHTTP(setup, httptest.NewRequest(http.MethodPost, "/api/setup", nil))
	if setup.Code != http.StatusOK {
		t.Fatalf("setup: expected 200, got %d", setup.Code)
	}

	body := []byte(`{"text":"hello","sessionId":"s1"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/voice", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "alice")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("default header must be ignored, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/voice", bytes.NewReader(body))
	req.Header.Set("X-Caller", "alice")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRoutesAreMounted(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/api/intents", "/api/metrics", "/api/conversations/s1"} {
		resp := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Caller", "alice")
		r.ServeHTTP(resp, req)
		if resp.Code == http.StatusMethodNotAllowed || (resp.Code == http.StatusNotFound && path != "/api/conversations/s1") {
			t.Fatalf("%s: route not mounted (status %d)", path, resp.Code)
		}
	}
}
