package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubChecker struct {
	status, message string
}

func (s stubChecker) CheckReady() (string, string) { return s.status, s.message }

type stubDeps map[string]bool

func (s stubDeps) Health() map[string]bool { return s }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("декодирование: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "library-ui" {
		t.Errorf("ответ %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		deps       DependencyHealth
		wantCode   int
		wantStatus string
	}{
		{"API доступен", stubChecker{"ok", ""}, nil, http.StatusOK, "ok"},
		{"API недоступен", stubChecker{"fail", "connection refused"}, nil, http.StatusServiceUnavailable, "fail"},
		{"нет проверки", nil, nil, http.StatusServiceUnavailable, "fail"},
		{"фоновая проверка не прошла", stubChecker{"ok", ""}, stubDeps{"library-api": false}, http.StatusOK, "degraded"},
		{"фоновая проверка прошла", stubChecker{"ok", ""}, stubDeps{"library-api": true}, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checker, tt.deps)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("статус %d, ожидается %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("декодирование: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидается %q", resp.Status, tt.wantStatus)
			}
			if _, ok := resp.Checks["library_api"]; !ok {
				t.Error("в ответе нет проверки library_api")
			}
		})
	}
}

func TestGetMetrics(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.GetMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("метрики: статус %d", rec.Code)
	}
}
