// health.go — служебные endpoints веб-интерфейса.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (REST API библиотеки доступен)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swanith1234/LibraryManagementSystem/internal/config"
)

const serviceName = "library-ui"

// Константы статусов health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — проверка готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// DependencyHealth — состояние зависимостей по данным фонового мониторинга.
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler — обработчик служебных endpoints.
type HealthHandler struct {
	apiChecker  ReadinessChecker
	deps        DependencyHealth
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик. apiChecker — синхронная проверка
// REST API (nil — readiness вернёт fail); deps может быть nil.
func NewHealthHandler(apiChecker ReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		apiChecker:  apiChecker,
		deps:        deps,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive — liveness probe. Всегда 200, пока процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. Проверяет REST API синхронно и добавляет
// результаты фонового мониторинга. 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    map[string]healthCheckResult{},
	}

	if h.apiChecker != nil {
		st, msg := h.apiChecker.CheckReady()
		resp.Checks["library_api"] = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks["library_api"] = healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}

	// Фоновый мониторинг не валит readiness: расхождение с синхронной
	// проверкой отражается как degraded.
	if h.deps != nil {
		names := make([]string, 0)
		health := h.deps.Health()
		for name := range health {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if health[name] {
				resp.Checks["dephealth:"+name] = healthCheckResult{Status: statusOK}
			} else {
				resp.Checks["dephealth:"+name] = healthCheckResult{Status: statusDegraded, Message: "фоновая проверка не прошла"}
			}
		}
	}

	statuses := make([]string, 0, len(resp.Checks))
	for _, c := range resp.Checks {
		statuses = append(statuses, c.Status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus: хотя бы один fail — fail, хотя бы один degraded — degraded, иначе ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
