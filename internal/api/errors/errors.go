// Пакет errors — JSON-ответы с ошибками для фоновых запросов страниц
// (SSE, fetch) и служебных endpoints. Страницам отвечают HTML, этим
// клиентам redirect и разметка не нужны.
//
// Формат тела: {"error": {"code": "SESSION_EXPIRED", "message": "..."}}.
package errors

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Коды ошибок по HTTP-статусу ответа.
var codes = map[int]string{
	http.StatusBadRequest:          "VALIDATION_ERROR",
	http.StatusUnauthorized:        "SESSION_EXPIRED",
	http.StatusForbidden:           "FORBIDDEN",
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusConflict:            "UPLOAD_IN_PROGRESS",
	http.StatusBadGateway:          "API_UNAVAILABLE",
	http.StatusServiceUnavailable:  "NOT_READY",
	http.StatusInternalServerError: "INTERNAL_ERROR",
}

type body struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Code возвращает код ошибки для статуса; неизвестные 4xx — BAD_REQUEST,
// остальное — INTERNAL_ERROR.
func Code(status int) string {
	if c, ok := codes[status]; ok {
		return c
	}
	if status >= 400 && status < 500 {
		return "BAD_REQUEST"
	}
	return "INTERNAL_ERROR"
}

// Write записывает JSON-ответ ошибки со статусом status.
func Write(w http.ResponseWriter, status int, message string) {
	var b body
	b.Error.Code = Code(status)
	b.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(b)
}

// IsBackground сообщает, что запрос пришёл не от навигации браузера:
// EventSource или fetch с X-Requested-With.
func IsBackground(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		r.Header.Get("X-Requested-With") != ""
}

// IsService — служебные endpoints (probes, метрики).
func IsService(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/health/") || r.URL.Path == "/metrics"
}
