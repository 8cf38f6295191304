package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSessionExpired — обновить access token не удалось или повторный запрос
	// снова получил 401. Токены к этому моменту уже удалены из хранилища.
	ErrSessionExpired = errors.New("сессия истекла, требуется повторный вход")
	// ErrNoToken — в ответе на вход или обновление нет access token
	ErrNoToken = errors.New("сервер не вернул access token")
)

// APIError — ошибка, которую вернул REST API: HTTP-статус и сообщение сервера.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API вернул статус %d", e.Status)
	}
	return fmt.Sprintf("API вернул статус %d: %s", e.Status, e.Message)
}

// IsStatus проверяет, что err содержит APIError с указанным статусом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsNotFound проверяет, что ресурс не найден (404).
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// Message возвращает сообщение сервера, если err — APIError, иначе err.Error().
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// errorBody — варианты тела ошибки: {"error": ...}, {"detail": ...}, {"message": ...}.
// error может быть строкой или объектом {"message": ...}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Detail  string          `json:"detail"`
	Message string          `json:"message"`
}

// newAPIError строит APIError из статуса и тела ответа.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case len(eb.Error) > 0:
			apiErr.Message = rawErrorMessage(eb.Error)
		case eb.Detail != "":
			apiErr.Message = eb.Detail
		case eb.Message != "":
			apiErr.Message = eb.Message
		}
	}

	if apiErr.Message == "" {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 {
			text = text[:200]
		}
		if text == "" || strings.HasPrefix(text, "<") {
			text = http.StatusText(status)
		}
		apiErr.Message = text
	}
	return apiErr
}

func rawErrorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return string(raw)
}
