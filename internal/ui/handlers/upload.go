package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/uploadstate"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// multipartOverhead — запас на заголовки multipart сверх размера файла.
const multipartOverhead = 1 << 20

// UploadHandler — массовая загрузка каталога из CSV с индикатором прогресса.
// Прогресс передаётся браузеру потоком SSE (text/event-stream).
type UploadHandler struct {
	base   *Base
	tasks  *service.TaskRegistry
	logger *slog.Logger
}

// NewUploadHandler создаёт обработчик загрузки.
func NewUploadHandler(base *Base, tasks *service.TaskRegistry, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		base:   base,
		tasks:  tasks,
		logger: logger.With(slog.String("component", "ui.upload")),
	}
}

func (h *UploadHandler) tracker(r *http.Request) *service.UploadTracker {
	opts := h.base.settings.Tracker
	opts.OnComplete = func(_ context.Context, task model.UploadTask) {
		h.logger.Info("Каталог обновлён загрузкой",
			slog.String("task_id", task.ID),
			slog.Int("processed", task.Processed.Int()),
		)
	}
	return service.NewUploadTracker(h.base.client(r), h.tasks.For(h.base.user(r).ID), opts, h.logger)
}

// Page — GET /books/upload. Если задача пользователя ещё отслеживается,
// показывается индикатор вместо формы.
func (h *UploadHandler) Page(w http.ResponseWriter, r *http.Request) {
	taskID, _ := h.tracker(r).Resume()
	h.base.page(w, r, "upload", pages.UploadData{
		View:     h.base.view(w, r, "title.upload", rbac.PathBooks),
		TaskID:   taskID,
		MaxBytes: h.base.settings.UploadMaxBytes,
	})
}

// Submit — POST /books/upload (multipart, поле file).
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.base.settings.UploadMaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := h.base.tr(r, "upload.no_file")
		if errors.As(err, &tooLarge) {
			msg = h.base.tr(r, "upload.too_large", maxBytes)
		}
		h.logger.Info("Файл каталога не принят", slog.String("error", err.Error()))
		setFlash(w, flashError, msg)
		http.Redirect(w, r, rbac.PathUpload, http.StatusSeeOther)
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		setFlash(w, flashError, h.base.tr(r, "upload.too_large", maxBytes))
		http.Redirect(w, r, rbac.PathUpload, http.StatusSeeOther)
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		setFlash(w, flashError, h.base.tr(r, "upload.not_csv"))
		http.Redirect(w, r, rbac.PathUpload, http.StatusSeeOther)
		return
	}

	if _, err := h.tracker(r).Submit(r.Context(), filepath.Base(header.Filename), file); err != nil {
		if errors.Is(err, service.ErrUploadInProgress) {
			setFlash(w, flashInfo, h.base.tr(r, "upload.in_progress"))
			http.Redirect(w, r, rbac.PathUpload, http.StatusSeeOther)
			return
		}
		h.base.fail(w, r, err, rbac.PathUpload)
		return
	}
	h.base.success(w, r, rbac.PathUpload, "upload.accepted")
}

// Dismiss — POST /books/upload/dismiss: индикатор закрыт, задача забыта.
// Сама задача на сервере продолжает выполняться.
func (h *UploadHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.tracker(r).Dismiss()
	http.Redirect(w, r, rbac.PathUpload, http.StatusSeeOther)
}

// progressEvent — данные события SSE.
type progressEvent struct {
	TaskID    string  `json:"task_id,omitempty"`
	State     string  `json:"state"`
	Reason    string  `json:"reason,omitempty"`
	Status    string  `json:"status,omitempty"`
	Percent   float64 `json:"percent"`
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
	Total     int     `json:"total"`
}

func newProgressEvent(p service.Progress) progressEvent {
	return progressEvent{
		TaskID:    p.Task.ID,
		State:     string(p.State),
		Reason:    string(p.Reason),
		Status:    string(p.Task.Status),
		Percent:   p.Task.Percent(),
		Processed: p.Task.Processed.Int(),
		Failed:    p.Task.Failed.Int(),
		Total:     p.Task.Total.Int(),
	}
}

// Events — GET /books/upload/events: поток прогресса задачи пользователя.
// Поток завершается терминальным событием или закрытием страницы
// (отмена контекста запроса останавливает опрос, id задачи сохраняется).
func (h *UploadHandler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	// Поток живёт дольше WriteTimeout сервера
	_ = rc.SetWriteDeadline(time.Time{})
	w.WriteHeader(http.StatusOK)

	send := func(ev progressEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
			return
		}
		_ = rc.Flush()
	}

	tracker := h.tracker(r)
	taskID, ok := tracker.Resume()
	if !ok {
		send(progressEvent{State: string(uploadstate.Idle)})
		return
	}
	send(progressEvent{TaskID: taskID, State: string(uploadstate.Tracking)})

	_, err := tracker.Track(r.Context(), taskID, func(p service.Progress) {
		send(newProgressEvent(p))
	})
	switch {
	case err == nil:
	case r.Context().Err() != nil:
		h.logger.Debug("Клиент закрыл поток прогресса", slog.String("task_id", taskID))
	default:
		h.logger.Warn("Отслеживание загрузки завершилось ошибкой",
			slog.String("task_id", taskID),
			slog.String("reason", string(tracker.Reason())),
			slog.String("error", err.Error()),
		)
	}
}
