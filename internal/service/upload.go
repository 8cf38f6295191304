// upload.go — массовая загрузка каталога из CSV и отслеживание прогресса.
//
// UploadTracker отправляет файл, сохраняет id задачи в TaskStore и опрашивает
// прогресс с фиксированным периодом до одного из исходов:
//   - status=completed — id задачи удаляется, вызывается OnComplete;
//   - status=failed — failed(server_failed);
//   - превышено время или число опросов — failed(timed_out);
//   - ошибки опроса подряд — failed(poll_failed);
//   - отмена контекста — ticker останавливается, id задачи сохраняется для Resume.
//
// Prometheus-метрики:
//   - lm_upload_outcomes_total — исходы загрузок (по outcome)
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/uploadstate"
)

var uploadOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lm_upload_outcomes_total",
	Help: "Исходы массовой загрузки каталога",
}, []string{"outcome"}) // outcome: submitted, submit_failed, completed, server_failed, timed_out, poll_failed

var (
	// ErrUploadTimedOut — задача не завершилась за отведённое время.
	ErrUploadTimedOut = errors.New("загрузка не завершилась за отведённое время")
	// ErrUploadServerFailed — сервер сообщил status=failed.
	ErrUploadServerFailed = errors.New("сервер сообщил об ошибке загрузки")
	// ErrUploadPollFailed — прогресс не удалось получить.
	ErrUploadPollFailed = errors.New("не удалось получить прогресс загрузки")
)

// maxPollErrors — число ошибок опроса подряд, после которого загрузка считается неудачной.
const maxPollErrors = 3

// UploadAPI — операции REST API массовой загрузки.
type UploadAPI interface {
	UploadBooks(ctx context.Context, filename string, csv io.Reader) (string, error)
	UploadProgress(ctx context.Context, taskID string) (*model.UploadTask, error)
}

// TaskStore — долговременное хранение id отслеживаемой задачи.
type TaskStore interface {
	TaskID() string
	SetTaskID(id string)
	ClearTaskID()
}

// Progress — очередное состояние загрузки для отображения.
type Progress struct {
	Task   model.UploadTask
	State  uploadstate.State
	Reason uploadstate.Reason
}

// TrackerOptions — параметры опроса.
type TrackerOptions struct {
	// Interval — период опроса
	Interval time.Duration
	// MaxDuration — предельная длительность отслеживания
	MaxDuration time.Duration
	// MaxAttempts — предельное число опросов (0 — без ограничения по числу)
	MaxAttempts int
	// OnComplete вызывается после status=completed (перечитать каталог)
	OnComplete func(ctx context.Context, task model.UploadTask)
}

// UploadTracker — загрузка одного файла и отслеживание её задачи.
type UploadTracker struct {
	api     UploadAPI
	tasks   TaskStore
	opts    TrackerOptions
	machine *uploadstate.Machine
	logger  *slog.Logger
}

// NewUploadTracker создаёт трекер в состоянии idle.
func NewUploadTracker(api UploadAPI, tasks TaskStore, opts TrackerOptions, logger *slog.Logger) *UploadTracker {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Minute
	}
	return &UploadTracker{
		api:     api,
		tasks:   tasks,
		opts:    opts,
		machine: uploadstate.New(),
		logger:  logger.With(slog.String("component", "upload_tracker")),
	}
}

// State возвращает текущее состояние автомата.
func (t *UploadTracker) State() uploadstate.State {
	return t.machine.Current()
}

// Reason возвращает причину failed.
func (t *UploadTracker) Reason() uploadstate.Reason {
	return t.machine.Reason()
}

// Resume возвращает id задачи, сохранённый до перезагрузки страницы.
func (t *UploadTracker) Resume() (string, bool) {
	id := t.tasks.TaskID()
	return id, id != ""
}

// Dismiss забывает сохранённую задачу (пользователь закрыл индикатор).
func (t *UploadTracker) Dismiss() {
	t.tasks.ClearTaskID()
}

// Submit отправляет CSV-файл. При успехе автомат переходит в tracking,
// id задачи сохраняется; при ошибке автомат возвращается в idle.
func (t *UploadTracker) Submit(ctx context.Context, filename string, csv io.Reader) (string, error) {
	if id, ok := t.Resume(); ok {
		return "", fmt.Errorf("%w: задача %s", ErrUploadInProgress, id)
	}
	if t.machine.Terminal() {
		if err := t.machine.TransitionTo(uploadstate.Idle, uploadstate.ReasonNone); err != nil {
			return "", err
		}
	}
	if err := t.machine.TransitionTo(uploadstate.Uploading, uploadstate.ReasonNone); err != nil {
		return "", err
	}

	taskID, err := t.api.UploadBooks(ctx, filename, csv)
	if err != nil {
		uploadOutcomes.WithLabelValues("submit_failed").Inc()
		_ = t.machine.TransitionTo(uploadstate.Idle, uploadstate.ReasonNone)
		return "", fmt.Errorf("отправка файла %s: %w", filename, err)
	}

	t.tasks.SetTaskID(taskID)
	if err := t.machine.TransitionTo(uploadstate.Tracking, uploadstate.ReasonNone); err != nil {
		return "", err
	}
	uploadOutcomes.WithLabelValues("submitted").Inc()
	t.logger.Info("Файл каталога принят сервером",
		slog.String("task_id", taskID),
		slog.String("filename", filename),
	)
	return taskID, nil
}

// Track опрашивает прогресс задачи до терминального статуса, истечения
// лимитов или отмены ctx. Каждый успешный опрос передаётся в emit.
// Отмена ctx останавливает опрос и возвращает ctx.Err(), id задачи сохраняется.
func (t *UploadTracker) Track(ctx context.Context, taskID string, emit func(Progress)) (*model.UploadTask, error) {
	if t.machine.Current() != uploadstate.Tracking {
		t.machine = uploadstate.Resume()
	}
	if emit == nil {
		emit = func(Progress) {}
	}

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(t.opts.MaxDuration)
	defer deadline.Stop()

	var (
		attempts   int
		pollErrors int
		last       model.UploadTask
	)
	last.ID = taskID

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Отслеживание загрузки прервано",
				slog.String("task_id", taskID),
				slog.Int("attempts", attempts),
			)
			return nil, ctx.Err()

		case <-deadline.C:
			return t.fail(last, uploadstate.ReasonTimedOut, ErrUploadTimedOut, emit)

		case <-ticker.C:
			attempts++
			task, err := t.api.UploadProgress(ctx, taskID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				pollErrors++
				t.logger.Warn("Ошибка опроса прогресса загрузки",
					slog.String("task_id", taskID),
					slog.Int("consecutive", pollErrors),
					slog.String("error", err.Error()),
				)
				if errors.Is(err, apiclient.ErrSessionExpired) || apiclient.IsNotFound(err) || pollErrors >= maxPollErrors {
					return t.fail(last, uploadstate.ReasonPollFailed, fmt.Errorf("%w: %w", ErrUploadPollFailed, err), emit)
				}
			} else {
				pollErrors = 0
				if task.ID == "" {
					task.ID = taskID
				}
				last = *task

				switch task.Status {
				case model.UploadCompleted:
					return t.complete(ctx, last, emit)
				case model.UploadFailed:
					return t.fail(last, uploadstate.ReasonServerFailed, ErrUploadServerFailed, emit)
				}
				emit(Progress{Task: last, State: uploadstate.Tracking})
			}

			if t.opts.MaxAttempts > 0 && attempts >= t.opts.MaxAttempts {
				return t.fail(last, uploadstate.ReasonTimedOut, ErrUploadTimedOut, emit)
			}
		}
	}
}

func (t *UploadTracker) complete(ctx context.Context, task model.UploadTask, emit func(Progress)) (*model.UploadTask, error) {
	if err := t.machine.TransitionTo(uploadstate.Completed, uploadstate.ReasonNone); err != nil {
		return nil, err
	}
	t.tasks.ClearTaskID()
	uploadOutcomes.WithLabelValues("completed").Inc()

	t.logger.Info("Загрузка каталога завершена",
		slog.String("task_id", task.ID),
		slog.Int("processed", task.Processed.Int()),
		slog.Int("failed", task.Failed.Int()),
		slog.Int("total", task.Total.Int()),
	)

	if t.opts.OnComplete != nil {
		t.opts.OnComplete(ctx, task)
	}
	emit(Progress{Task: task, State: uploadstate.Completed})
	return &task, nil
}

func (t *UploadTracker) fail(task model.UploadTask, reason uploadstate.Reason, cause error, emit func(Progress)) (*model.UploadTask, error) {
	if err := t.machine.TransitionTo(uploadstate.Failed, reason); err != nil {
		return nil, err
	}
	t.tasks.ClearTaskID()
	uploadOutcomes.WithLabelValues(string(reason)).Inc()

	t.logger.Warn("Загрузка каталога не завершилась",
		slog.String("task_id", task.ID),
		slog.String("reason", string(reason)),
	)

	emit(Progress{Task: task, State: uploadstate.Failed, Reason: reason})
	return &task, cause
}

// TaskRegistry — id задач загрузки веб-интерфейса по пользователям.
// SSE-поток не может переписать cookie после начала ответа, поэтому id задачи
// хранится на сервере с ограниченным временем жизни.
type TaskRegistry struct {
	tasks *expirable.LRU[string, string]
}

// NewTaskRegistry создаёт реестр на maxSize пользователей с временем жизни ttl.
func NewTaskRegistry(maxSize int, ttl time.Duration) *TaskRegistry {
	return &TaskRegistry{tasks: expirable.NewLRU[string, string](maxSize, nil, ttl)}
}

// For возвращает TaskStore одного пользователя.
func (r *TaskRegistry) For(userID string) TaskStore {
	return userTask{reg: r, userID: userID}
}

// Len возвращает число отслеживаемых задач.
func (r *TaskRegistry) Len() int {
	return r.tasks.Len()
}

type userTask struct {
	reg    *TaskRegistry
	userID string
}

func (u userTask) TaskID() string {
	id, _ := u.reg.tasks.Get(u.userID)
	return id
}

func (u userTask) SetTaskID(id string) {
	u.reg.tasks.Add(u.userID, id)
}

func (u userTask) ClearTaskID() {
	u.reg.tasks.Remove(u.userID)
}
