package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/uploadstate"
)

// memTasks — TaskStore в памяти.
type memTasks struct {
	mu sync.Mutex
	id string
}

func (m *memTasks) TaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *memTasks) SetTaskID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
}

func (m *memTasks) ClearTaskID() { m.SetTaskID("") }

// fakeUploads отдаёт заранее заданную последовательность ответов прогресса;
// последний ответ повторяется.
type fakeUploads struct {
	mu        sync.Mutex
	submitErr error
	submitted string
	responses []progressResponse
	polls     int
}

type progressResponse struct {
	task model.UploadTask
	err  error
}

func (f *fakeUploads) UploadBooks(_ context.Context, filename string, csv io.Reader) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	body, _ := io.ReadAll(csv)
	f.submitted = filename + ":" + string(body)
	return "task-1", nil
}

func (f *fakeUploads) UploadProgress(_ context.Context, _ string) (*model.UploadTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.polls, len(f.responses)-1)
	f.polls++
	r := f.responses[i]
	if r.err != nil {
		return nil, r.err
	}
	task := r.task
	return &task, nil
}

func (f *fakeUploads) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func running(progress, processed float64) progressResponse {
	return progressResponse{task: model.UploadTask{
		Status:    model.UploadRunning,
		Progress:  model.Number(progress),
		Processed: model.Number(processed),
		Total:     3,
	}}
}

func fastOptions() TrackerOptions {
	return TrackerOptions{Interval: 5 * time.Millisecond, MaxDuration: 5 * time.Second}
}

func TestSubmit_PersistsTaskID(t *testing.T) {
	api := &fakeUploads{}
	tasks := &memTasks{}
	tr := NewUploadTracker(api, tasks, fastOptions(), testLogger())

	id, err := tr.Submit(context.Background(), "books.csv", strings.NewReader("title,author\n"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "task-1" || tasks.TaskID() != "task-1" {
		t.Errorf("id=%q, сохранено %q", id, tasks.TaskID())
	}
	if tr.State() != uploadstate.Tracking {
		t.Errorf("состояние %q, ожидалось tracking", tr.State())
	}
	if api.submitted != "books.csv:title,author\n" {
		t.Errorf("отправлено %q", api.submitted)
	}
	if resumed, ok := tr.Resume(); !ok || resumed != "task-1" {
		t.Errorf("Resume() = %q, %v", resumed, ok)
	}
}

func TestSubmit_FailureReturnsToIdle(t *testing.T) {
	api := &fakeUploads{submitErr: &apiclient.APIError{Status: 400, Message: "No file uploaded"}}
	tasks := &memTasks{}
	tr := NewUploadTracker(api, tasks, fastOptions(), testLogger())

	_, err := tr.Submit(context.Background(), "books.csv", strings.NewReader(""))
	if apiclient.Message(err) != "No file uploaded" {
		t.Errorf("ожидалось сообщение сервера, получено %v", err)
	}
	if tr.State() != uploadstate.Idle || tasks.TaskID() != "" {
		t.Errorf("состояние %q, task id %q", tr.State(), tasks.TaskID())
	}
}

func TestSubmit_RejectsWhileTaskTracked(t *testing.T) {
	tasks := &memTasks{id: "task-0"}
	tr := NewUploadTracker(&fakeUploads{}, tasks, fastOptions(), testLogger())

	if _, err := tr.Submit(context.Background(), "books.csv", strings.NewReader("")); !errors.Is(err, ErrUploadInProgress) {
		t.Errorf("ожидалась ErrUploadInProgress, получено %v", err)
	}

	tr.Dismiss()
	if _, err := tr.Submit(context.Background(), "books.csv", strings.NewReader("")); err != nil {
		t.Errorf("после Dismiss Submit должен пройти: %v", err)
	}
}

func TestTrack_CompletesThreeRowScenario(t *testing.T) {
	api := &fakeUploads{responses: []progressResponse{
		running(33, 1),
		running(66, 2),
		{task: model.UploadTask{Status: model.UploadCompleted, Progress: 100, Processed: 2, Failed: 1, Total: 3}},
	}}
	tasks := &memTasks{}

	var refetched model.UploadTask
	opts := fastOptions()
	opts.OnComplete = func(_ context.Context, task model.UploadTask) { refetched = task }
	tr := NewUploadTracker(api, tasks, opts, testLogger())

	if _, err := tr.Submit(context.Background(), "books.csv", strings.NewReader("x")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var states []uploadstate.State
	task, err := tr.Track(context.Background(), "task-1", func(p Progress) { states = append(states, p.State) })
	if err != nil {
		t.Fatalf("Track: %v", err)
	}

	if task.Processed.Int() != 2 || task.Failed.Int() != 1 || task.Total.Int() != 3 || task.Status != model.UploadCompleted {
		t.Errorf("итог %+v", task)
	}
	if refetched.ID != "task-1" {
		t.Error("OnComplete должен получить завершённую задачу")
	}
	if tasks.TaskID() != "" {
		t.Error("id задачи должен быть удалён после завершения")
	}
	if tr.State() != uploadstate.Completed {
		t.Errorf("состояние %q, ожидалось completed", tr.State())
	}
	want := []uploadstate.State{uploadstate.Tracking, uploadstate.Tracking, uploadstate.Completed}
	if len(states) != len(want) || states[2] != uploadstate.Completed {
		t.Errorf("emit: %v, ожидалось %v", states, want)
	}
	if api.pollCount() != 3 {
		t.Errorf("опросов %d, ожидалось 3", api.pollCount())
	}
}

func TestTrack_CompletedStopsPolling(t *testing.T) {
	api := &fakeUploads{responses: []progressResponse{
		{task: model.UploadTask{Status: model.UploadCompleted, Progress: 100}},
	}}
	tasks := &memTasks{id: "task-1"}
	tr := NewUploadTracker(api, tasks, fastOptions(), testLogger())

	if _, err := tr.Track(context.Background(), "task-1", nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if api.pollCount() != 1 {
		t.Errorf("после completed опросов %d, ожидался 1", api.pollCount())
	}
	if tasks.TaskID() != "" {
		t.Error("id задачи должен быть удалён")
	}
}

func TestTrack_Failures(t *testing.T) {
	tests := []struct {
		name       string
		responses  []progressResponse
		maxAttempt int
		wantErr    error
		wantReason uploadstate.Reason
	}{
		{
			name:       "превышено число опросов",
			responses:  []progressResponse{running(10, 0)},
			maxAttempt: 4,
			wantErr:    ErrUploadTimedOut,
			wantReason: uploadstate.ReasonTimedOut,
		},
		{
			name:       "сервер сообщил failed",
			responses:  []progressResponse{running(10, 0), {task: model.UploadTask{Status: model.UploadFailed}}},
			wantErr:    ErrUploadServerFailed,
			wantReason: uploadstate.ReasonServerFailed,
		},
		{
			name:       "ошибки опроса подряд",
			responses:  []progressResponse{{err: &apiclient.APIError{Status: 502, Message: "bad gateway"}}},
			wantErr:    ErrUploadPollFailed,
			wantReason: uploadstate.ReasonPollFailed,
		},
		{
			name:       "задача не найдена",
			responses:  []progressResponse{{err: &apiclient.APIError{Status: 404, Message: "Task not found"}}},
			wantErr:    ErrUploadPollFailed,
			wantReason: uploadstate.ReasonPollFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeUploads{responses: tt.responses}
			tasks := &memTasks{id: "task-1"}
			opts := fastOptions()
			opts.MaxAttempts = tt.maxAttempt
			tr := NewUploadTracker(api, tasks, opts, testLogger())

			var last Progress
			_, err := tr.Track(context.Background(), "task-1", func(p Progress) { last = p })
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ожидалась %v, получено %v", tt.wantErr, err)
			}
			if tr.State() != uploadstate.Failed || tr.Reason() != tt.wantReason {
				t.Errorf("состояние %q (%q), ожидалось failed (%q)", tr.State(), tr.Reason(), tt.wantReason)
			}
			if last.State != uploadstate.Failed || last.Reason != tt.wantReason {
				t.Errorf("последний emit %+v", last)
			}
			if tasks.TaskID() != "" {
				t.Error("id задачи должен быть удалён после ошибки")
			}
		})
	}
}

func TestTrack_MaxDuration(t *testing.T) {
	api := &fakeUploads{responses: []progressResponse{running(10, 0)}}
	tasks := &memTasks{id: "task-1"}
	tr := NewUploadTracker(api, tasks, TrackerOptions{Interval: 5 * time.Millisecond, MaxDuration: 40 * time.Millisecond}, testLogger())

	if _, err := tr.Track(context.Background(), "task-1", nil); !errors.Is(err, ErrUploadTimedOut) {
		t.Fatalf("ожидалась ErrUploadTimedOut, получено %v", err)
	}
	if tr.Reason() != uploadstate.ReasonTimedOut {
		t.Errorf("причина %q", tr.Reason())
	}
}

func TestTrack_CancelKeepsTaskID(t *testing.T) {
	api := &fakeUploads{responses: []progressResponse{running(10, 0)}}
	tasks := &memTasks{id: "task-1"}
	tr := NewUploadTracker(api, tasks, fastOptions(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tr.Track(ctx, "task-1", nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ожидалась context.Canceled, получено %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Track не остановился после отмены контекста")
	}

	polls := api.pollCount()
	time.Sleep(20 * time.Millisecond)
	if api.pollCount() != polls {
		t.Error("после отмены опрос продолжается")
	}
	if tasks.TaskID() != "task-1" {
		t.Error("при отмене id задачи сохраняется для продолжения")
	}
}

func TestTaskRegistry_PerUser(t *testing.T) {
	reg := NewTaskRegistry(10, time.Minute)
	ann, bob := reg.For("ann"), reg.For("bob")

	ann.SetTaskID("t-ann")
	if bob.TaskID() != "" {
		t.Error("задачи пользователей не должны пересекаться")
	}
	if reg.For("ann").TaskID() != "t-ann" {
		t.Error("задача должна находиться по пользователю")
	}
	ann.ClearTaskID()
	if ann.TaskID() != "" || reg.Len() != 0 {
		t.Error("ClearTaskID должен удалять запись")
	}
}

func TestTaskRegistry_Expires(t *testing.T) {
	reg := NewTaskRegistry(10, 20*time.Millisecond)
	reg.For("ann").SetTaskID("t-ann")
	time.Sleep(60 * time.Millisecond)
	if reg.For("ann").TaskID() != "" {
		t.Error("запись должна истечь")
	}
}
