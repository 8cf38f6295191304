// Пакет uploadstate — конечный автомат массовой загрузки каталога.
//
// Жизненный цикл:
//
//	idle → uploading → tracking → completed
//	           │           └────→ failed (timed_out, poll_failed, server_failed)
//	           └→ idle (ошибка отправки файла)
//
// Из completed и failed возможен только сброс в idle.
// Потокобезопасен через sync.RWMutex.
package uploadstate

import (
	"fmt"
	"sync"
	"time"
)

// State — состояние загрузки.
type State string

const (
	// Idle — файл ещё не отправлен
	Idle State = "idle"
	// Uploading — multipart-запрос в процессе
	Uploading State = "uploading"
	// Tracking — сервер принял файл, идёт опрос прогресса
	Tracking State = "tracking"
	// Completed — сервер сообщил status=completed
	Completed State = "completed"
	// Failed — задача не завершилась успешно
	Failed State = "failed"
)

// Reason — причина перехода в Failed.
type Reason string

const (
	ReasonNone Reason = ""
	// ReasonTimedOut — превышено время или число опросов
	ReasonTimedOut Reason = "timed_out"
	// ReasonPollFailed — опрос прогресса вернул ошибку
	ReasonPollFailed Reason = "poll_failed"
	// ReasonServerFailed — сервер сообщил status=failed
	ReasonServerFailed Reason = "server_failed"
)

// TransitionRecord — запись о переходе.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Reason    Reason    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// validTransitions — матрица допустимых переходов.
var validTransitions = map[State]map[State]bool{
	Idle:      {Uploading: true},
	Uploading: {Tracking: true, Idle: true},
	Tracking:  {Completed: true, Failed: true},
	Completed: {Idle: true},
	Failed:    {Idle: true},
}

// Machine — автомат одной загрузки.
type Machine struct {
	mu      sync.RWMutex
	current State
	reason  Reason
	history []TransitionRecord
}

// New создаёт автомат в состоянии Idle.
func New() *Machine {
	return &Machine{current: Idle}
}

// Resume создаёт автомат сразу в состоянии Tracking — для продолжения
// опроса задачи, id которой сохранён до перезагрузки страницы.
func Resume() *Machine {
	return &Machine{current: Tracking}
}

// Current возвращает текущее состояние.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason возвращает причину ошибки (для Failed) или ReasonNone.
func (m *Machine) Reason() Reason {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// TransitionTo выполняет переход. Причина учитывается только для Failed.
func (m *Machine) TransitionTo(target State, reason Reason) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !validTransitions[m.current][target] {
		return &TransitionError{From: m.current, To: target}
	}

	if target == Failed {
		m.reason = reason
	} else {
		m.reason = ReasonNone
	}

	m.history = append(m.history, TransitionRecord{
		From:      m.current,
		To:        target,
		Reason:    m.reason,
		Timestamp: time.Now().UTC(),
	})
	m.current = target
	return nil
}

// Terminal сообщает, что загрузка завершилась (успешно или нет).
func (m *Machine) Terminal() bool {
	s := m.Current()
	return s == Completed || s == Failed
}

// History возвращает копию истории переходов.
func (m *Machine) History() []TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]TransitionRecord, len(m.history))
	copy(result, m.history)
	return result
}

// TransitionError — недопустимый переход.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("INVALID_TRANSITION: переход %s → %s недопустим", e.From, e.To)
}
