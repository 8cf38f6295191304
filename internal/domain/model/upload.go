package model

import "time"

// UploadStatus — статус задачи массовой загрузки, как его сообщает сервер.
type UploadStatus string

const (
	UploadStarted    UploadStatus = "started"
	UploadProcessing UploadStatus = "processing"
	// UploadRunning — синоним processing, который использует воркер загрузки
	UploadRunning   UploadStatus = "running"
	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
)

// Terminal сообщает, что задача больше не изменится.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// UploadTask — прогресс задачи загрузки CSV.
type UploadTask struct {
	ID        string       `json:"task_id"`
	Status    UploadStatus `json:"status"`
	Progress  Number       `json:"progress"`
	Processed Number       `json:"processed"`
	Failed    Number       `json:"failed"`
	Total     Number       `json:"total"`
	Duration  Number       `json:"duration"`
}

// Percent возвращает прогресс в диапазоне 0-100.
func (t UploadTask) Percent() float64 {
	p := t.Progress.Float()
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Elapsed возвращает длительность обработки, если сервер её сообщил.
func (t UploadTask) Elapsed() time.Duration {
	return time.Duration(t.Duration.Float() * float64(time.Second))
}
