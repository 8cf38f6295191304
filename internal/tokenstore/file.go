// Пакет tokenstore — долговременное хранение токенов и id задачи загрузки
// для CLI. Данные лежат в JSON-файле с правами 0600; запись атомарна
// (временный файл + rename).
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// state — содержимое файла.
type state struct {
	APIURL       string `json:"api_url,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UploadTaskID string `json:"upload_task_id,omitempty"`
}

// File — TokenStore и хранилище task id поверх одного файла.
type File struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	state   state
	lastErr error
}

// DefaultPath возвращает путь к файлу учётных данных в каталоге конфигурации пользователя.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("каталог конфигурации: %w", err)
	}
	return filepath.Join(dir, "libraryctl", "credentials.json"), nil
}

// Open читает файл (отсутствующий файл — пустое хранилище).
func Open(path string, logger *slog.Logger) (*File, error) {
	f := &File{
		path:   path,
		logger: logger.With(slog.String("component", "token_store")),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &f.state); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	return f, nil
}

// Path возвращает путь к файлу.
func (f *File) Path() string {
	return f.path
}

// Err возвращает последнюю ошибку записи файла.
func (f *File) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// APIURL возвращает URL API, с которым выполнен вход.
func (f *File) APIURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.APIURL
}

// SetAPIURL запоминает URL API.
func (f *File) SetAPIURL(u string) {
	f.update(func(s *state) { s.APIURL = u })
}

func (f *File) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.AccessToken
}

func (f *File) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.RefreshToken
}

func (f *File) SetTokens(access, refresh string) {
	f.update(func(s *state) { s.AccessToken, s.RefreshToken = access, refresh })
}

func (f *File) SetAccessToken(access string) {
	f.update(func(s *state) { s.AccessToken = access })
}

// Clear удаляет токены и id задачи загрузки.
func (f *File) Clear() {
	f.update(func(s *state) {
		s.AccessToken, s.RefreshToken, s.UploadTaskID = "", "", ""
	})
}

// TaskID возвращает сохранённый id задачи массовой загрузки.
func (f *File) TaskID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.UploadTaskID
}

func (f *File) SetTaskID(id string) {
	f.update(func(s *state) { s.UploadTaskID = id })
}

func (f *File) ClearTaskID() {
	f.update(func(s *state) { s.UploadTaskID = "" })
}

// update меняет состояние и сохраняет файл. Ошибка записи не теряет
// состояние в памяти, а запоминается для Err().
func (f *File) update(fn func(*state)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fn(&f.state)
	if err := f.write(); err != nil {
		f.lastErr = err
		f.logger.Error("Не удалось сохранить учётные данные",
			slog.String("path", f.path),
			slog.String("error", err.Error()),
		)
		return
	}
	f.lastErr = nil
}

func (f *File) write() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("создание каталога: %w", err)
	}

	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
