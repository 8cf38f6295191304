// Пакет config — загрузка и валидация конфигурации веб-интерфейса библиотеки
// из переменных окружения (и, при наличии, из .env-файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации веб-интерфейса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Library API ---

	// Базовый URL REST API библиотеки (например, http://localhost:8000/api)
	APIURL string
	// Таймаут одного запроса к API
	APITimeout time.Duration
	// Путь к CA-сертификату для https API (опционально)
	APICACertPath string
	// Путь, который проверяет мониторинг зависимостей
	APIHealthPath string

	// --- Сессия ---

	// Секрет для шифрования session cookie
	SessionSecret string
	// Флаг Secure для cookie
	CookieSecure bool
	// Время жизни session cookie
	SessionTTL time.Duration

	// --- Пагинация ---

	// Размер страницы записей о выдаче
	BorrowPageSize int
	// Размер страницы каталога (cursor)
	BookPageSize int
	// Размер страницы экземпляров
	CopyPageSize int

	// --- Массовая загрузка ---

	// Период опроса прогресса загрузки
	UploadPollInterval time.Duration
	// Максимальная длительность отслеживания задачи
	UploadMaxDuration time.Duration
	// Максимальное число опросов (0 — вычисляется из длительности)
	UploadMaxAttempts int
	// Максимальный размер CSV-файла
	UploadMaxBytes int64
	// Время жизни запомненного task id
	TaskTTL time.Duration

	// --- Кэш профилей ---

	// Размер LRU-кэша профилей
	ProfileCacheSize int
	// TTL записи кэша профилей
	ProfileCacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// Группа в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// LoadDotEnv подгружает переменные из .env-файла (LM_ENV_FILE, по умолчанию .env).
// Отсутствие файла не считается ошибкой. Уже заданные переменные окружения
// не перезаписываются.
func LoadDotEnv() error {
	path := getEnvDefault("LM_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("загрузка %s: %w", path, err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("LM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("LM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Library API ---

	// LM_API_URL — обязательный
	cfg.APIURL, err = getEnvRequired("LM_API_URL")
	if err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return nil, fmt.Errorf("LM_API_URL: ожидается http:// или https://, получено %q", cfg.APIURL)
	}

	cfg.APITimeout, err = getEnvDuration("LM_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_API_TIMEOUT: %w", err)
	}

	cfg.APICACertPath = getEnvDefault("LM_API_CA_CERT", "")
	cfg.APIHealthPath = getEnvDefault("LM_API_HEALTH_PATH", "/books/")

	// --- Сессия ---

	// LM_SESSION_SECRET — обязательный
	cfg.SessionSecret, err = getEnvRequired("LM_SESSION_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.CookieSecure, err = getEnvBool("LM_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("LM_COOKIE_SECURE: %w", err)
	}

	cfg.SessionTTL, err = getEnvDuration("LM_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LM_SESSION_TTL: %w", err)
	}

	// --- Пагинация ---

	// Размер страницы выдач по умолчанию 5, как в исходном интерфейсе библиотеки
	if cfg.BorrowPageSize, err = getEnvPageSize("LM_BORROW_PAGE_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.BookPageSize, err = getEnvPageSize("LM_BOOK_PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.CopyPageSize, err = getEnvPageSize("LM_COPY_PAGE_SIZE", 10); err != nil {
		return nil, err
	}

	// --- Массовая загрузка ---

	cfg.UploadPollInterval, err = getEnvDuration("LM_UPLOAD_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_UPLOAD_POLL_INTERVAL: %w", err)
	}
	if cfg.UploadPollInterval <= 0 {
		return nil, fmt.Errorf("LM_UPLOAD_POLL_INTERVAL: должен быть больше нуля")
	}

	cfg.UploadMaxDuration, err = getEnvDuration("LM_UPLOAD_MAX_DURATION", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LM_UPLOAD_MAX_DURATION: %w", err)
	}
	if cfg.UploadMaxDuration < cfg.UploadPollInterval {
		return nil, fmt.Errorf("LM_UPLOAD_MAX_DURATION: %s меньше периода опроса %s",
			cfg.UploadMaxDuration, cfg.UploadPollInterval)
	}

	cfg.UploadMaxAttempts, err = getEnvInt("LM_UPLOAD_MAX_ATTEMPTS", 0)
	if err != nil {
		return nil, fmt.Errorf("LM_UPLOAD_MAX_ATTEMPTS: %w", err)
	}
	if cfg.UploadMaxAttempts < 0 {
		return nil, fmt.Errorf("LM_UPLOAD_MAX_ATTEMPTS: отрицательное значение %d", cfg.UploadMaxAttempts)
	}

	maxBytes, err := getEnvInt("LM_UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("LM_UPLOAD_MAX_BYTES: %w", err)
	}
	cfg.UploadMaxBytes = int64(maxBytes)

	cfg.TaskTTL, err = getEnvDuration("LM_TASK_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LM_TASK_TTL: %w", err)
	}

	// --- Кэш профилей ---

	cfg.ProfileCacheSize, err = getEnvInt("LM_PROFILE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("LM_PROFILE_CACHE_SIZE: %w", err)
	}
	if cfg.ProfileCacheSize < 1 {
		return nil, fmt.Errorf("LM_PROFILE_CACHE_SIZE: значение %d должно быть положительным", cfg.ProfileCacheSize)
	}

	cfg.ProfileCacheTTL, err = getEnvDuration("LM_PROFILE_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LM_PROFILE_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("LM_DEPHEALTH_GROUP", "library")
	cfg.DephealthCheckInterval, err = getEnvDuration("LM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("LM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// MaxUploadPolls возвращает предельное число опросов прогресса загрузки.
func (c *Config) MaxUploadPolls() int {
	if c.UploadMaxAttempts > 0 {
		return c.UploadMaxAttempts
	}
	return int(c.UploadMaxDuration / c.UploadPollInterval)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	return NewLogger(cfg.LogLevel, cfg.LogFormat)
}

// NewLogger создаёт slog-логгер с указанным уровнем и форматом и делает его
// логгером по умолчанию.
func NewLogger(level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvPageSize читает размер страницы и проверяет диапазон 1-100.
func getEnvPageSize(key string, defaultVal int) (int, error) {
	n, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 1 || n > 100 {
		return 0, fmt.Errorf("%s: значение %d вне допустимого диапазона 1-100", key, n)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// ParseLogLevel — экспортируемая обёртка для CLI-флага --log-level.
func ParseLogLevel(level string) (slog.Level, error) {
	return parseLogLevel(level)
}
