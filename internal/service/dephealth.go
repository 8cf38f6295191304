// dephealth.go — мониторинг REST API библиотеки через topologymetrics SDK.
//
// Веб-интерфейс зависит от одного сервиса — REST API библиотеки (critical).
// Проверка — HTTP GET на LM_API_HEALTH_PATH относительно LM_API_URL.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для REST API
	"github.com/prometheus/client_golang/prometheus"
)

// dependencyName — имя зависимости в метриках.
const dependencyName = "library-api"

// DephealthService — мониторинг доступности REST API.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга. Метрики регистрируются
// в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения ("library-ui")
//   - group — имя группы в метриках (LM_DEPHEALTH_GROUP)
//   - apiURL — базовый URL REST API (LM_API_URL)
//   - healthPath — путь проверки относительно apiURL (LM_API_HEALTH_PATH)
//   - checkInterval — интервал проверки (LM_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID, group, apiURL, healthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, apiURL, healthPath, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID, group, apiURL, healthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, apiURL, healthPath, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID, group, apiURL, healthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	probePath, err := HealthProbePath(apiURL, healthPath)
	if err != nil {
		return nil, err
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.HTTP(dependencyName,
			dephealth.FromURL(apiURL),
			dephealth.WithHTTPHealthPath(probePath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// HealthProbePath строит путь проверки: путь базового URL API
// плюс healthPath ("/api" + "/books/" → "/api/books/").
func HealthProbePath(apiURL, healthPath string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("некорректный URL API %q", apiURL)
	}
	if healthPath == "" {
		healthPath = "/"
	}
	joined := path.Join("/", u.Path, healthPath)
	// path.Join убирает завершающий слеш, а API ждёт его
	if strings.HasSuffix(healthPath, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined, nil
}

// Start запускает периодическую проверку.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг REST API запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг REST API остановлен")
}

// Health возвращает состояние зависимостей: имя → true, если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
