// Точка входа library-ui — веб-интерфейс библиотеки.
// Загружает конфигурацию, создаёт клиент REST API, сессии и шаблоны страниц,
// запускает мониторинг зависимостей (topologymetrics) и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/swanith1234/LibraryManagementSystem/internal/api/handlers"
	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/config"
	"github.com/swanith1234/LibraryManagementSystem/internal/identity"
	"github.com/swanith1234/LibraryManagementSystem/internal/server"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/auth"
	uihandlers "github.com/swanith1234/LibraryManagementSystem/internal/ui/handlers"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/i18n"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

func main() {
	// 1. Загрузка конфигурации (.env, затем переменные окружения)
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("Ошибка чтения .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("library-ui запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("api_url", cfg.APIURL),
	)

	if os.Getenv("LM_DEPHEALTH_GROUP") == "" {
		logger.Warn("LM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. HTTP-клиент REST API (кастомный CA — опционально)
	httpClient, err := apiclient.NewHTTPClient(cfg.APICACertPath, cfg.APITimeout)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата",
			slog.String("path", cfg.APICACertPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if cfg.APICACertPath != "" {
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.APICACertPath))
	}
	gateway := apiclient.NewGateway(cfg.APIURL, httpClient, logger)

	// 4. Сессии: шифрованная cookie и кэш профилей
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.CookieSecure, cfg.SessionTTL)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	profiles := identity.NewProfileCache(cfg.ProfileCacheSize, cfg.ProfileCacheTTL)

	// 5. Переводы и шаблоны страниц
	bundle, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	renderer, err := pages.NewRenderer(bundle)
	if err != nil {
		logger.Error("Ошибка разбора шаблонов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Обработчики страниц
	base := uihandlers.NewBase(renderer, bundle, uihandlers.Settings{
		BorrowPageSize: cfg.BorrowPageSize,
		BookPageSize:   cfg.BookPageSize,
		CopyPageSize:   cfg.CopyPageSize,
		UploadMaxBytes: cfg.UploadMaxBytes,
		Tracker: service.TrackerOptions{
			Interval:    cfg.UploadPollInterval,
			MaxDuration: cfg.UploadMaxDuration,
			MaxAttempts: cfg.MaxUploadPolls(),
		},
	}, logger)
	// Одна задача загрузки на пользователя
	tasks := service.NewTaskRegistry(cfg.ProfileCacheSize, cfg.TaskTTL)
	ui := uihandlers.NewUI(base, tasks, logger)

	// 7. Middleware сессии и проверки ролей
	sessionMiddleware := uimiddleware.NewSession(sessionMgr, gateway, profiles, logger)
	guard := uimiddleware.NewGuard(ui.ForbiddenHandler(), logger)

	// 8. topologymetrics — мониторинг REST API
	ctx := context.Background()
	var deps handlers.DependencyHealth
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"library-ui",
		cfg.DephealthGroup,
		cfg.APIURL,
		cfg.APIHealthPath,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		deps = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. Health endpoints
	healthHandler := handlers.NewHealthHandler(gateway, deps)

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, healthHandler, server.UI{
		Pages:   ui,
		Session: sessionMiddleware,
		Guard:   guard,
	})
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("library-ui остановлен")
}
