// Пакет server — HTTP-сервер веб-интерфейса библиотеки с graceful shutdown.
// Без TLS — TLS termination на reverse proxy перед сервисом.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/swanith1234/LibraryManagementSystem/internal/api/errors"
	"github.com/swanith1234/LibraryManagementSystem/internal/api/handlers"
	"github.com/swanith1234/LibraryManagementSystem/internal/api/middleware"
	"github.com/swanith1234/LibraryManagementSystem/internal/config"
	uihandlers "github.com/swanith1234/LibraryManagementSystem/internal/ui/handlers"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/i18n"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/static"
)

// Server — HTTP-сервер веб-интерфейса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// UI — части веб-интерфейса, которые монтирует сервер.
type UI struct {
	Pages   *uihandlers.UI
	Session *uimiddleware.Session
	Guard   *uimiddleware.Guard
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, health *handlers.HealthHandler, ui UI) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(logger, health, ui),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Поток SSE снимает дедлайн записи сам
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты: служебные endpoints, статика и страницы.
func NewRouter(logger *slog.Logger, health *handlers.HealthHandler, ui UI) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestID)
	router.Use(recoverer(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без сессии
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Handle("/static/*", http.StripPrefix("/static/", staticHandler()))

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware)
		r.Use(ui.Session.Middleware)
		ui.Pages.Mount(r, ui.Guard)
	})

	// Страница 404 тоже нуждается в языке и сессии (меню пользователя)
	notFound := i18n.Middleware(ui.Session.Middleware(ui.Pages.NotFoundHandler()))
	router.NotFound(notFound.ServeHTTP)

	return router
}

// staticHandler раздаёт встроенные CSS и JS с кэшированием на сутки.
func staticHandler() http.Handler {
	files := http.FileServer(static.FileSystem())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}

// recoverer превращает panic обработчика в ответ 500 и запись в лог.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("Panic в обработчике",
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetRequestID(r.Context())),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				if apierrors.IsService(r) || apierrors.IsBackground(r) {
					apierrors.Write(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
					return
				}
				http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
