// Пакет handlers — HTTP-обработчики страниц веб-интерфейса.
// base.go — общие части: рендеринг, уведомления, разбор ошибок API.
package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/i18n"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// Settings — параметры страниц из конфигурации.
type Settings struct {
	BorrowPageSize int
	BookPageSize   int
	CopyPageSize   int
	// UploadMaxBytes — предельный размер CSV-файла
	UploadMaxBytes int64
	// Tracker — параметры опроса прогресса загрузки
	Tracker service.TrackerOptions
}

// Base — общие зависимости всех обработчиков страниц.
type Base struct {
	renderer *pages.Renderer
	bundle   *i18n.Bundle
	settings Settings
	logger   *slog.Logger
}

// NewBase создаёт общую часть обработчиков.
func NewBase(renderer *pages.Renderer, bundle *i18n.Bundle, settings Settings, logger *slog.Logger) *Base {
	return &Base{
		renderer: renderer,
		bundle:   bundle,
		settings: settings,
		logger:   logger.With(slog.String("component", "ui")),
	}
}

// view собирает данные layout и забирает одноразовое уведомление.
func (b *Base) view(w http.ResponseWriter, r *http.Request, title, active string) pages.View {
	v := pages.View{
		Lang:      i18n.LangFromContext(r.Context()),
		Languages: i18n.Languages(),
		Title:     title,
		Active:    active,
		Flash:     popFlash(w, r),
	}
	if u := uimiddleware.User(r.Context()); u != nil {
		v.User = u
		v.Nav = u.Role.Nav()
	}
	return v
}

// render выполняет шаблон в буфер и только затем пишет ответ: ошибка
// шаблона не оставляет клиенту половину страницы.
func (b *Base) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		b.logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (b *Base) page(w http.ResponseWriter, r *http.Request, name string, data any) {
	b.render(w, r, http.StatusOK, b.renderer.Page(name, data))
}

// tr переводит ключ на язык запроса.
func (b *Base) tr(r *http.Request, key string, args ...any) string {
	lang := i18n.LangFromContext(r.Context())
	if len(args) == 0 {
		return b.bundle.T(lang, key)
	}
	return b.bundle.Tf(lang, key, args...)
}

// client возвращает API-клиент сессии запроса.
func (b *Base) client(r *http.Request) *apiclient.Client {
	return uimiddleware.FromContext(r.Context()).Client
}

func (b *Base) user(r *http.Request) *model.User {
	return uimiddleware.User(r.Context())
}

// success записывает уведомление и перенаправляет (POST → redirect → GET).
func (b *Base) success(w http.ResponseWriter, r *http.Request, target, key string, args ...any) {
	setFlash(w, flashSuccess, b.tr(r, key, args...))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// message — текст ошибки для пользователя: сообщение сервера или общий текст.
func (b *Base) message(r *http.Request, err error) string {
	var apiErr *apiclient.APIError
	var verr *service.ValidationError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.As(err, &verr):
		return b.tr(r, "errors.validation", strings.Join(verr.Fields, ", "))
	case errors.Is(err, service.ErrValidation):
		return b.tr(r, "errors.validation", "")
	case errors.As(err, &apiErr):
		return b.tr(r, "errors.api_status", apiErr.Status)
	default:
		return b.tr(r, "errors.unavailable")
	}
}

// fail разбирает ошибку операции.
// Истёкшая сессия — вход; нет ресурса — 404; нет прав — 403;
// иначе уведомление и возврат на back, а без back — страница ошибки.
func (b *Base) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		b.logger.Info("Сессия истекла", slog.String("path", r.URL.Path))
		uimiddleware.RedirectToLogin(w, r)
		return
	case errors.Is(err, service.ErrNotFound) || apiclient.IsNotFound(err):
		b.NotFound(w, r)
		return
	case apiclient.IsStatus(err, http.StatusForbidden):
		b.Forbidden(w, r)
		return
	}

	b.logger.Warn("Ошибка операции",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("error", err.Error()),
	)

	if back != "" {
		setFlash(w, flashError, b.message(r, err))
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	b.errorPage(w, r, http.StatusBadGateway, b.message(r, err), r.URL.RequestURI())
}

func (b *Base) errorPage(w http.ResponseWriter, r *http.Request, status int, message, retry string) {
	b.render(w, r, status, b.renderer.Page("error", pages.ErrorData{
		View:    b.view(w, r, "errors.title", ""),
		Status:  status,
		Message: message,
		Retry:   retry,
	}))
}

// Forbidden — страница 403 (роль без нужного права).
func (b *Base) Forbidden(w http.ResponseWriter, r *http.Request) {
	b.errorPage(w, r, http.StatusForbidden, b.tr(r, "errors.forbidden"), "")
}

// NotFound — страница 404.
func (b *Base) NotFound(w http.ResponseWriter, r *http.Request) {
	b.errorPage(w, r, http.StatusNotFound, b.tr(r, "errors.not_found"), "")
}

// formInt читает неотрицательное целое из формы; пусто или мусор — 0.
func formInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// pageParam читает номер страницы (минимум 1).
func pageParam(r *http.Request) int {
	if p := formInt(r, "page"); p > 0 {
		return p
	}
	return 1
}

func formBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.FormValue(key))
	return v
}

// isClientError — сервер отклонил данные формы (400, 409, 422).
func isClientError(err error) bool {
	return apiclient.IsStatus(err, http.StatusBadRequest) ||
		apiclient.IsStatus(err, http.StatusConflict) ||
		apiclient.IsStatus(err, http.StatusUnprocessableEntity)
}

func sessionExpired(err error) bool {
	return errors.Is(err, apiclient.ErrSessionExpired)
}

// validationFields возвращает поля с ошибками проверки (для подсветки формы).
func validationFields(err error) []string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
