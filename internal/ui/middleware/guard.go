// guard.go — защита страниц: вход обязателен, права берутся из таблицы ролей.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apierrors "github.com/swanith1234/LibraryManagementSystem/internal/api/errors"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

// Guard проверяет сессию и права перед обработчиком страницы.
type Guard struct {
	// forbidden рисует страницу 403
	forbidden http.Handler
	logger    *slog.Logger
}

// NewGuard создаёт guard. forbidden — обработчик ответа 403.
func NewGuard(forbidden http.Handler, logger *slog.Logger) *Guard {
	return &Guard{
		forbidden: forbidden,
		logger:    logger.With(slog.String("component", "ui_guard")),
	}
}

// RequireAuth пропускает только вошедших пользователей.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return g.require("", next)
}

// Require пропускает пользователей, чья роль имеет право permission.
func (g *Guard) Require(permission rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.require(permission, next)
	}
}

func (g *Guard) require(permission rbac.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs := FromContext(r.Context())
		if rs == nil {
			g.logger.Error("Guard без Session middleware", slog.String("path", r.URL.Path))
			apierrors.Write(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
			return
		}

		if err := rs.Authenticate(r.Context()); err != nil {
			g.logger.Debug("Нет действующей сессии",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			RedirectToLogin(w, r)
			return
		}

		// Authenticate дожидается профиля: состояние Loading здесь уже пройдено
		snap := rs.Identity.Snapshot()
		if snap.User == nil {
			RedirectToLogin(w, r)
			return
		}

		if permission != "" && !snap.User.Role.Can(permission) {
			g.logger.Info("Недостаточно прав",
				slog.String("user_id", snap.User.ID),
				slog.String("role", string(snap.User.Role)),
				slog.String("permission", string(permission)),
				slog.String("path", r.URL.Path),
			)
			if apierrors.IsBackground(r) {
				apierrors.Write(w, http.StatusForbidden, "Недостаточно прав")
				return
			}
			g.forbidden.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// User возвращает пользователя, проверенного Guard (nil без сессии).
func User(ctx context.Context) *model.User {
	rs := FromContext(ctx)
	if rs == nil {
		return nil
	}
	return rs.Identity.Snapshot().User
}

// RedirectToLogin отправляет на страницу входа с возвратом на текущий путь.
// Фоновым запросам (SSE, fetch) отвечает 401 без redirect.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if apierrors.IsBackground(r) {
		apierrors.Write(w, http.StatusUnauthorized, "Сессия истекла, требуется вход")
		return
	}
	target := rbac.PathLogin
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// SafeNext возвращает локальный путь для redirect после входа или "".
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	if next == rbac.PathLogin || strings.HasPrefix(next, rbac.PathLogin+"?") {
		return ""
	}
	return next
}
