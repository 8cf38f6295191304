package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// minPasswordLen — минимальная длина пароля при регистрации и сбросе.
const minPasswordLen = 8

// AuthHandler — вход, выход, регистрация и сброс пароля.
type AuthHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewAuthHandler создаёт обработчик страниц входа.
func NewAuthHandler(base *Base, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.auth")),
	}
}

// Home отправляет вошедшего пользователя на стартовую страницу роли,
// остальных — на вход.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if u := h.current(r); u != "" {
		http.Redirect(w, r, u, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, rbac.PathLogin, http.StatusSeeOther)
}

// LoginPage — форма входа. Вошедший пользователь сразу уходит на свою страницу.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if home := h.current(r); home != "" {
		http.Redirect(w, r, home, http.StatusSeeOther)
		return
	}
	h.base.page(w, r, "login", pages.LoginData{
		View: h.base.view(w, r, "title.login", ""),
		Next: uimiddleware.SafeNext(r.URL.Query().Get("next")),
	})
}

// Login — POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	next := uimiddleware.SafeNext(r.FormValue("next"))

	data := pages.LoginData{Email: email, Next: next}
	if email == "" || password == "" {
		data.View = h.base.view(w, r, "title.login", "")
		data.Error = h.base.tr(r, "auth.required")
		h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("login", data))
		return
	}

	rs := uimiddleware.FromContext(r.Context())
	if err := rs.Identity.Login(r.Context(), email, password); err != nil {
		h.logger.Info("Неудачный вход",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		data.View = h.base.view(w, r, "title.login", "")
		if apiclient.IsStatus(err, http.StatusUnauthorized) || apiclient.IsStatus(err, http.StatusBadRequest) {
			data.Error = h.base.tr(r, "auth.invalid")
		} else {
			data.Error = h.base.message(r, err)
		}
		h.base.render(w, r, http.StatusUnauthorized, h.base.renderer.Page("login", data))
		return
	}

	rs.Tokens.Renew()
	u := rs.Identity.Snapshot().User
	h.logger.Info("Пользователь вошёл",
		slog.String("user_id", u.ID),
		slog.String("role", u.Role.String()),
	)
	target := u.Role.HomePath()
	if next != "" {
		target = next
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout — POST /logout. Токены удаляются из cookie, запрос к серверу не нужен.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	uimiddleware.FromContext(r.Context()).Identity.Logout()
	h.base.success(w, r, rbac.PathLogin, "auth.logged_out")
}

// RegisterPage — форма регистрации.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.base.page(w, r, "register", pages.RegisterData{View: h.base.view(w, r, "title.register", "")})
}

// Register — POST /register. Роль не передаётся: сервер назначает member.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	reg := apiclient.Registration{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	users := service.NewUserService(h.base.client(r), h.logger)
	if _, err := users.Register(r.Context(), reg); err != nil {
		data := pages.RegisterData{
			View:     h.base.view(w, r, "title.register", ""),
			Username: strings.TrimSpace(reg.Username),
			Email:    strings.TrimSpace(reg.Email),
			Fields:   validationFields(err),
			Error:    h.base.message(r, err),
		}
		h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("register", data))
		return
	}
	h.base.success(w, r, rbac.PathLogin, "auth.registered")
}

// ForgotPage — форма запроса сброса пароля.
func (h *AuthHandler) ForgotPage(w http.ResponseWriter, r *http.Request) {
	h.base.page(w, r, "forgot_password", pages.PasswordData{View: h.base.view(w, r, "title.forgot_password", "")})
}

// Forgot — POST /forgot-password.
func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	data := pages.PasswordData{Email: email}

	if email == "" {
		data.View = h.base.view(w, r, "title.forgot_password", "")
		data.Error = h.base.tr(r, "auth.required")
		h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("forgot_password", data))
		return
	}

	msg, err := h.base.client(r).ForgotPassword(r.Context(), email)
	data.View = h.base.view(w, r, "title.forgot_password", "")
	if err != nil {
		h.logger.Warn("Ошибка запроса сброса пароля", slog.String("error", err.Error()))
		data.Error = h.base.message(r, err)
		h.base.render(w, r, http.StatusBadGateway, h.base.renderer.Page("forgot_password", data))
		return
	}
	if msg == "" {
		msg = h.base.tr(r, "auth.reset_sent")
	}
	data.Message = msg
	h.base.page(w, r, "forgot_password", data)
}

// ResetPage — форма нового пароля; токен приходит из ссылки в письме.
func (h *AuthHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	h.base.page(w, r, "reset_password", pages.PasswordData{
		View:  h.base.view(w, r, "title.reset_password", ""),
		Token: r.URL.Query().Get("token"),
	})
}

// Reset — POST /reset-password.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.FormValue("token"))
	password := r.FormValue("password")
	data := pages.PasswordData{Token: token}

	var problem string
	switch {
	case token == "":
		problem = "auth.reset_token_missing"
	case len([]rune(password)) < minPasswordLen:
		problem = "auth.password_short"
	case password != r.FormValue("confirm"):
		problem = "auth.password_mismatch"
	}
	if problem != "" {
		data.View = h.base.view(w, r, "title.reset_password", "")
		data.Error = h.base.tr(r, problem)
		h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("reset_password", data))
		return
	}

	msg, err := h.base.client(r).ResetPassword(r.Context(), token, password)
	data.View = h.base.view(w, r, "title.reset_password", "")
	if err != nil {
		data.Error = h.base.message(r, err)
		h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("reset_password", data))
		return
	}
	if msg == "" {
		msg = h.base.tr(r, "auth.reset_done")
	}
	data.Message = msg
	h.base.page(w, r, "reset_password", data)
}

// current возвращает стартовую страницу вошедшего пользователя или "".
func (h *AuthHandler) current(r *http.Request) string {
	rs := uimiddleware.FromContext(r.Context())
	if rs == nil || rs.Tokens.AccessToken() == "" {
		return ""
	}
	if err := rs.Authenticate(r.Context()); err != nil {
		if !errors.Is(err, apiclient.ErrSessionExpired) {
			h.logger.Debug("Сессия не восстановлена", slog.String("error", err.Error()))
		}
		return ""
	}
	if u := rs.Identity.Snapshot().User; u != nil && u.Role.IsValid() {
		return u.Role.HomePath()
	}
	return ""
}
