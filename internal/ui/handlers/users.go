package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// UsersHandler — список пользователей, смена роли и удаление.
type UsersHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewUsersHandler создаёт обработчик администрирования пользователей.
func NewUsersHandler(base *Base, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.users")),
	}
}

// List — GET /users?q=.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	users, err := service.NewUserService(h.base.client(r), h.logger).List(r.Context(), query)
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}

	u := h.base.user(r)
	h.base.page(w, r, "users", pages.UsersData{
		View:   h.base.view(w, r, "title.users", rbac.PathUsers),
		Query:  query,
		Users:  users,
		Roles:  rbac.AllRoles(),
		Manage: u.Role.Can(rbac.PermManageUsers),
	})
}

// ChangeRole — POST /users/{id}/role.
func (h *UsersHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	users := service.NewUserService(h.base.client(r), h.logger)
	if err := users.ChangeRole(r.Context(), h.base.user(r), id, r.FormValue("role")); err != nil {
		h.base.fail(w, r, err, rbac.PathUsers)
		return
	}
	h.base.success(w, r, rbac.PathUsers, "users.role_changed")
}

// Delete — POST /users/{id}/delete.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	users := service.NewUserService(h.base.client(r), h.logger)
	if err := users.Delete(r.Context(), h.base.user(r), id); err != nil {
		h.base.fail(w, r, err, rbac.PathUsers)
		return
	}
	h.base.success(w, r, rbac.PathUsers, "users.deleted")
}
