package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// ProfileHandler — собственный профиль, профили других пользователей, история выдач.
type ProfileHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewProfileHandler создаёт обработчик профилей.
func NewProfileHandler(base *Base, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.profile")),
	}
}

// Own — GET /profile.
func (h *ProfileHandler) Own(w http.ResponseWriter, r *http.Request) {
	u := h.base.user(r)
	data := pages.ProfileData{
		Profile: u,
		Own:     true,
		Form:    apiclient.ProfileUpdate{FullName: u.FullName, Phone: u.Phone, Address: u.Address},
	}
	if !h.history(w, r, &data, u.ID) {
		return
	}
	data.View = h.base.view(w, r, "title.profile", rbac.PathProfile)
	h.base.page(w, r, "profile", data)
}

// Update — POST /profile. Пустой пароль не меняется.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	upd := apiclient.ProfileUpdate{
		FullName: r.FormValue("full_name"),
		Phone:    r.FormValue("phone"),
		Address:  r.FormValue("address"),
		Password: r.FormValue("password"),
	}

	users := service.NewUserService(h.base.client(r), h.logger)
	if _, err := users.UpdateProfile(r.Context(), upd); err != nil {
		if !errors.Is(err, service.ErrValidation) && !isClientError(err) {
			h.base.fail(w, r, err, rbac.PathProfile)
			return
		}
		u := h.base.user(r)
		upd.Password = ""
		data := pages.ProfileData{
			Profile: u,
			Own:     true,
			Form:    upd,
			Fields:  validationFields(err),
			Error:   h.base.message(r, err),
		}
		if !h.history(w, r, &data, u.ID) {
			return
		}
		data.View = h.base.view(w, r, "title.profile", rbac.PathProfile)
		h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("profile", data))
		return
	}

	// Профиль в кэше сессии устарел
	if err := uimiddleware.FromContext(r.Context()).Identity.Refresh(r.Context()); err != nil {
		h.logger.Warn("Профиль не перечитан после изменения", slog.String("error", err.Error()))
	}
	h.base.success(w, r, rbac.PathProfile, "profile.saved")
}

// Other — GET /profile/{id}: профиль другого пользователя (admin, librarian).
func (h *ProfileHandler) Other(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == h.base.user(r).ID {
		http.Redirect(w, r, rbac.PathProfile, http.StatusSeeOther)
		return
	}

	profile, err := service.NewUserService(h.base.client(r), h.logger).Profile(r.Context(), id)
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	data := pages.ProfileData{Profile: profile}
	if !h.history(w, r, &data, profile.ID) {
		return
	}
	data.View = h.base.view(w, r, "title.user_profile", rbac.PathUsers)
	h.base.page(w, r, "profile", data)
}

// history заполняет страницу истории выдач. Ошибка истории не скрывает профиль;
// false — ответ уже записан (сессия истекла).
func (h *ProfileHandler) history(w http.ResponseWriter, r *http.Request, data *pages.ProfileData, userID string) bool {
	borrows := service.NewBorrowService(h.base.client(r), h.base.settings.BorrowPageSize, h.logger)
	hist, err := borrows.History(r.Context(), userID, pageParam(r))
	if err != nil {
		if sessionExpired(err) {
			h.base.fail(w, r, err, "")
			return false
		}
		h.logger.Warn("История выдач недоступна",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		data.HistoryErr = h.base.message(r, err)
		return true
	}
	data.History = hist
	data.HistoryPrev, data.HistoryNext = historyPages(hist)
	return true
}

// historyPages возвращает номера соседних страниц истории (0 — нет страницы).
func historyPages(hist *apiclient.HistoryPage) (prev, next int) {
	if hist.Page > 1 {
		prev = hist.Page - 1
	}
	switch {
	case hist.Total > 0 && hist.Limit > 0:
		if hist.Page*hist.Limit < hist.Total {
			next = hist.Page + 1
		}
	case hist.Limit > 0 && len(hist.Records) >= hist.Limit:
		next = hist.Page + 1
	}
	return prev, next
}
