package handlers

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// DashboardHandler — дашборд администратора и библиотекаря.
type DashboardHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewDashboardHandler создаёт обработчик дашборда.
func NewDashboardHandler(base *Base, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.dashboard")),
	}
}

// Dashboard — GET /dashboard. Сводка пользователей и статистика каталога
// запрашиваются параллельно; ошибка одной не скрывает другую.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	client := h.base.client(r)
	user := h.base.user(r)
	data := pages.DashboardData{}

	var g errgroup.Group
	if user.Role.Can(rbac.PermViewUsers) {
		g.Go(func() error {
			sum, err := service.NewUserService(client, h.logger).Summary(r.Context())
			if err != nil {
				if sessionExpired(err) {
					return err
				}
				h.logger.Warn("Сводка дашборда недоступна", slog.String("error", err.Error()))
				data.SummaryErr = h.base.message(r, err)
				return nil
			}
			data.Summary = sum
			return nil
		})
	}
	g.Go(func() error {
		catalog := service.NewCatalogService(client, h.base.settings.BookPageSize, h.base.settings.CopyPageSize, h.logger)
		st, err := catalog.Stats(r.Context())
		if err != nil {
			if sessionExpired(err) {
				return err
			}
			h.logger.Warn("Статистика библиотеки недоступна", slog.String("error", err.Error()))
			data.StatsErr = h.base.message(r, err)
			return nil
		}
		data.Stats = st
		return nil
	})
	if err := g.Wait(); err != nil {
		h.base.fail(w, r, err, "")
		return
	}

	data.View = h.base.view(w, r, "title.dashboard", rbac.PathDashboard)
	h.base.page(w, r, "dashboard", data)
}
