package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// BrowseHandler — каталог для всех ролей: фильтры, карточка книги, запрос выдачи.
type BrowseHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewBrowseHandler создаёт обработчик каталога.
func NewBrowseHandler(base *Base, logger *slog.Logger) *BrowseHandler {
	return &BrowseHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.browse")),
	}
}

func (h *BrowseHandler) catalog(r *http.Request) *service.CatalogService {
	s := h.base.settings
	return service.NewCatalogService(h.base.client(r), s.BookPageSize, s.CopyPageSize, h.logger)
}

// Browse — GET /browse?search=&author=&category=&price_min=&price_max=&published_year=&after=&prev=.
func (h *BrowseHandler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.BookFilterFromQuery(q)
	data := pages.BrowseData{Filter: filter}

	page, err := h.catalog(r).Browse(r.Context(), filter, service.DecodeCursor(q))
	switch {
	case err == nil:
		u := h.base.user(r)
		data.Page = page
		data.Items = make([]pages.BrowseItem, 0, len(page.Books))
		for _, b := range page.Books {
			data.Items = append(data.Items, pages.BrowseItem{Book: b, Option: service.BorrowOptionFor(u, b)})
		}
	case errors.Is(err, service.ErrValidation):
		data.Error = h.base.tr(r, "browse.bad_price")
	default:
		h.base.fail(w, r, err, "")
		return
	}

	data.View = h.base.view(w, r, "title.browse", rbac.PathBrowse)
	h.base.page(w, r, "browse", data)
}

// Detail — GET /browse/{id}.
func (h *BrowseHandler) Detail(w http.ResponseWriter, r *http.Request) {
	b, err := h.catalog(r).Book(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	h.base.page(w, r, "book_detail", pages.BookDetailData{
		View:   h.base.view(w, r, "title.book_detail", rbac.PathBrowse),
		Book:   b,
		Option: service.BorrowOptionFor(h.base.user(r), *b),
	})
}

// Borrow — POST /browse/{id}/borrow: выдача или очередь от имени текущего
// пользователя. Доступность проверяется по свежей карточке книги.
func (h *BrowseHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	back := rbac.PathBrowse + "/" + id
	catalog := h.catalog(r)

	b, err := catalog.Book(r.Context(), id)
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	option := service.BorrowOptionFor(h.base.user(r), *b)
	msg, err := catalog.RequestBorrow(r.Context(), h.base.user(r), *b)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			setFlash(w, flashError, h.base.tr(r, "browse."+option.String()))
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
		h.base.fail(w, r, err, back)
		return
	}

	if msg == "" {
		key := "browse.borrowed"
		if option == service.OptionWaitlist {
			key = "browse.waitlisted"
		}
		msg = h.base.tr(r, key, b.Title)
	}
	setFlash(w, flashSuccess, msg)
	http.Redirect(w, r, back, http.StatusSeeOther)
}
