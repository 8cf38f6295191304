package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/i18n"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// BorrowsHandler — записи о выдаче, возврат со штрафом и «мои выдачи».
type BorrowsHandler struct {
	base   *Base
	logger *slog.Logger
	now    func() time.Time
}

// NewBorrowsHandler создаёт обработчик записей о выдаче.
func NewBorrowsHandler(base *Base, logger *slog.Logger) *BorrowsHandler {
	return &BorrowsHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.borrows")),
		now:    time.Now,
	}
}

func (h *BorrowsHandler) borrows(r *http.Request) *service.BorrowService {
	return service.NewBorrowService(h.base.client(r), h.base.settings.BorrowPageSize, h.logger)
}

// List — GET /borrows?status=&q=&mode=&page=.
// Без q — серверная пагинация; с q — поиск по штрихкоду или пользователю.
func (h *BorrowsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := service.ParseSearchMode(q.Get("mode"))
	query := strings.TrimSpace(q.Get("q"))

	page, err := h.borrows(r).Search(r.Context(), service.SearchQuery{
		Text:   query,
		Mode:   mode,
		Status: model.BorrowStatus(q.Get("status")),
		Page:   pageParam(r),
	})
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	h.renderList(w, r, h.base.view(w, r, "title.borrows", rbac.PathBorrows), page, query, mode)
}

func (h *BorrowsHandler) renderList(w http.ResponseWriter, r *http.Request, v pages.View, page *service.BorrowPage, query string, mode service.SearchMode) {
	h.base.page(w, r, "borrows", pages.BorrowsData{
		View:   v,
		Status: string(page.Status),
		Query:  query,
		Mode:   string(mode),
		Page:   page,
		Now:    h.now(),
	})
}

// ReturnPage — GET /borrows/{id}/return: штраф и форма подтверждения.
// Если штраф рассчитать не удалось, сумма не показывается, есть ссылка «повторить».
func (h *BorrowsHandler) ReturnPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	quote := h.borrows(r).CalculateFine(r.Context(), id)
	if quote.Err != nil && sessionExpired(quote.Err) {
		h.base.fail(w, r, quote.Err, "")
		return
	}

	q := r.URL.Query()
	h.base.page(w, r, "return", pages.ReturnData{
		View:       h.base.view(w, r, "title.return", rbac.PathBorrows),
		BorrowID:   id,
		Book:       q.Get("book"),
		Borrower:   q.Get("user"),
		Fine:       quote,
		Conditions: model.ReturnConditions,
		Condition:  string(model.ConditionGood),
		Page:       pageParam(r),
	})
}

// Return — POST /borrows/{id}/return. После подтверждения страница
// активных записей перечитывается с сервера и рисуется сразу.
func (h *BorrowsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page := pageParam(r)
	svc := h.borrows(r)

	outcome, err := svc.ConfirmReturn(r.Context(), service.ReturnInput{
		BorrowID:  id,
		Condition: r.FormValue("condition"),
		Remarks:   r.FormValue("remarks"),
		FinePaid:  formBool(r, "fine_paid"),
		Page:      page,
	})
	if err != nil {
		back := "/borrows/" + url.PathEscape(id) + "/return?" + url.Values{
			"book": {r.FormValue("book")},
			"user": {r.FormValue("user")},
			"page": {strconv.Itoa(page)},
		}.Encode()
		if errors.Is(err, service.ErrValidation) {
			setFlash(w, flashError, h.base.message(r, err))
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
		h.base.fail(w, r, err, back)
		return
	}

	lang := i18n.LangFromContext(r.Context())
	msg := h.base.tr(r, "borrows.returned_ok")
	if fine := outcome.Receipt.Fine; fine > 0 {
		msg = h.base.tr(r, "borrows.returned_fine", h.base.bundle.Amount(lang, fine))
	}

	if outcome.RefetchErr != nil {
		h.logger.Warn("Список активных выдач не перечитан после возврата",
			slog.String("borrow_id", id),
			slog.String("error", outcome.RefetchErr.Error()),
		)
		setFlash(w, flashSuccess, msg)
		http.Redirect(w, r, rbac.PathBorrows, http.StatusSeeOther)
		return
	}

	v := h.base.view(w, r, "title.borrows", rbac.PathBorrows)
	v.Flash = &pages.Flash{Kind: flashSuccess, Message: msg}
	h.renderList(w, r, v, outcome.Active, "", service.SearchByBarcode)
}

// MyBorrows — GET /my-borrows: активные и возвращённые выдачи текущего пользователя.
func (h *BorrowsHandler) MyBorrows(w http.ResponseWriter, r *http.Request) {
	summary, err := h.borrows(r).MemberSummary(r.Context(), "")
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	h.base.page(w, r, "my_borrows", pages.MyBorrowsData{
		View:    h.base.view(w, r, "title.my_borrows", rbac.PathMyBorrows),
		Summary: summary,
		Now:     h.now(),
	})
}
