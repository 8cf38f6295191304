package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

// CopiesHandler — экземпляры книг и выдача экземпляра пользователю.
type CopiesHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewCopiesHandler создаёт обработчик экземпляров.
func NewCopiesHandler(base *Base, logger *slog.Logger) *CopiesHandler {
	return &CopiesHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.copies")),
	}
}

func (h *CopiesHandler) catalog(r *http.Request) *service.CatalogService {
	s := h.base.settings
	return service.NewCatalogService(h.base.client(r), s.BookPageSize, s.CopyPageSize, h.logger)
}

// List — GET /copies?q=&page=.
func (h *CopiesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	page, err := h.catalog(r).Copies(r.Context(), service.CopyListQuery{Search: query, Page: pageParam(r)})
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}

	data := pages.CopiesData{
		View:   h.base.view(w, r, "title.copies", rbac.PathCopies),
		Query:  query,
		Copies: page,
	}
	if page.Page > 1 {
		data.PrevPage = page.Page - 1
	}
	if page.HasNext {
		data.NextPage = page.Page + 1
	}
	h.base.page(w, r, "copies", data)
}

// New — GET /copies/new. Необязательный book_id выбирает книгу заранее.
func (h *CopiesHandler) New(w http.ResponseWriter, r *http.Request) {
	in := model.CopyInput{BookID: r.URL.Query().Get("book_id"), Condition: model.ConditionGood}
	h.form(w, r, http.StatusOK, "", in, nil)
}

// Create — POST /copies.
func (h *CopiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := copyInputFromForm(r)
	if _, err := h.catalog(r).CreateCopy(r.Context(), in); err != nil {
		h.formError(w, r, "", in, err)
		return
	}
	h.base.success(w, r, rbac.PathCopies, "copies.created", in.Barcode)
}

// Edit — GET /copies/{id}/edit.
func (h *CopiesHandler) Edit(w http.ResponseWriter, r *http.Request) {
	cp, err := h.catalog(r).Copy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	cond, err := model.ParseCondition(cp.Condition)
	if err != nil || cond == model.ConditionDamaged {
		cond = model.ConditionGood
	}
	in := model.CopyInput{
		BookID:    cp.BookID,
		Barcode:   cp.Barcode,
		Condition: cond,
		Remarks:   cp.Remarks,
		Vendor:    cp.Vendor,
		IsDamaged: cp.IsDamaged,
	}
	h.form(w, r, http.StatusOK, cp.ID, in, nil)
}

// Update — POST /copies/{id}.
func (h *CopiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in := copyInputFromForm(r)
	if err := h.catalog(r).UpdateCopy(r.Context(), id, in); err != nil {
		h.formError(w, r, id, in, err)
		return
	}
	h.base.success(w, r, rbac.PathCopies, "copies.updated", in.Barcode)
}

// Delete — POST /copies/{id}/delete.
func (h *CopiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog(r).DeleteCopy(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.base.fail(w, r, err, rbac.PathCopies)
		return
	}
	h.base.success(w, r, rbac.PathCopies, "copies.deleted")
}

// LendPage — GET /copies/{id}/lend?q=: поиск читателя для выдачи.
func (h *CopiesHandler) LendPage(w http.ResponseWriter, r *http.Request) {
	catalog := h.catalog(r)
	cp, err := catalog.Copy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	if !cp.Lendable() {
		setFlash(w, flashError, h.base.tr(r, "lend.not_lendable"))
		http.Redirect(w, r, rbac.PathCopies, http.StatusSeeOther)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	data := pages.LendData{Copy: cp, Query: query}
	users, err := catalog.FindBorrowers(r.Context(), query)
	if err != nil {
		if sessionExpired(err) {
			h.base.fail(w, r, err, "")
			return
		}
		data.Error = h.base.message(r, err)
	}
	data.Users = users
	data.View = h.base.view(w, r, "title.lend", rbac.PathCopies)
	h.base.page(w, r, "lend", data)
}

// Lend — POST /copies/{id}/lend.
func (h *CopiesHandler) Lend(w http.ResponseWriter, r *http.Request) {
	copyID := chi.URLParam(r, "id")
	borrows := service.NewBorrowService(h.base.client(r), h.base.settings.BorrowPageSize, h.logger)
	receipt, err := borrows.Lend(r.Context(), service.LendInput{UserID: r.FormValue("user_id"), CopyID: copyID})
	if err != nil {
		h.base.fail(w, r, err, "/copies/"+copyID+"/lend")
		return
	}
	if receipt.DueDate.IsZero() {
		h.base.success(w, r, rbac.PathCopies, "copies.lent", receipt.BookTitle)
		return
	}
	h.base.success(w, r, rbac.PathCopies, "copies.lent_due", receipt.BookTitle, receipt.DueDate.Date())
}

// form рисует форму экземпляра со списком книг для выбора.
func (h *CopiesHandler) form(w http.ResponseWriter, r *http.Request, status int, id string, in model.CopyInput, formErr error) {
	books, err := h.catalog(r).Books(r.Context(), "")
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	title := "title.copy_new"
	if id != "" {
		title = "title.copy_edit"
	}
	data := pages.CopyFormData{
		View:       h.base.view(w, r, title, rbac.PathCopies),
		CopyID:     id,
		Input:      in,
		Conditions: model.CopyConditions,
		Books:      books,
	}
	if formErr != nil {
		data.Fields = validationFields(formErr)
		data.Error = h.base.message(r, formErr)
	}
	h.base.render(w, r, status, h.base.renderer.Page("copy_form", data))
}

func (h *CopiesHandler) formError(w http.ResponseWriter, r *http.Request, id string, in model.CopyInput, err error) {
	if !errors.Is(err, service.ErrValidation) && !isClientError(err) {
		h.base.fail(w, r, err, "")
		return
	}
	h.form(w, r, http.StatusUnprocessableEntity, id, in, err)
}

func copyInputFromForm(r *http.Request) model.CopyInput {
	return model.CopyInput{
		BookID:    strings.TrimSpace(r.FormValue("book_id")),
		Barcode:   strings.TrimSpace(r.FormValue("barcode")),
		Condition: model.Condition(r.FormValue("condition")),
		Remarks:   r.FormValue("remarks"),
		Vendor:    r.FormValue("vendor"),
		IsDamaged: formBool(r, "is_damaged"),
	}
}
