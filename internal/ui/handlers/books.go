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

// BooksHandler — управление книгами каталога.
type BooksHandler struct {
	base   *Base
	logger *slog.Logger
}

// NewBooksHandler создаёт обработчик управления книгами.
func NewBooksHandler(base *Base, logger *slog.Logger) *BooksHandler {
	return &BooksHandler{
		base:   base,
		logger: logger.With(slog.String("component", "ui.books")),
	}
}

func (h *BooksHandler) catalog(r *http.Request) *service.CatalogService {
	s := h.base.settings
	return service.NewCatalogService(h.base.client(r), s.BookPageSize, s.CopyPageSize, h.logger)
}

// List — GET /books?q=. Сервер отдаёт весь список, q фильтрует его по подстроке.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	books, err := h.catalog(r).Books(r.Context(), query)
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	h.base.page(w, r, "books", pages.BooksData{
		View:  h.base.view(w, r, "title.books", rbac.PathBooks),
		Query: query,
		Books: books,
	})
}

// New — GET /books/new.
func (h *BooksHandler) New(w http.ResponseWriter, r *http.Request) {
	h.base.page(w, r, "book_form", pages.BookFormData{
		View:  h.base.view(w, r, "title.book_new", rbac.PathBooks),
		Input: model.BookInput{TotalCopies: 1},
	})
}

// Create — POST /books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := bookInputFromForm(r)
	if _, err := h.catalog(r).CreateBook(r.Context(), in); err != nil {
		h.formError(w, r, "", in, err)
		return
	}
	h.base.success(w, r, rbac.PathBooks, "books.created", in.Title)
}

// Edit — GET /books/{id}/edit.
func (h *BooksHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.catalog(r).Book(r.Context(), id)
	if err != nil {
		h.base.fail(w, r, err, "")
		return
	}
	h.base.page(w, r, "book_form", pages.BookFormData{
		View:   h.base.view(w, r, "title.book_edit", rbac.PathBooks),
		BookID: b.ID,
		Input:  model.InputFrom(*b),
	})
}

// Update — POST /books/{id}.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in := bookInputFromForm(r)
	if err := h.catalog(r).UpdateBook(r.Context(), id, in); err != nil {
		h.formError(w, r, id, in, err)
		return
	}
	h.base.success(w, r, rbac.PathBooks, "books.updated", in.Title)
}

// Delete — POST /books/{id}/delete.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog(r).DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.base.fail(w, r, err, rbac.PathBooks)
		return
	}
	h.base.success(w, r, rbac.PathBooks, "books.deleted")
}

// formError показывает форму книги заново с ошибкой; прочие ошибки — через fail.
func (h *BooksHandler) formError(w http.ResponseWriter, r *http.Request, id string, in model.BookInput, err error) {
	if !errors.Is(err, service.ErrValidation) && !isClientError(err) {
		h.base.fail(w, r, err, "")
		return
	}
	title := "title.book_new"
	if id != "" {
		title = "title.book_edit"
	}
	h.base.render(w, r, http.StatusUnprocessableEntity, h.base.renderer.Page("book_form", pages.BookFormData{
		View:   h.base.view(w, r, title, rbac.PathBooks),
		BookID: id,
		Input:  in,
		Fields: validationFields(err),
		Error:  h.base.message(r, err),
	}))
}

// bookInputFromForm читает поля формы книги. Нечисловые значения
// числовых полей становятся нулём, проверку выполняет сервис.
func bookInputFromForm(r *http.Request) model.BookInput {
	return model.BookInput{
		Title:         r.FormValue("title"),
		Author:        r.FormValue("author"),
		ISBN:          r.FormValue("isbn"),
		Category:      r.FormValue("category"),
		Edition:       r.FormValue("edition"),
		Publisher:     r.FormValue("publisher"),
		PublishedYear: formInt(r, "published_year"),
		Price:         formInt(r, "price"),
		Location:      r.FormValue("location"),
		Language:      r.FormValue("language"),
		Pages:         formInt(r, "no_of_pages"),
		CoverImageURL: strings.TrimSpace(r.FormValue("cover_image_url")),
		EbookURL:      strings.TrimSpace(r.FormValue("ebook_url")),
		TotalCopies:   formInt(r, "total_copies"),
	}
}
