// catalog.go — каталог книг (курсорная пагинация, фильтры), экземпляры
// и решение «можно ли пользователю взять книгу».
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

// CatalogAPI — операции REST API над книгами, экземплярами и поиском пользователей.
type CatalogAPI interface {
	SearchBooks(ctx context.Context, q apiclient.BookQuery) (*apiclient.BookPage, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (*model.Book, error)
	CreateBook(ctx context.Context, in model.BookInput) (string, error)
	UpdateBook(ctx context.Context, id string, in model.BookInput) error
	DeleteBook(ctx context.Context, id string) error
	LibraryStats(ctx context.Context) (*model.LibraryStats, error)
	RequestBorrow(ctx context.Context, bookID string) (string, error)

	ListCopies(ctx context.Context, q apiclient.CopyQuery) (*apiclient.CopyPage, error)
	GetCopy(ctx context.Context, id string) (*model.BookCopy, error)
	CreateCopy(ctx context.Context, in model.CopyInput) (string, error)
	UpdateCopy(ctx context.Context, id string, in model.CopyInput) error
	DeleteCopy(ctx context.Context, id string) error

	SearchUsers(ctx context.Context, query string) ([]model.User, error)
}

// firstPageMarker обозначает первую страницу в стеке курсоров.
const firstPageMarker = "-"

// Cursor — позиция в каталоге: After — id последней книги предыдущей
// страницы (пусто для первой), History — стек предыдущих значений After.
type Cursor struct {
	After   string
	History []string
}

// DecodeCursor читает курсор из параметров after и prev.
func DecodeCursor(v url.Values) Cursor {
	c := Cursor{After: strings.TrimSpace(v.Get("after"))}
	if prev := strings.TrimSpace(v.Get("prev")); prev != "" {
		for _, id := range strings.Split(prev, ",") {
			if id == firstPageMarker {
				id = ""
			}
			c.History = append(c.History, id)
		}
	}
	return c
}

// Encode записывает курсор в параметры запроса.
func (c Cursor) Encode(v url.Values) {
	v.Del("after")
	v.Del("prev")
	if c.After != "" {
		v.Set("after", c.After)
	}
	if len(c.History) > 0 {
		parts := make([]string, len(c.History))
		for i, id := range c.History {
			if id == "" {
				id = firstPageMarker
			}
			parts[i] = id
		}
		v.Set("prev", strings.Join(parts, ","))
	}
}

// Next возвращает курсор следующей страницы.
func (c Cursor) Next(lastID string) Cursor {
	history := make([]string, len(c.History), len(c.History)+1)
	copy(history, c.History)
	return Cursor{After: lastID, History: append(history, c.After)}
}

// Prev возвращает курсор предыдущей страницы.
func (c Cursor) Prev() Cursor {
	if len(c.History) == 0 {
		return Cursor{}
	}
	n := len(c.History)
	history := make([]string, n-1)
	copy(history, c.History[:n-1])
	return Cursor{After: c.History[n-1], History: history}
}

// HasPrev сообщает, что страница не первая.
func (c Cursor) HasPrev() bool { return len(c.History) > 0 }

// BookFilter — фильтры каталога, передаются серверу как есть.
type BookFilter struct {
	Search   string
	Title    string
	Author   string
	Category string
	PriceMin int
	PriceMax int
	Year     int
}

// BookFilterFromQuery читает фильтры из параметров запроса.
// Некорректные числа игнорируются.
func BookFilterFromQuery(v url.Values) BookFilter {
	return BookFilter{
		Search:   strings.TrimSpace(v.Get("search")),
		Title:    strings.TrimSpace(v.Get("title")),
		Author:   strings.TrimSpace(v.Get("author")),
		Category: strings.TrimSpace(v.Get("category")),
		PriceMin: queryInt(v, "price_min"),
		PriceMax: queryInt(v, "price_max"),
		Year:     queryInt(v, "published_year"),
	}
}

// Query возвращает фильтры в виде параметров запроса (для ссылок пагинации).
func (f BookFilter) Query() url.Values {
	v := url.Values{}
	setQuery(v, "search", f.Search)
	setQuery(v, "title", f.Title)
	setQuery(v, "author", f.Author)
	setQuery(v, "category", f.Category)
	if f.PriceMin > 0 {
		v.Set("price_min", strconv.Itoa(f.PriceMin))
	}
	if f.PriceMax > 0 {
		v.Set("price_max", strconv.Itoa(f.PriceMax))
	}
	if f.Year > 0 {
		v.Set("published_year", strconv.Itoa(f.Year))
	}
	return v
}

// Empty сообщает, что фильтры не заданы.
func (f BookFilter) Empty() bool {
	return f == BookFilter{}
}

// CatalogPage — страница каталога.
type CatalogPage struct {
	Books  []model.Book
	Filter BookFilter
	Cursor Cursor
	// Next — курсор следующей страницы, если она есть
	Next *Cursor
}

// HasNext сообщает, есть ли следующая страница.
func (p CatalogPage) HasNext() bool { return p.Next != nil }

// PrevQuery и NextQuery — параметры ссылок пагинации вместе с фильтрами.
func (p CatalogPage) PrevQuery() string {
	v := p.Filter.Query()
	p.Cursor.Prev().Encode(v)
	return v.Encode()
}

func (p CatalogPage) NextQuery() string {
	if p.Next == nil {
		return ""
	}
	v := p.Filter.Query()
	p.Next.Encode(v)
	return v.Encode()
}

// BorrowOption — что пользователь может сделать с книгой.
type BorrowOption int

const (
	// OptionUnavailable — нет свободных экземпляров и встать в очередь нельзя
	OptionUnavailable BorrowOption = iota
	// OptionBorrow — можно взять книгу
	OptionBorrow
	// OptionWaitlist — экземпляров нет, можно встать в очередь
	OptionWaitlist
	// OptionNotAvailableToYou — экземпляры есть, но у читателя не подключена доставка
	OptionNotAvailableToYou
)

// String возвращает ключ для шаблонов и перевода.
func (o BorrowOption) String() string {
	switch o {
	case OptionBorrow:
		return "borrow"
	case OptionWaitlist:
		return "waitlist"
	case OptionNotAvailableToYou:
		return "not_available_to_you"
	default:
		return "unavailable"
	}
}

// Actionable сообщает, что показывается кнопка действия.
func (o BorrowOption) Actionable() bool {
	return o == OptionBorrow || o == OptionWaitlist
}

// CanSelfBorrow сообщает, может ли пользователь оформлять выдачу сам:
// admin и librarian всегда, member — только с подключённой доставкой.
func CanSelfBorrow(u *model.User) bool {
	if u == nil {
		return false
	}
	if u.Role.Can(rbac.PermBorrowAlways) {
		return true
	}
	return u.Role == rbac.RoleMember && u.DeliveryService
}

// BorrowOptionFor решает, какое действие показать пользователю для книги.
func BorrowOptionFor(u *model.User, b model.Book) BorrowOption {
	can := CanSelfBorrow(u)
	switch {
	case can && b.Available():
		return OptionBorrow
	case can:
		return OptionWaitlist
	case b.Available():
		return OptionNotAvailableToYou
	default:
		return OptionUnavailable
	}
}

// FilterBooks — дополнительный фильтр простого списка книг по подстроке.
func FilterBooks(books []model.Book, text string) []model.Book {
	if strings.TrimSpace(text) == "" {
		return books
	}
	out := make([]model.Book, 0, len(books))
	for _, b := range books {
		if b.Matches(text) {
			out = append(out, b)
		}
	}
	return out
}

// CopyListQuery — параметры списка экземпляров.
type CopyListQuery struct {
	Search string
	Page   int
}

// CatalogService — каталог книг и экземпляров.
type CatalogService struct {
	api          CatalogAPI
	bookPageSize int
	copyPageSize int
	logger       *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(api CatalogAPI, bookPageSize, copyPageSize int, logger *slog.Logger) *CatalogService {
	if bookPageSize <= 0 {
		bookPageSize = 10
	}
	if copyPageSize <= 0 {
		copyPageSize = 10
	}
	return &CatalogService{
		api:          api,
		bookPageSize: bookPageSize,
		copyPageSize: copyPageSize,
		logger:       logger.With(slog.String("component", "catalog")),
	}
}

// Browse возвращает страницу каталога. Полная страница означает,
// что есть следующая; курсор сервера, если он есть, имеет приоритет.
func (s *CatalogService) Browse(ctx context.Context, f BookFilter, c Cursor) (*CatalogPage, error) {
	if f.PriceMin > 0 && f.PriceMax > 0 && f.PriceMin > f.PriceMax {
		return nil, fmt.Errorf("%w: минимальная цена больше максимальной", ErrValidation)
	}

	resp, err := s.api.SearchBooks(ctx, apiclient.BookQuery{
		Search:   f.Search,
		Title:    f.Title,
		Author:   f.Author,
		Category: f.Category,
		PriceMin: f.PriceMin,
		PriceMax: f.PriceMax,
		Year:     f.Year,
		LastID:   c.After,
		PageSize: s.bookPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("каталог: %w", err)
	}

	page := &CatalogPage{Books: resp.Books, Filter: f, Cursor: c}
	switch {
	case resp.NextCursor != "":
		next := c.Next(resp.NextCursor)
		page.Next = &next
	case len(resp.Books) >= s.bookPageSize:
		next := c.Next(resp.Books[len(resp.Books)-1].ID)
		page.Next = &next
	}
	return page, nil
}

// Books возвращает простой список книг с дополнительным фильтром по подстроке.
func (s *CatalogService) Books(ctx context.Context, text string) ([]model.Book, error) {
	books, err := s.api.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("список книг: %w", err)
	}
	return FilterBooks(books, text), nil
}

// Book возвращает книгу; отсутствие книги — ErrNotFound.
func (s *CatalogService) Book(ctx context.Context, id string) (*model.Book, error) {
	b, err := s.api.GetBook(ctx, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("книга %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("книга %s: %w", id, err)
	}
	return b, nil
}

// CreateBook проверяет форму и создаёт книгу.
func (s *CatalogService) CreateBook(ctx context.Context, in model.BookInput) (string, error) {
	in = trimBookInput(in)
	if err := validateStruct(in); err != nil {
		return "", err
	}
	id, err := s.api.CreateBook(ctx, in)
	if err != nil {
		return "", fmt.Errorf("создание книги: %w", err)
	}
	s.logger.Info("Книга создана", slog.String("book_id", id), slog.String("title", in.Title))
	return id, nil
}

// UpdateBook проверяет форму и изменяет книгу. Счётчик доступных
// экземпляров не передаётся: его ведёт сервер.
func (s *CatalogService) UpdateBook(ctx context.Context, id string, in model.BookInput) error {
	in = trimBookInput(in)
	if err := validateStruct(in); err != nil {
		return err
	}
	if err := s.api.UpdateBook(ctx, id, in); err != nil {
		if apiclient.IsNotFound(err) {
			return fmt.Errorf("книга %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("изменение книги %s: %w", id, err)
	}
	s.logger.Info("Книга изменена", slog.String("book_id", id))
	return nil
}

// DeleteBook удаляет книгу.
func (s *CatalogService) DeleteBook(ctx context.Context, id string) error {
	if err := s.api.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("удаление книги %s: %w", id, err)
	}
	s.logger.Info("Книга удалена", slog.String("book_id", id))
	return nil
}

// Stats возвращает статистику библиотеки.
func (s *CatalogService) Stats(ctx context.Context) (*model.LibraryStats, error) {
	st, err := s.api.LibraryStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("статистика библиотеки: %w", err)
	}
	return st, nil
}

// RequestBorrow оформляет выдачу или очередь от имени пользователя.
// Решение о доступности принимает BorrowOptionFor, здесь оно проверяется повторно.
func (s *CatalogService) RequestBorrow(ctx context.Context, u *model.User, b model.Book) (string, error) {
	if !BorrowOptionFor(u, b).Actionable() {
		return "", fmt.Errorf("%w: книга недоступна для выдачи этому пользователю", ErrValidation)
	}
	msg, err := s.api.RequestBorrow(ctx, b.ID)
	if err != nil {
		return "", fmt.Errorf("запрос выдачи книги %s: %w", b.ID, err)
	}
	s.logger.Info("Запрошена выдача книги",
		slog.String("book_id", b.ID),
		slog.String("user_id", u.ID),
	)
	return msg, nil
}

// Copies возвращает страницу экземпляров.
func (s *CatalogService) Copies(ctx context.Context, q CopyListQuery) (*apiclient.CopyPage, error) {
	page, err := s.api.ListCopies(ctx, apiclient.CopyQuery{
		Search:   strings.TrimSpace(q.Search),
		Page:     max(q.Page, 1),
		PageSize: s.copyPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("список экземпляров: %w", err)
	}
	return page, nil
}

// Copy возвращает экземпляр; отсутствие — ErrNotFound.
func (s *CatalogService) Copy(ctx context.Context, id string) (*model.BookCopy, error) {
	cp, err := s.api.GetCopy(ctx, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("экземпляр %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("экземпляр %s: %w", id, err)
	}
	return cp, nil
}

// CreateCopy проверяет форму и создаёт экземпляр.
func (s *CatalogService) CreateCopy(ctx context.Context, in model.CopyInput) (string, error) {
	in, err := normalizeCopyInput(in)
	if err != nil {
		return "", err
	}
	id, err := s.api.CreateCopy(ctx, in)
	if err != nil {
		return "", fmt.Errorf("создание экземпляра: %w", err)
	}
	s.logger.Info("Экземпляр создан", slog.String("copy_id", id), slog.String("barcode", in.Barcode))
	return id, nil
}

// UpdateCopy проверяет форму и изменяет экземпляр.
func (s *CatalogService) UpdateCopy(ctx context.Context, id string, in model.CopyInput) error {
	in, err := normalizeCopyInput(in)
	if err != nil {
		return err
	}
	if err := s.api.UpdateCopy(ctx, id, in); err != nil {
		return fmt.Errorf("изменение экземпляра %s: %w", id, err)
	}
	s.logger.Info("Экземпляр изменён", slog.String("copy_id", id))
	return nil
}

// DeleteCopy удаляет экземпляр.
func (s *CatalogService) DeleteCopy(ctx context.Context, id string) error {
	if err := s.api.DeleteCopy(ctx, id); err != nil {
		return fmt.Errorf("удаление экземпляра %s: %w", id, err)
	}
	s.logger.Info("Экземпляр удалён", slog.String("copy_id", id))
	return nil
}

// FindBorrowers ищет пользователей для выдачи экземпляра.
// Запросы короче двух символов не отправляются.
func (s *CatalogService) FindBorrowers(ctx context.Context, query string) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, nil
	}
	users, err := s.api.SearchUsers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("поиск пользователей: %w", err)
	}
	return users, nil
}

func trimBookInput(in model.BookInput) model.BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Category = strings.TrimSpace(in.Category)
	in.Edition = strings.TrimSpace(in.Edition)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Location = strings.TrimSpace(in.Location)
	in.Language = strings.TrimSpace(in.Language)
	in.CoverImageURL = strings.TrimSpace(in.CoverImageURL)
	in.EbookURL = strings.TrimSpace(in.EbookURL)
	return in
}

func normalizeCopyInput(in model.CopyInput) (model.CopyInput, error) {
	in.BookID = strings.TrimSpace(in.BookID)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Remarks = strings.TrimSpace(in.Remarks)
	in.Vendor = strings.TrimSpace(in.Vendor)
	in.Condition = model.Condition(strings.ToLower(strings.TrimSpace(string(in.Condition))))
	if err := validateStruct(in); err != nil {
		return in, err
	}
	return in, nil
}

func queryInt(v url.Values, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func setQuery(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}
