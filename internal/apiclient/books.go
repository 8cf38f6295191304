package apiclient

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
)

// BookQuery — фильтры и курсор каталога. Пустые поля не передаются.
type BookQuery struct {
	Search   string
	Title    string
	Author   string
	Category string
	PriceMin int
	PriceMax int
	Year     int
	// LastID — идентификатор последней книги предыдущей страницы
	LastID   string
	PageSize int
}

func (q BookQuery) values() url.Values {
	v := url.Values{}
	setString(v, "search", q.Search)
	setString(v, "title", q.Title)
	setString(v, "author", q.Author)
	setString(v, "category", q.Category)
	setInt(v, "price_min", q.PriceMin)
	setInt(v, "price_max", q.PriceMax)
	setInt(v, "published_year", q.Year)
	setString(v, "last_id", q.LastID)
	setInt(v, "page_size", q.PageSize)
	return v
}

// BookPage — страница каталога.
type BookPage struct {
	Books []model.Book
	// NextCursor — курсор, если его вернул сервер
	NextCursor string
}

// SearchBooks возвращает страницу каталога с фильтрами и курсором.
func (c *Client) SearchBooks(ctx context.Context, q BookQuery) (*BookPage, error) {
	var body listBody[model.Book]
	if _, err := c.Do(ctx, http.MethodGet, "/books/search/", q.values(), nil, &body); err != nil {
		return nil, err
	}
	return &BookPage{Books: body.Items, NextCursor: body.NextCursor}, nil
}

// ListBooks возвращает список книг главной страницы (без фильтров).
func (c *Client) ListBooks(ctx context.Context) ([]model.Book, error) {
	var body listBody[model.Book]
	if _, err := c.Do(ctx, http.MethodGet, "/books/", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// GetBook возвращает книгу по идентификатору.
func (c *Client) GetBook(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	if _, err := c.Do(ctx, http.MethodGet, "/books/"+url.PathEscape(id)+"/", nil, nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// CreateBook создаёт книгу и возвращает её идентификатор.
func (c *Client) CreateBook(ctx context.Context, in model.BookInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if _, err := c.Do(ctx, http.MethodPost, "/books/create/", nil, in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// bookUpdate — тело PUT книги. Сервер меняет только присланные ключи,
// поэтому очищенные поля формы уходят явно.
type bookUpdate struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	Category      string `json:"category"`
	Edition       string `json:"edition"`
	Publisher     string `json:"publisher"`
	PublishedYear int    `json:"published_year"`
	Price         int    `json:"price"`
	Location      string `json:"location"`
	Language      string `json:"language"`
	Pages         int    `json:"no_of_pages"`
	CoverImageURL string `json:"cover_image_url"`
	EbookURL      string `json:"ebook_url"`
	TotalCopies   int    `json:"total_copies"`
}

// UpdateBook изменяет книгу; отправляются все поля формы.
func (c *Client) UpdateBook(ctx context.Context, id string, in model.BookInput) error {
	body := bookUpdate{
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		Category:      in.Category,
		Edition:       in.Edition,
		Publisher:     in.Publisher,
		PublishedYear: in.PublishedYear,
		Price:         in.Price,
		Location:      in.Location,
		Language:      in.Language,
		Pages:         in.Pages,
		CoverImageURL: in.CoverImageURL,
		EbookURL:      in.EbookURL,
		TotalCopies:   in.TotalCopies,
	}
	_, err := c.Do(ctx, http.MethodPut, "/books/"+url.PathEscape(id)+"/update/", nil, body, nil)
	return err
}

// DeleteBook удаляет книгу.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/books/"+url.PathEscape(id)+"/delete/", nil, nil, nil)
	return err
}

// LibraryStats возвращает сводную статистику каталога.
func (c *Client) LibraryStats(ctx context.Context) (*model.LibraryStats, error) {
	var stats model.LibraryStats
	if _, err := c.Do(ctx, http.MethodGet, "/library_stats/", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UploadBooks отправляет CSV-файл на массовую загрузку и возвращает id задачи.
func (c *Client) UploadBooks(ctx context.Context, filename string, csv io.Reader) (string, error) {
	body, contentType, err := multipartFile("file", filename, csv)
	if err != nil {
		return "", err
	}
	req := newRequest(http.MethodPost, "/admin/upload-books/", nil)
	req.body = body
	req.contentType = contentType

	var out struct {
		TaskID string `json:"task_id"`
	}
	if _, err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", &APIError{Status: http.StatusBadGateway, Message: "сервер не вернул task_id"}
	}
	return out.TaskID, nil
}

// UploadProgress возвращает прогресс задачи массовой загрузки.
func (c *Client) UploadProgress(ctx context.Context, taskID string) (*model.UploadTask, error) {
	var task model.UploadTask
	path := "/admin/upload-progress/" + url.PathEscape(taskID) + "/"
	if _, err := c.Do(ctx, http.MethodGet, path, nil, nil, &task); err != nil {
		return nil, err
	}
	if task.ID == "" {
		task.ID = taskID
	}
	return &task, nil
}

// multipartFile собирает тело multipart/form-data с одним файлом.
// Тело буферизуется целиком, чтобы его можно было отправить повторно.
func multipartFile(field, filename string, r io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func setString(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int) {
	if val > 0 {
		v.Set(key, strconv.Itoa(val))
	}
}
