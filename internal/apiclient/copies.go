package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
)

// CopyQuery — фильтры списка экземпляров.
type CopyQuery struct {
	Search    string
	Available *bool
	Page      int
	PageSize  int
}

// CopyPage — страница экземпляров.
type CopyPage struct {
	Copies []model.BookCopy
	// Total — общее число, если сервер его сообщил (иначе -1)
	Total int
	Page  int
	// HasNext — есть ли следующая страница
	HasNext bool
}

// ListCopies возвращает страницу экземпляров.
func (c *Client) ListCopies(ctx context.Context, q CopyQuery) (*CopyPage, error) {
	page := max(q.Page, 1)
	v := url.Values{}
	setString(v, "search", q.Search)
	setInt(v, "page", page)
	setInt(v, "page_size", q.PageSize)
	if q.Available != nil {
		v.Set("is_available", strconv.FormatBool(*q.Available))
	}

	var body listBody[model.BookCopy]
	if _, err := c.Do(ctx, http.MethodGet, "/copies/", v, nil, &body); err != nil {
		return nil, err
	}

	result := &CopyPage{Copies: body.Items, Total: -1, Page: page}
	switch {
	case body.TotalPages > 0:
		result.Total = body.Total
		result.HasNext = page < body.TotalPages
	case q.PageSize > 0:
		// Сервер не сообщает общее число: полная страница означает, что дальше ещё есть
		result.HasNext = len(body.Items) >= q.PageSize
	}
	return result, nil
}

// GetCopy возвращает экземпляр по идентификатору.
func (c *Client) GetCopy(ctx context.Context, id string) (*model.BookCopy, error) {
	var cp model.BookCopy
	if _, err := c.Do(ctx, http.MethodGet, "/copies/"+url.PathEscape(id)+"/", nil, nil, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// CreateCopy создаёт экземпляр и возвращает его идентификатор.
func (c *Client) CreateCopy(ctx context.Context, in model.CopyInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if _, err := c.Do(ctx, http.MethodPost, "/copies/create/", nil, in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// copyUpdate — тело PUT экземпляра: пустые примечание и поставщик
// отправляются явно, иначе сервер оставит старые значения.
type copyUpdate struct {
	BookID    string          `json:"book_id"`
	Barcode   string          `json:"barcode"`
	Condition model.Condition `json:"condition"`
	Remarks   string          `json:"remarks"`
	Vendor    string          `json:"vendor"`
	IsDamaged bool            `json:"is_damaged"`
}

// UpdateCopy изменяет экземпляр.
func (c *Client) UpdateCopy(ctx context.Context, id string, in model.CopyInput) error {
	body := copyUpdate{
		BookID:    in.BookID,
		Barcode:   in.Barcode,
		Condition: in.Condition,
		Remarks:   in.Remarks,
		Vendor:    in.Vendor,
		IsDamaged: in.IsDamaged,
	}
	_, err := c.Do(ctx, http.MethodPut, "/copies/"+url.PathEscape(id)+"/update/", nil, body, nil)
	return err
}

// DeleteCopy удаляет экземпляр.
func (c *Client) DeleteCopy(ctx context.Context, id string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/copies/"+url.PathEscape(id)+"/delete/", nil, nil, nil)
	return err
}
