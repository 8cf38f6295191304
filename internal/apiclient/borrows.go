package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
)

// BorrowQuery — параметры /borrow/records/.
type BorrowQuery struct {
	Status model.BorrowStatus
	UserID string
	BookID string
	Page   int
	Limit  int
}

// BorrowList — страница записей о выдаче.
type BorrowList struct {
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Records []model.BorrowRecord `json:"records"`
}

// BorrowSearch — параметры /borrow/search/. Username принимает и email.
type BorrowSearch struct {
	Username string
	Barcode  string
	Status   model.BorrowStatus
}

// BorrowReceipt — ответ на оформление выдачи.
type BorrowReceipt struct {
	Message   string          `json:"message"`
	BorrowID  string          `json:"borrow_id"`
	BookTitle string          `json:"book_title"`
	Barcode   string          `json:"barcode"`
	DueDate   model.Timestamp `json:"due_date"`
}

// ReturnRequest — подтверждение возврата.
type ReturnRequest struct {
	BorrowID  string          `json:"borrow_id" validate:"required"`
	Condition model.Condition `json:"condition" validate:"required,oneof=excellent good fair poor damaged"`
	Remarks   string          `json:"remarks" validate:"max=500"`
	FinePaid  bool            `json:"fine_paid"`
}

// ReturnReceipt — ответ на возврат.
type ReturnReceipt struct {
	Message           string  `json:"message"`
	BorrowID          string  `json:"borrow_id"`
	Fine              float64 `json:"fine"`
	FinePaymentStatus string  `json:"fine_payment_status"`
}

// HistoryPage — страница истории выдач пользователя.
type HistoryPage struct {
	Records []model.HistoryEntry `json:"records"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
}

// CreateBorrow оформляет выдачу экземпляра пользователю.
func (c *Client) CreateBorrow(ctx context.Context, userID, copyID string) (*BorrowReceipt, error) {
	var out BorrowReceipt
	payload := map[string]string{"user_id": userID, "copy_id": copyID}
	if _, err := c.Do(ctx, http.MethodPost, "/borrow/create/", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestBorrow — запрос выдачи или постановки в очередь от имени текущего
// пользователя: сервер сам выбирает экземпляр книги.
func (c *Client) RequestBorrow(ctx context.Context, bookID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	payload := map[string]string{"book_id": bookID}
	if _, err := c.Do(ctx, http.MethodPost, "/borrow/create/", nil, payload, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ReturnBorrow подтверждает возврат.
func (c *Client) ReturnBorrow(ctx context.Context, r ReturnRequest) (*ReturnReceipt, error) {
	var out ReturnReceipt
	if _, err := c.Do(ctx, http.MethodPut, "/borrow/return/", nil, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBorrows возвращает страницу записей о выдаче.
func (c *Client) ListBorrows(ctx context.Context, q BorrowQuery) (*BorrowList, error) {
	v := url.Values{}
	setString(v, "status", string(q.Status))
	setString(v, "user_id", q.UserID)
	setString(v, "book_id", q.BookID)
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)

	var out BorrowList
	if _, err := c.Do(ctx, http.MethodGet, "/borrow/records/", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// searchRecord — в результатах поиска состояние называется condition_on_return.
type searchRecord struct {
	model.BorrowRecord
	ConditionOnReturn string `json:"condition_on_return"`
}

// SearchBorrows ищет записи по пользователю или штрихкоду.
func (c *Client) SearchBorrows(ctx context.Context, q BorrowSearch) ([]model.BorrowRecord, error) {
	v := url.Values{}
	setString(v, "username", q.Username)
	setString(v, "barcode", q.Barcode)
	setString(v, "status", string(q.Status))

	var out struct {
		Count   int            `json:"count"`
		Results []searchRecord `json:"results"`
	}
	if _, err := c.Do(ctx, http.MethodGet, "/borrow/search/", v, nil, &out); err != nil {
		return nil, err
	}

	records := make([]model.BorrowRecord, 0, len(out.Results))
	for _, r := range out.Results {
		rec := r.BorrowRecord
		if rec.Condition == "" {
			rec.Condition = r.ConditionOnReturn
		}
		records = append(records, rec)
	}
	return records, nil
}

// CalculateFine запрашивает у сервера штраф по записи.
func (c *Client) CalculateFine(ctx context.Context, borrowID string) (float64, error) {
	var out struct {
		BorrowID string  `json:"borrow_id"`
		Fine     float64 `json:"fine"`
	}
	payload := map[string]string{"borrow_id": borrowID}
	if _, err := c.Do(ctx, http.MethodPost, "/borrow/calculate-fine/", nil, payload, &out); err != nil {
		return 0, err
	}
	return out.Fine, nil
}

// MemberSummary возвращает активные и возвращённые выдачи.
// Пустой userIdentifier — текущий пользователь; иначе username или email.
func (c *Client) MemberSummary(ctx context.Context, userIdentifier string) (*model.MemberSummary, error) {
	path := "/borrow/member-summary/"
	if userIdentifier != "" {
		path += url.PathEscape(userIdentifier) + "/"
	}
	var out model.MemberSummary
	if _, err := c.Do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BorrowHistory возвращает историю выдач пользователя.
func (c *Client) BorrowHistory(ctx context.Context, userID string, page, limit int) (*HistoryPage, error) {
	v := url.Values{}
	setString(v, "user_id", userID)
	setInt(v, "page", page)
	setInt(v, "limit", limit)

	var out HistoryPage
	if _, err := c.Do(ctx, http.MethodGet, "/borrow/borrow-history/", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
