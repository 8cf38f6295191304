// borrows.go — записи о выдаче: активные и возвращённые, поиск, штраф, возврат.
//
// Списки пагинируются на стороне сервера (status + page + limit).
// Ответ всё равно делится по флагу returned: запись, попавшая не в свою
// половину, отбрасывается и логируется. Поиск сервер не пагинирует —
// результаты нарезаются страницами того же размера.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
)

// BorrowAPI — операции REST API над записями о выдаче.
type BorrowAPI interface {
	ListBorrows(ctx context.Context, q apiclient.BorrowQuery) (*apiclient.BorrowList, error)
	SearchBorrows(ctx context.Context, q apiclient.BorrowSearch) ([]model.BorrowRecord, error)
	CalculateFine(ctx context.Context, borrowID string) (float64, error)
	ReturnBorrow(ctx context.Context, r apiclient.ReturnRequest) (*apiclient.ReturnReceipt, error)
	CreateBorrow(ctx context.Context, userID, copyID string) (*apiclient.BorrowReceipt, error)
	MemberSummary(ctx context.Context, userIdentifier string) (*model.MemberSummary, error)
	BorrowHistory(ctx context.Context, userID string, page, limit int) (*apiclient.HistoryPage, error)
}

// SearchMode — по какому полю искать записи.
type SearchMode string

const (
	SearchByBarcode SearchMode = "barcode"
	SearchByUser    SearchMode = "user"
)

// ParseSearchMode возвращает режим поиска; по умолчанию — штрихкод.
func ParseSearchMode(s string) SearchMode {
	if SearchMode(strings.ToLower(strings.TrimSpace(s))) == SearchByUser {
		return SearchByUser
	}
	return SearchByBarcode
}

// BorrowPage — страница записей одной половины (активные или возвращённые).
type BorrowPage struct {
	Status   model.BorrowStatus
	Records  []model.BorrowRecord
	Page     int
	PageSize int
	Total    int
}

// TotalPages возвращает число страниц (не меньше 1).
func (p BorrowPage) TotalPages() int {
	if p.PageSize <= 0 || p.Total <= p.PageSize {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasPrev сообщает, есть ли предыдущая страница.
func (p BorrowPage) HasPrev() bool { return p.Page > 1 }

// HasNext сообщает, есть ли следующая страница.
func (p BorrowPage) HasNext() bool { return p.Page < p.TotalPages() }

// SearchQuery — запрос поиска по записям.
type SearchQuery struct {
	Text   string
	Mode   SearchMode
	Status model.BorrowStatus
	Page   int
}

// FineState — известен ли штраф.
type FineState int

const (
	// FineUnknown — сервер не смог рассчитать штраф, сумма не показывается
	FineUnknown FineState = iota
	// FineKnown — сумма получена от сервера
	FineKnown
)

// FineQuote — результат расчёта штрафа. При ошибке State=FineUnknown,
// Amount не заполняется: ноль вместо неизвестной суммы не показывается.
type FineQuote struct {
	BorrowID string
	State    FineState
	Amount   float64
	Err      error
}

// Known сообщает, что сумма получена.
func (q FineQuote) Known() bool { return q.State == FineKnown }

// ReturnInput — данные формы подтверждения возврата.
type ReturnInput struct {
	BorrowID  string
	Condition string
	Remarks   string
	FinePaid  bool
	// Page — страница активных записей, которую нужно перечитать после возврата
	Page int
}

// ReturnOutcome — результат возврата. Active — перечитанная страница активных
// записей; если перечитать не удалось, Active=nil и RefetchErr заполнен.
type ReturnOutcome struct {
	Receipt    *apiclient.ReturnReceipt
	Active     *BorrowPage
	RefetchErr error
}

// LendInput — выдача экземпляра пользователю.
type LendInput struct {
	UserID string `validate:"required"`
	CopyID string `validate:"required"`
}

// BorrowService — сценарии работы с записями о выдаче.
type BorrowService struct {
	api      BorrowAPI
	pageSize int
	logger   *slog.Logger
}

// NewBorrowService создаёт сервис. pageSize — размер страницы списков.
func NewBorrowService(api BorrowAPI, pageSize int, logger *slog.Logger) *BorrowService {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &BorrowService{
		api:      api,
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "borrows")),
	}
}

// PageSize возвращает размер страницы.
func (s *BorrowService) PageSize() int { return s.pageSize }

// Partition делит записи по флагу returned. Каждая запись попадает ровно
// в одну половину, порядок внутри половин сохраняется.
func Partition(records []model.BorrowRecord) (active, returned []model.BorrowRecord) {
	active = make([]model.BorrowRecord, 0, len(records))
	returned = make([]model.BorrowRecord, 0, len(records))
	for _, r := range records {
		if r.Returned {
			returned = append(returned, r)
		} else {
			active = append(active, r)
		}
	}
	return active, returned
}

// ListActive возвращает страницу невозвращённых записей.
func (s *BorrowService) ListActive(ctx context.Context, page int) (*BorrowPage, error) {
	return s.List(ctx, model.BorrowActive, page)
}

// ListReturned возвращает страницу возвращённых записей.
func (s *BorrowService) ListReturned(ctx context.Context, page int) (*BorrowPage, error) {
	return s.List(ctx, model.BorrowReturned, page)
}

// List возвращает страницу записей с серверным фильтром status.
// Overdue относится к активной половине.
func (s *BorrowService) List(ctx context.Context, status model.BorrowStatus, page int) (*BorrowPage, error) {
	if !status.Valid() {
		status = model.BorrowActive
	}
	page = max(page, 1)

	resp, err := s.api.ListBorrows(ctx, apiclient.BorrowQuery{
		Status: status,
		Page:   page,
		Limit:  s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("список выдач (%s): %w", status, err)
	}

	kept := s.keepSide(status, resp.Records)
	total := resp.Total
	if total < (page-1)*s.pageSize+len(kept) {
		total = (page-1)*s.pageSize + len(kept)
	}

	return &BorrowPage{
		Status:   status,
		Records:  kept,
		Page:     page,
		PageSize: s.pageSize,
		Total:    total,
	}, nil
}

// Search ищет записи по штрихкоду или пользователю (username или email).
// Пустой текст запроса — обычный список с фильтром status.
func (s *BorrowService) Search(ctx context.Context, q SearchQuery) (*BorrowPage, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return s.List(ctx, q.Status, q.Page)
	}
	status := q.Status
	if !status.Valid() {
		status = model.BorrowActive
	}

	search := apiclient.BorrowSearch{Status: status}
	if q.Mode == SearchByUser {
		search.Username = text
	} else {
		search.Barcode = text
	}

	records, err := s.api.SearchBorrows(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("поиск выдач: %w", err)
	}

	kept := s.keepSide(status, records)
	page := max(q.Page, 1)
	return &BorrowPage{
		Status:   status,
		Records:  slicePage(kept, page, s.pageSize),
		Page:     page,
		PageSize: s.pageSize,
		Total:    len(kept),
	}, nil
}

// CalculateFine запрашивает штраф у сервера. Ошибка не превращается в ноль:
// возвращается FineUnknown, интерфейс предлагает повторить расчёт.
func (s *BorrowService) CalculateFine(ctx context.Context, borrowID string) FineQuote {
	quote := FineQuote{BorrowID: borrowID, State: FineUnknown}
	if strings.TrimSpace(borrowID) == "" {
		quote.Err = fmt.Errorf("%w: не указан идентификатор выдачи", ErrValidation)
		return quote
	}

	amount, err := s.api.CalculateFine(ctx, borrowID)
	if err != nil {
		s.logger.Warn("Штраф не рассчитан",
			slog.String("borrow_id", borrowID),
			slog.String("error", err.Error()),
		)
		quote.Err = fmt.Errorf("расчёт штрафа: %w", err)
		return quote
	}

	quote.State = FineKnown
	quote.Amount = amount
	return quote
}

// ConfirmReturn проверяет форму, подтверждает возврат и перечитывает
// страницу активных записей. Оптимистичного обновления нет.
func (s *BorrowService) ConfirmReturn(ctx context.Context, in ReturnInput) (*ReturnOutcome, error) {
	req := apiclient.ReturnRequest{
		BorrowID: strings.TrimSpace(in.BorrowID),
		Remarks:  strings.TrimSpace(in.Remarks),
		FinePaid: in.FinePaid,
	}
	if strings.TrimSpace(in.Condition) == "" {
		req.Condition = model.ConditionGood
	} else {
		cond, err := model.ParseCondition(in.Condition)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		req.Condition = cond
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	receipt, err := s.api.ReturnBorrow(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("возврат %s: %w", req.BorrowID, err)
	}

	s.logger.Info("Возврат подтверждён",
		slog.String("borrow_id", req.BorrowID),
		slog.String("condition", string(req.Condition)),
		slog.Bool("fine_paid", req.FinePaid),
	)

	outcome := &ReturnOutcome{Receipt: receipt}
	active, err := s.ListActive(ctx, in.Page)
	if err != nil {
		outcome.RefetchErr = err
		return outcome, nil
	}
	// Страница могла опустеть после возврата последней записи на ней
	if len(active.Records) == 0 && active.Page > 1 {
		if prev, prevErr := s.ListActive(ctx, active.Page-1); prevErr == nil {
			active = prev
		}
	}
	outcome.Active = active
	return outcome, nil
}

// Lend оформляет выдачу экземпляра пользователю.
func (s *BorrowService) Lend(ctx context.Context, in LendInput) (*apiclient.BorrowReceipt, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.CopyID = strings.TrimSpace(in.CopyID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	receipt, err := s.api.CreateBorrow(ctx, in.UserID, in.CopyID)
	if err != nil {
		return nil, fmt.Errorf("выдача экземпляра %s: %w", in.CopyID, err)
	}
	s.logger.Info("Экземпляр выдан",
		slog.String("copy_id", in.CopyID),
		slog.String("user_id", in.UserID),
		slog.String("borrow_id", receipt.BorrowID),
	)
	return receipt, nil
}

// MemberSummary возвращает активные и возвращённые выдачи пользователя.
// Пустой identifier — текущий пользователь.
func (s *BorrowService) MemberSummary(ctx context.Context, identifier string) (*model.MemberSummary, error) {
	summary, err := s.api.MemberSummary(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("сводка выдач: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("сводка выдач: %w", err)
	}
	return summary, nil
}

// History возвращает страницу истории выдач пользователя.
func (s *BorrowService) History(ctx context.Context, userID string, page int) (*apiclient.HistoryPage, error) {
	page = max(page, 1)
	hist, err := s.api.BorrowHistory(ctx, userID, page, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("история выдач: %w", err)
	}
	if hist.Page == 0 {
		hist.Page = page
	}
	if hist.Limit == 0 {
		hist.Limit = s.pageSize
	}
	return hist, nil
}

// keepSide оставляет записи половины, соответствующей status.
func (s *BorrowService) keepSide(status model.BorrowStatus, records []model.BorrowRecord) []model.BorrowRecord {
	active, returned := Partition(records)
	kept, dropped := active, returned
	if status.Returned() {
		kept, dropped = returned, active
	}
	if len(dropped) > 0 {
		s.logger.Warn("Сервер вернул записи другой половины, они отброшены",
			slog.String("status", string(status)),
			slog.Int("dropped", len(dropped)),
		)
	}
	return kept
}

// slicePage возвращает страницу page (с 1) из уже полученного списка.
func slicePage[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}
