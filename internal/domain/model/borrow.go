package model

import "time"

// BorrowStatus — фильтр записей о выдаче на стороне сервера.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
	BorrowOverdue  BorrowStatus = "overdue"
)

// Valid проверяет значение фильтра.
func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowActive, BorrowReturned, BorrowOverdue:
		return true
	}
	return false
}

// Returned сообщает, к какой половине (активные/возвращённые) относится фильтр.
func (s BorrowStatus) Returned() bool {
	return s == BorrowReturned
}

// BorrowRecord — запись о выдаче экземпляра пользователю.
// Поля собраны из ответов /borrow/records/ и /borrow/search/,
// которые называют одно и то же по-разному.
type BorrowRecord struct {
	ID                string    `json:"borrow_id"`
	User              string    `json:"user"`
	Email             string    `json:"email,omitempty"`
	Book              string    `json:"book"`
	Barcode           string    `json:"barcode"`
	BorrowDate        Timestamp `json:"borrow_date"`
	DueDate           Timestamp `json:"due_date"`
	ReturnDate        Timestamp `json:"return_date"`
	Returned          bool      `json:"returned"`
	Fine              float64   `json:"fine"`
	FinePaymentStatus string    `json:"fine_payment_status,omitempty"`
	Condition         string    `json:"condition,omitempty"`
	Remarks           string    `json:"remarks,omitempty"`
}

// Overdue сообщает, что невозвращённая запись просрочена на момент now.
func (r BorrowRecord) Overdue(now time.Time) bool {
	return !r.Returned && !r.DueDate.IsZero() && r.DueDate.Before(now)
}

// MemberBorrow — строка сводки «мои выдачи».
type MemberBorrow struct {
	BookTitle         string    `json:"book_title"`
	Barcode           string    `json:"barcode"`
	BorrowDate        Timestamp `json:"borrow_date"`
	DueDate           Timestamp `json:"due_date"`
	ReturnDate        Timestamp `json:"return_date"`
	Fine              float64   `json:"fine"`
	FinePaymentStatus string    `json:"fine_payment_status,omitempty"`
}

// MemberSummary — активные и возвращённые выдачи пользователя.
type MemberSummary struct {
	User          string         `json:"user"`
	ActiveBorrows []MemberBorrow `json:"active_borrows"`
	ReturnedBooks []MemberBorrow `json:"returned_books"`
}

// HistoryEntry — запись истории выдач пользователя.
type HistoryEntry struct {
	ID                string    `json:"_id"`
	BookTitle         string    `json:"book_title"`
	Barcode           string    `json:"barcode"`
	BorrowDate        Timestamp `json:"borrow_date"`
	DueDate           Timestamp `json:"due_date"`
	ReturnDate        Timestamp `json:"return_date"`
	Status            string    `json:"status"`
	Returned          bool      `json:"returned"`
	Fine              float64   `json:"fine"`
	ConditionOnReturn string    `json:"condition_on_return,omitempty"`
	Remarks           string    `json:"remarks,omitempty"`
}
