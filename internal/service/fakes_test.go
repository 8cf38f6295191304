package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLibrary — REST API библиотеки в памяти: записи о выдаче, книги,
// экземпляры, пользователи.
type fakeLibrary struct {
	mu sync.Mutex

	borrows []model.BorrowRecord
	// ignoreStatus — сервер игнорирует фильтр status (проверка разбиения)
	ignoreStatus bool
	listCalls    int
	searchCalls  int
	lastSearch   apiclient.BorrowSearch
	fine         float64
	fineErr      error
	returns      []apiclient.ReturnRequest
	lends        [][2]string

	books       map[string]model.Book
	nextBookID  int
	lastQuery   apiclient.BookQuery
	borrowReqs  []string
	copies      map[string]model.BookCopy
	users       []model.User
	roleChanges map[string]rbac.Role
	deleted     []string
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		books:       map[string]model.Book{},
		copies:      map[string]model.BookCopy{},
		roleChanges: map[string]rbac.Role{},
	}
}

// --- BorrowAPI ---

func (f *fakeLibrary) ListBorrows(_ context.Context, q apiclient.BorrowQuery) (*apiclient.BorrowList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var matched []model.BorrowRecord
	for _, r := range f.borrows {
		if f.ignoreStatus || r.Returned == q.Status.Returned() {
			matched = append(matched, r)
		}
	}
	return &apiclient.BorrowList{
		Total:   len(matched),
		Page:    q.Page,
		Limit:   q.Limit,
		Records: slicePage(matched, q.Page, q.Limit),
	}, nil
}

func (f *fakeLibrary) SearchBorrows(_ context.Context, q apiclient.BorrowSearch) ([]model.BorrowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastSearch = q

	var out []model.BorrowRecord
	for _, r := range f.borrows {
		if q.Barcode != "" && r.Barcode != q.Barcode {
			continue
		}
		if q.Username != "" && r.User != q.Username && r.Email != q.Username {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeLibrary) CalculateFine(_ context.Context, _ string) (float64, error) {
	if f.fineErr != nil {
		return 0, f.fineErr
	}
	return f.fine, nil
}

func (f *fakeLibrary) ReturnBorrow(_ context.Context, r apiclient.ReturnRequest) (*apiclient.ReturnReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returns = append(f.returns, r)

	for i := range f.borrows {
		if f.borrows[i].ID == r.BorrowID {
			f.borrows[i].Returned = true
			f.borrows[i].Condition = string(r.Condition)
			f.borrows[i].Remarks = r.Remarks
			status := "paid"
			if !r.FinePaid {
				status = "pending"
			}
			f.borrows[i].FinePaymentStatus = status
			return &apiclient.ReturnReceipt{Message: "Book returned", BorrowID: r.BorrowID, FinePaymentStatus: status}, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Message: "Borrow record not found"}
}

func (f *fakeLibrary) CreateBorrow(_ context.Context, userID, copyID string) (*apiclient.BorrowReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lends = append(f.lends, [2]string{userID, copyID})
	return &apiclient.BorrowReceipt{Message: "Book borrowed", BorrowID: "b-" + copyID}, nil
}

func (f *fakeLibrary) MemberSummary(_ context.Context, id string) (*model.MemberSummary, error) {
	if id == "ghost" {
		return nil, &apiclient.APIError{Status: 404, Message: "User not found"}
	}
	return &model.MemberSummary{User: id}, nil
}

func (f *fakeLibrary) BorrowHistory(_ context.Context, _ string, page, _ int) (*apiclient.HistoryPage, error) {
	return &apiclient.HistoryPage{Page: page}, nil
}

// --- CatalogAPI ---

func (f *fakeLibrary) SearchBooks(_ context.Context, q apiclient.BookQuery) (*apiclient.BookPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q

	ids := make([]string, 0, len(f.books))
	for id := range f.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []model.Book
	for _, id := range ids {
		if q.LastID != "" && id <= q.LastID {
			continue
		}
		if len(out) == q.PageSize {
			break
		}
		out = append(out, f.books[id])
	}
	return &apiclient.BookPage{Books: out}, nil
}

func (f *fakeLibrary) ListBooks(_ context.Context) ([]model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Book, 0, len(f.books))
	for _, b := range f.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLibrary) GetBook(_ context.Context, id string) (*model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return nil, &apiclient.APIError{Status: 404, Message: "Book not found"}
	}
	return &b, nil
}

func (f *fakeLibrary) CreateBook(_ context.Context, in model.BookInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBookID++
	id := fmt.Sprintf("b%03d", f.nextBookID)
	f.books[id] = bookFromInput(id, in)
	return id, nil
}

func (f *fakeLibrary) UpdateBook(_ context.Context, id string, in model.BookInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[id]; !ok {
		return &apiclient.APIError{Status: 404, Message: "Book not found"}
	}
	f.books[id] = bookFromInput(id, in)
	return nil
}

func (f *fakeLibrary) DeleteBook(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.books, id)
	return nil
}

func (f *fakeLibrary) LibraryStats(_ context.Context) (*model.LibraryStats, error) {
	return &model.LibraryStats{TotalBooks: len(f.books)}, nil
}

func (f *fakeLibrary) RequestBorrow(_ context.Context, bookID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.borrowReqs = append(f.borrowReqs, bookID)
	return "Book borrowed successfully", nil
}

func (f *fakeLibrary) ListCopies(_ context.Context, q apiclient.CopyQuery) (*apiclient.CopyPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BookCopy
	for _, c := range f.copies {
		if q.Search == "" || strings.Contains(c.Barcode, q.Search) {
			out = append(out, c)
		}
	}
	return &apiclient.CopyPage{Copies: out, Total: -1, Page: q.Page}, nil
}

func (f *fakeLibrary) GetCopy(_ context.Context, id string) (*model.BookCopy, error) {
	c, ok := f.copies[id]
	if !ok {
		return nil, &apiclient.APIError{Status: 404, Message: "Copy not found"}
	}
	return &c, nil
}

func (f *fakeLibrary) CreateCopy(_ context.Context, in model.CopyInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "c" + strconv.Itoa(len(f.copies)+1)
	f.copies[id] = model.BookCopy{ID: id, BookID: in.BookID, Barcode: in.Barcode, Condition: string(in.Condition), IsAvailable: true}
	return id, nil
}

func (f *fakeLibrary) UpdateCopy(_ context.Context, id string, in model.CopyInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.copies[id]
	c.Condition = string(in.Condition)
	c.Barcode = in.Barcode
	f.copies[id] = c
	return nil
}

func (f *fakeLibrary) DeleteCopy(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.copies, id)
	return nil
}

// --- UserAPI ---

func (f *fakeLibrary) SearchUsers(_ context.Context, query string) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if strings.Contains(u.Username, query) || strings.Contains(u.Email, query) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeLibrary) ListUsers(_ context.Context) (*apiclient.UserList, error) {
	return &apiclient.UserList{Users: f.users, Total: len(f.users)}, nil
}

func (f *fakeLibrary) UpdateUserRole(_ context.Context, userID string, role rbac.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleChanges[userID] = role
	return nil
}

func (f *fakeLibrary) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakeLibrary) DashboardSummary(_ context.Context) (*model.DashboardSummary, error) {
	return &model.DashboardSummary{TotalUsers: len(f.users)}, nil
}

func (f *fakeLibrary) ProfileByID(_ context.Context, userID string) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return &u, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Message: "User not found"}
}

func (f *fakeLibrary) UpdateProfile(_ context.Context, upd apiclient.ProfileUpdate) (*model.User, error) {
	return &model.User{ID: "me", FullName: upd.FullName, Phone: upd.Phone, Address: upd.Address}, nil
}

func (f *fakeLibrary) Register(_ context.Context, reg apiclient.Registration) (*model.User, error) {
	return &model.User{ID: "new", Username: reg.Username, Email: reg.Email, Role: rbac.RoleMember}, nil
}

func bookFromInput(id string, in model.BookInput) model.Book {
	return model.Book{
		ID:              id,
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Category:        in.Category,
		Edition:         in.Edition,
		Publisher:       in.Publisher,
		PublishedYear:   in.PublishedYear,
		Price:           in.Price,
		Location:        in.Location,
		Language:        in.Language,
		Pages:           in.Pages,
		CoverImageURL:   in.CoverImageURL,
		EbookURL:        in.EbookURL,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}
}
