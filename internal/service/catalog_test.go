package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

func TestCursor_NextPrev(t *testing.T) {
	c := Cursor{}
	if c.HasPrev() {
		t.Fatal("первая страница не имеет предыдущей")
	}

	c2 := c.Next("b010")
	c3 := c2.Next("b020")
	if c3.After != "b020" || len(c3.History) != 2 {
		t.Fatalf("c3 = %+v", c3)
	}

	back := c3.Prev()
	if back.After != "b010" || len(back.History) != 1 {
		t.Errorf("Prev() = %+v, ожидалось After=b010", back)
	}
	first := back.Prev()
	if first.After != "" || first.HasPrev() {
		t.Errorf("возврат на первую страницу: %+v", first)
	}
	if len(c2.History) != 1 {
		t.Error("Next не должен менять историю исходного курсора")
	}
}

func TestCursor_EncodeDecode(t *testing.T) {
	c := Cursor{}.Next("b010").Next("b020")

	v := url.Values{"search": {"dune"}}
	c.Encode(v)
	if v.Get("prev") != "-,b010" || v.Get("after") != "b020" {
		t.Errorf("закодировано %v", v)
	}

	got := DecodeCursor(v)
	if got.After != c.After || fmt.Sprint(got.History) != fmt.Sprint(c.History) {
		t.Errorf("DecodeCursor = %+v, ожидалось %+v", got, c)
	}

	empty := DecodeCursor(url.Values{})
	if empty.After != "" || empty.HasPrev() {
		t.Errorf("пустые параметры дали %+v", empty)
	}
}

func seedBooks(api *fakeLibrary, n int) {
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("b%03d", i)
		api.books[id] = model.Book{ID: id, Title: fmt.Sprintf("Book %d", i), AvailableCopies: i % 2}
	}
}

func TestBrowse_CursorPagination(t *testing.T) {
	api := newFakeLibrary()
	seedBooks(api, 7)
	svc := NewCatalogService(api, 3, 10, testLogger())
	f := BookFilter{Search: "book", Category: "fiction", PriceMin: 100, PriceMax: 500, Year: 1999}

	p1, err := svc.Browse(context.Background(), f, Cursor{})
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if api.lastQuery.PageSize != 3 || api.lastQuery.LastID != "" || api.lastQuery.Category != "fiction" ||
		api.lastQuery.PriceMin != 100 || api.lastQuery.PriceMax != 500 || api.lastQuery.Year != 1999 {
		t.Errorf("запрос к API %+v", api.lastQuery)
	}
	if !p1.HasNext() || p1.Next.After != "b003" {
		t.Fatalf("страница 1: next=%+v", p1.Next)
	}

	p2, _ := svc.Browse(context.Background(), f, *p1.Next)
	if api.lastQuery.LastID != "b003" {
		t.Errorf("last_id = %q, ожидалось b003", api.lastQuery.LastID)
	}
	p3, _ := svc.Browse(context.Background(), f, *p2.Next)
	if len(p3.Books) != 1 || p3.HasNext() {
		t.Errorf("последняя страница: %d книг, next=%v", len(p3.Books), p3.HasNext())
	}
	if !p3.Cursor.HasPrev() || p3.Cursor.Prev().After != "b003" {
		t.Errorf("Prev с последней страницы: %+v", p3.Cursor.Prev())
	}

	q, _ := url.ParseQuery(p1.NextQuery())
	if q.Get("after") != "b003" || q.Get("category") != "fiction" {
		t.Errorf("NextQuery потерял фильтры или курсор: %v", q)
	}
}

func TestBrowse_InvalidPriceRange(t *testing.T) {
	svc := NewCatalogService(newFakeLibrary(), 3, 10, testLogger())
	_, err := svc.Browse(context.Background(), BookFilter{PriceMin: 500, PriceMax: 100}, Cursor{})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
}

func TestBookFilterFromQuery(t *testing.T) {
	v := url.Values{
		"search":         {" dune "},
		"author":         {"Herbert"},
		"price_min":      {"abc"},
		"price_max":      {"300"},
		"published_year": {"-5"},
	}
	f := BookFilterFromQuery(v)
	want := BookFilter{Search: "dune", Author: "Herbert", PriceMax: 300}
	if f != want {
		t.Errorf("BookFilterFromQuery = %+v, ожидалось %+v", f, want)
	}
	if f.Empty() || !(BookFilter{}).Empty() {
		t.Error("Empty() работает неверно")
	}
	if got := BookFilterFromQuery(f.Query()); got != f {
		t.Errorf("Query() → BookFilterFromQuery = %+v", got)
	}
}

func TestBorrowOptionFor(t *testing.T) {
	available := model.Book{AvailableCopies: 2}
	unavailable := model.Book{AvailableCopies: 0}
	member := &model.User{Role: rbac.RoleMember}
	memberDelivery := &model.User{Role: rbac.RoleMember, DeliveryService: true}
	librarian := &model.User{Role: rbac.RoleLibrarian}
	admin := &model.User{Role: rbac.RoleAdmin}

	tests := []struct {
		name string
		user *model.User
		book model.Book
		want BorrowOption
	}{
		{"member без доставки, книга доступна", member, available, OptionNotAvailableToYou},
		{"member без доставки, книги нет", member, unavailable, OptionUnavailable},
		{"member с доставкой, книга доступна", memberDelivery, available, OptionBorrow},
		{"member с доставкой, книги нет", memberDelivery, unavailable, OptionWaitlist},
		{"librarian, книга доступна", librarian, available, OptionBorrow},
		{"admin, книги нет", admin, unavailable, OptionWaitlist},
		{"без пользователя", nil, available, OptionNotAvailableToYou},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BorrowOptionFor(tt.user, tt.book); got != tt.want {
				t.Errorf("BorrowOptionFor = %s, ожидалось %s", got, tt.want)
			}
		})
	}
}

func TestFilterBooks(t *testing.T) {
	books := []model.Book{
		{ID: "1", Title: "Dune", Author: "Frank Herbert"},
		{ID: "2", Title: "Emma", Author: "Jane Austen", Language: "English"},
		{ID: "3", Title: "Война и мир", Author: "Лев Толстой", Publisher: "Эксмо"},
	}
	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"austen", 1},
		{"ЭКСМО", 1},
		{"e", 2},
		{"xyz", 0},
	}
	for _, tt := range tests {
		if got := FilterBooks(books, tt.query); len(got) != tt.want {
			t.Errorf("FilterBooks(%q): %d книг, ожидалось %d", tt.query, len(got), tt.want)
		}
	}
}

func TestCreateBook_RoundTrip(t *testing.T) {
	api := newFakeLibrary()
	svc := NewCatalogService(api, 10, 10, testLogger())

	in := model.BookInput{
		Title:         " Dune ",
		Author:        "Frank Herbert",
		ISBN:          "978-0441013593",
		Category:      "Sci-Fi",
		Publisher:     "Ace",
		PublishedYear: 1965,
		Price:         450,
		Language:      "English",
		Pages:         412,
		TotalCopies:   3,
	}
	id, err := svc.CreateBook(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := svc.Book(context.Background(), id)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	in.Title = "Dune"
	if model.InputFrom(*got) != in {
		t.Errorf("прочитано %+v, ожидалось %+v", model.InputFrom(*got), in)
	}
}

func TestCreateBook_Validation(t *testing.T) {
	api := newFakeLibrary()
	svc := NewCatalogService(api, 10, 10, testLogger())

	_, err := svc.CreateBook(context.Background(), model.BookInput{Author: "X", PublishedYear: 12, CoverImageURL: "not a url"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидалась ValidationError, получено %v", err)
	}
	for _, field := range []string{"Title", "PublishedYear", "CoverImageURL"} {
		if !verr.Has(field) {
			t.Errorf("поле %s должно быть в ошибке: %v", field, verr.Fields)
		}
	}
	if len(api.books) != 0 {
		t.Error("при ошибке валидации книга не должна создаваться")
	}
}

func TestBook_NotFound(t *testing.T) {
	svc := NewCatalogService(newFakeLibrary(), 10, 10, testLogger())
	if _, err := svc.Book(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if err := svc.UpdateBook(context.Background(), "missing", model.BookInput{Title: "T", Author: "A"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateBook: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestRequestBorrow(t *testing.T) {
	api := newFakeLibrary()
	svc := NewCatalogService(api, 10, 10, testLogger())
	book := model.Book{ID: "b001", AvailableCopies: 2}

	_, err := svc.RequestBorrow(context.Background(), &model.User{ID: "u1", Role: rbac.RoleMember}, book)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("member без доставки: ожидалась ErrValidation, получено %v", err)
	}
	if len(api.borrowReqs) != 0 {
		t.Error("запрос не должен уходить на сервер")
	}

	msg, err := svc.RequestBorrow(context.Background(), &model.User{ID: "u2", Role: rbac.RoleMember, DeliveryService: true}, book)
	if err != nil || msg == "" {
		t.Fatalf("RequestBorrow: %q, %v", msg, err)
	}
	if api.borrowReqs[0] != "b001" {
		t.Errorf("запрошена книга %v", api.borrowReqs)
	}
}

func TestCopies_CRUD(t *testing.T) {
	api := newFakeLibrary()
	svc := NewCatalogService(api, 10, 10, testLogger())
	ctx := context.Background()

	if _, err := svc.CreateCopy(ctx, model.CopyInput{BookID: "b001", Barcode: "BC-1", Condition: "damaged"}); !errors.Is(err, ErrValidation) {
		t.Errorf("damaged недопустимо для экземпляра: %v", err)
	}

	id, err := svc.CreateCopy(ctx, model.CopyInput{BookID: "b001", Barcode: " BC-1 ", Condition: "Good"})
	if err != nil {
		t.Fatalf("CreateCopy: %v", err)
	}
	cp, err := svc.Copy(ctx, id)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if cp.Barcode != "BC-1" || cp.Condition != "good" {
		t.Errorf("экземпляр %+v", cp)
	}

	if err := svc.UpdateCopy(ctx, id, model.CopyInput{BookID: "b001", Barcode: "BC-1", Condition: "poor"}); err != nil {
		t.Fatalf("UpdateCopy: %v", err)
	}
	page, err := svc.Copies(ctx, CopyListQuery{Search: "BC"})
	if err != nil || len(page.Copies) != 1 || page.Copies[0].Condition != "poor" {
		t.Fatalf("Copies: %+v, %v", page, err)
	}

	if err := svc.DeleteCopy(ctx, id); err != nil {
		t.Fatalf("DeleteCopy: %v", err)
	}
	if _, err := svc.Copy(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("после удаления ожидалась ErrNotFound, получено %v", err)
	}
}

func TestFindBorrowers(t *testing.T) {
	api := newFakeLibrary()
	api.users = []model.User{{ID: "u1", Username: "ann", Email: "ann@example.com"}, {ID: "u2", Username: "bob", Email: "bob@example.com"}}
	svc := NewCatalogService(api, 10, 10, testLogger())

	if users, _ := svc.FindBorrowers(context.Background(), "a"); users != nil {
		t.Error("запрос из одного символа не отправляется")
	}
	users, err := svc.FindBorrowers(context.Background(), "bob")
	if err != nil || len(users) != 1 || users[0].ID != "u2" {
		t.Errorf("FindBorrowers: %+v, %v", users, err)
	}
}
