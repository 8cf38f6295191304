package model

import "strings"

// Book — книга каталога.
type Book struct {
	// ID — идентификатор книги (ObjectId сервера)
	ID string `json:"id"`
	// Title — название
	Title string `json:"title"`
	// Author — автор
	Author string `json:"author"`
	// ISBN — ISBN (опционально)
	ISBN string `json:"isbn,omitempty"`
	// Category — категория (опционально)
	Category string `json:"category,omitempty"`
	// Edition — издание (опционально)
	Edition string `json:"edition,omitempty"`
	// Publisher — издательство (опционально)
	Publisher string `json:"publisher,omitempty"`
	// PublishedYear — год издания, 0 — не указан
	PublishedYear int `json:"published_year,omitempty"`
	// Price — цена для библиотеки, 0 — не указана
	Price int `json:"price,omitempty"`
	// Location — место на полке
	Location string `json:"location,omitempty"`
	// Language — язык
	Language string `json:"language,omitempty"`
	// Pages — количество страниц
	Pages int `json:"no_of_pages,omitempty"`
	// CoverImageURL — обложка
	CoverImageURL string `json:"cover_image_url,omitempty"`
	// EbookURL — электронная версия
	EbookURL string `json:"ebook_url,omitempty"`
	// TotalCopies — всего экземпляров (вычисляется сервером)
	TotalCopies int `json:"total_copies"`
	// AvailableCopies — доступно экземпляров (вычисляется сервером)
	AvailableCopies int `json:"available_copies"`
	// Waitlist — очередь ожидания (идентификаторы пользователей)
	Waitlist []string `json:"waitlist,omitempty"`
	// CreatedAt — время добавления
	CreatedAt Timestamp `json:"created_at"`
}

// Available сообщает, есть ли свободные экземпляры.
func (b Book) Available() bool {
	return b.AvailableCopies > 0
}

// Matches проверяет вхождение подстроки (без учёта регистра) в название,
// автора, ISBN, категорию, издательство или язык.
func (b Book) Matches(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return true
	}
	for _, field := range []string{b.Title, b.Author, b.ISBN, b.Category, b.Publisher, b.Language} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

// BookInput — поля формы создания/редактирования книги.
// AvailableCopies намеренно отсутствует: счётчик ведёт сервер.
type BookInput struct {
	Title         string `json:"title" validate:"required,max=200"`
	Author        string `json:"author" validate:"required,max=100"`
	ISBN          string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Category      string `json:"category,omitempty" validate:"omitempty,max=50"`
	Edition       string `json:"edition,omitempty" validate:"omitempty,max=50"`
	Publisher     string `json:"publisher,omitempty" validate:"omitempty,max=100"`
	PublishedYear int    `json:"published_year,omitempty" validate:"omitempty,gte=1000,lte=9999"`
	Price         int    `json:"price,omitempty" validate:"gte=0"`
	Location      string `json:"location,omitempty" validate:"omitempty,max=100"`
	Language      string `json:"language,omitempty" validate:"omitempty,max=30"`
	Pages         int    `json:"no_of_pages,omitempty" validate:"gte=0"`
	CoverImageURL string `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	EbookURL      string `json:"ebook_url,omitempty" validate:"omitempty,url"`
	TotalCopies   int    `json:"total_copies,omitempty" validate:"gte=0"`
}

// InputFrom возвращает поля книги в виде формы редактирования.
func InputFrom(b Book) BookInput {
	return BookInput{
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		Category:      b.Category,
		Edition:       b.Edition,
		Publisher:     b.Publisher,
		PublishedYear: b.PublishedYear,
		Price:         b.Price,
		Location:      b.Location,
		Language:      b.Language,
		Pages:         b.Pages,
		CoverImageURL: b.CoverImageURL,
		EbookURL:      b.EbookURL,
		TotalCopies:   b.TotalCopies,
	}
}

// LibraryStats — сводная статистика каталога.
type LibraryStats struct {
	TotalBooks      int `json:"total_books"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
	ActiveBorrows   int `json:"active_borrows"`
	OverdueBorrows  int `json:"overdue_borrows"`
	TotalUsers      int `json:"total_users"`
}
