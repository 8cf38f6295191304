package pages

import (
	"time"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
)

// Flash — одноразовое уведомление после redirect.
type Flash struct {
	// Kind — success, error, info
	Kind    string `json:"k"`
	Message string `json:"m"`
}

// View — общие данные layout: язык, пользователь, меню, уведомление.
type View struct {
	Lang      string
	Languages []string
	// Title — ключ перевода заголовка страницы
	Title string
	// Active — путь текущего пункта меню
	Active string
	User   *model.User
	Nav    []rbac.NavItem
	Flash  *Flash
}

// Can проверяет право текущего пользователя (для условных кнопок в шаблонах).
func (v View) Can(permission string) bool {
	return v.User != nil && v.User.Role.Can(rbac.Permission(permission))
}

// LoginData — форма входа.
type LoginData struct {
	View
	Email string
	Next  string
	Error string
}

// RegisterData — форма регистрации.
type RegisterData struct {
	View
	Username string
	Email    string
	Fields   []string
	Error    string
}

// PasswordData — формы «забыли пароль» и «новый пароль».
type PasswordData struct {
	View
	Email   string
	Token   string
	Message string
	Error   string
}

// DashboardData — дашборд администратора и библиотекаря.
type DashboardData struct {
	View
	Summary    *model.DashboardSummary
	SummaryErr string
	Stats      *model.LibraryStats
	StatsErr   string
}

// UsersData — администрирование пользователей.
type UsersData struct {
	View
	Query  string
	Users  []model.User
	Roles  []rbac.Role
	Manage bool
}

// BooksData — список книг для администратора.
type BooksData struct {
	View
	Query string
	Books []model.Book
}

// BookFormData — создание и редактирование книги.
type BookFormData struct {
	View
	BookID string
	Input  model.BookInput
	Fields []string
	Error  string
}

// UploadData — массовая загрузка CSV.
type UploadData struct {
	View
	TaskID   string
	MaxBytes int64
}

// CopiesData — список экземпляров.
type CopiesData struct {
	View
	Query    string
	Copies   *apiclient.CopyPage
	PrevPage int
	NextPage int
}

// CopyFormData — создание и редактирование экземпляра.
type CopyFormData struct {
	View
	CopyID     string
	Input      model.CopyInput
	Conditions []model.Condition
	Books      []model.Book
	Fields     []string
	Error      string
}

// LendData — выдача экземпляра пользователю.
type LendData struct {
	View
	Copy  *model.BookCopy
	Query string
	Users []model.User
	Error string
}

// BorrowsData — записи о выдаче.
type BorrowsData struct {
	View
	Status string
	Query  string
	Mode   string
	Page   *service.BorrowPage
	Now    time.Time
}

// ReturnData — подтверждение возврата.
type ReturnData struct {
	View
	BorrowID   string
	Book       string
	Borrower   string
	Fine       service.FineQuote
	Conditions []model.Condition
	Condition  string
	Remarks    string
	FinePaid   bool
	Page       int
	Error      string
}

// BrowseItem — книга каталога и доступное пользователю действие.
type BrowseItem struct {
	Book   model.Book
	Option service.BorrowOption
}

// BrowseData — каталог с фильтрами и курсорной пагинацией.
type BrowseData struct {
	View
	Filter service.BookFilter
	Items  []BrowseItem
	Page   *service.CatalogPage
	Error  string
}

// BookDetailData — карточка книги.
type BookDetailData struct {
	View
	Book   *model.Book
	Option service.BorrowOption
}

// MyBorrowsData — выдачи текущего пользователя.
type MyBorrowsData struct {
	View
	Summary *model.MemberSummary
	Now     time.Time
}

// ProfileData — профиль и история выдач.
type ProfileData struct {
	View
	Profile     *model.User
	Own         bool
	Form        apiclient.ProfileUpdate
	Fields      []string
	Error       string
	History     *apiclient.HistoryPage
	HistoryErr  string
	HistoryPrev int
	HistoryNext int
}

// ErrorData — страница ошибки (403, 404, 502).
type ErrorData struct {
	View
	Status  int
	Message string
	Retry   string
}
