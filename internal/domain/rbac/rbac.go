// Пакет rbac — роли пользователей библиотеки и единая таблица
// «роль → навигация и права». Все защищённые страницы берут решения
// только из этой таблицы.
package rbac

import (
	"fmt"
	"strings"
)

// Role — роль пользователя. Закрытое множество: admin, librarian, member.
type Role string

// Роли в порядке возрастания привилегий.
const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// Permission — право на действие или страницу.
type Permission string

const (
	// PermViewDashboard — дашборд со статистикой библиотеки
	PermViewDashboard Permission = "dashboard:view"
	// PermViewUsers — список и поиск пользователей
	PermViewUsers Permission = "users:view"
	// PermManageUsers — смена роли и удаление пользователей
	PermManageUsers Permission = "users:manage"
	// PermManageBooks — создание, редактирование, удаление книг
	PermManageBooks Permission = "books:manage"
	// PermUploadBooks — массовая загрузка CSV
	PermUploadBooks Permission = "books:upload"
	// PermManageCopies — экземпляры книг
	PermManageCopies Permission = "copies:manage"
	// PermLendCopies — выдача экземпляра пользователю
	PermLendCopies Permission = "copies:lend"
	// PermViewBorrows — записи о выдаче всех пользователей
	PermViewBorrows Permission = "borrows:view"
	// PermProcessReturns — расчёт штрафа и подтверждение возврата
	PermProcessReturns Permission = "borrows:return"
	// PermBrowseCatalog — просмотр каталога
	PermBrowseCatalog Permission = "catalog:browse"
	// PermViewOwnBorrows — собственные выдачи
	PermViewOwnBorrows Permission = "borrows:own"
	// PermViewOtherProfiles — профили других пользователей
	PermViewOtherProfiles Permission = "profiles:view"
	// PermBorrowAlways — оформление выдачи без службы доставки
	PermBorrowAlways Permission = "borrow:always"
)

// NavItem — пункт бокового меню.
type NavItem struct {
	// Key — ключ перевода (i18n)
	Key string
	// Path — путь страницы
	Path string
	// Permission — право, которое проверяет guard этой страницы
	Permission Permission
}

// Пути страниц интерфейса.
const (
	PathDashboard = "/dashboard"
	PathUsers     = "/users"
	PathBooks     = "/books"
	PathUpload    = "/books/upload"
	PathCopies    = "/copies"
	PathBorrows   = "/borrows"
	PathBrowse    = "/browse"
	PathMyBorrows = "/my-borrows"
	PathProfile   = "/profile"
	PathLogin     = "/login"
)

// policy — строка таблицы ролей.
type policy struct {
	weight      int
	home        string
	nav         []NavItem
	permissions map[Permission]bool
}

// table — единственное место, где роль связывается с навигацией и правами.
var table = map[Role]policy{
	RoleAdmin: {
		weight: 3,
		home:   PathDashboard,
		nav: []NavItem{
			{Key: "nav.dashboard", Path: PathDashboard, Permission: PermViewDashboard},
			{Key: "nav.users", Path: PathUsers, Permission: PermViewUsers},
			{Key: "nav.books", Path: PathBooks, Permission: PermManageBooks},
			{Key: "nav.borrows", Path: PathBorrows, Permission: PermViewBorrows},
			{Key: "nav.browse", Path: PathBrowse, Permission: PermBrowseCatalog},
		},
		permissions: permSet(
			PermViewDashboard, PermViewUsers, PermManageUsers, PermManageBooks, PermUploadBooks,
			PermManageCopies, PermLendCopies, PermViewBorrows, PermProcessReturns,
			PermBrowseCatalog, PermViewOtherProfiles, PermBorrowAlways,
		),
	},
	RoleLibrarian: {
		weight: 2,
		home:   PathDashboard,
		nav: []NavItem{
			{Key: "nav.dashboard", Path: PathDashboard, Permission: PermViewDashboard},
			{Key: "nav.users", Path: PathUsers, Permission: PermViewUsers},
			{Key: "nav.copies", Path: PathCopies, Permission: PermManageCopies},
			{Key: "nav.borrows", Path: PathBorrows, Permission: PermViewBorrows},
		},
		permissions: permSet(
			PermViewDashboard, PermViewUsers, PermManageCopies, PermLendCopies,
			PermViewBorrows, PermProcessReturns, PermBrowseCatalog, PermViewOtherProfiles,
			PermBorrowAlways,
		),
	},
	RoleMember: {
		weight: 1,
		home:   PathBrowse,
		nav: []NavItem{
			{Key: "nav.browse", Path: PathBrowse, Permission: PermBrowseCatalog},
			{Key: "nav.my_borrows", Path: PathMyBorrows, Permission: PermViewOwnBorrows},
		},
		permissions: permSet(PermBrowseCatalog, PermViewOwnBorrows),
	},
}

// ParseRole разбирает строку роли без учёта регистра.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("неизвестная роль %q", s)
	}
	return r, nil
}

// UnmarshalText нормализует роль из ответа API ("Admin" → admin).
// Неизвестная роль не ошибка декодирования: она сохраняется и не даёт прав.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		*r = Role(strings.ToLower(strings.TrimSpace(string(text))))
		return nil
	}
	*r = parsed
	return nil
}

// IsValid проверяет, входит ли роль в закрытое множество.
func (r Role) IsValid() bool {
	_, ok := table[r]
	return ok
}

// String реализует fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Can проверяет наличие права у роли. Неизвестная роль не имеет прав.
func (r Role) Can(p Permission) bool {
	return table[r].permissions[p]
}

// HomePath возвращает страницу, на которую роль попадает после входа.
// Для неизвестной роли — страница входа.
func (r Role) HomePath() string {
	pol, ok := table[r]
	if !ok {
		return PathLogin
	}
	return pol.home
}

// Nav возвращает пункты меню роли в порядке отображения.
func (r Role) Nav() []NavItem {
	items := table[r].nav
	out := make([]NavItem, len(items))
	copy(out, items)
	return out
}

// AtLeast сообщает, что роль r не ниже other по привилегиям.
func (r Role) AtLeast(other Role) bool {
	return table[r].weight >= table[other].weight && r.IsValid()
}

// AllRoles возвращает все роли в порядке возрастания привилегий.
func AllRoles() []Role {
	return []Role{RoleMember, RoleLibrarian, RoleAdmin}
}

func permSet(perms ...Permission) map[Permission]bool {
	s := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		s[p] = true
	}
	return s
}
