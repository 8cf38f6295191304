package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
	"github.com/swanith1234/LibraryManagementSystem/internal/service"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
)

// UI — все обработчики страниц веб-интерфейса.
type UI struct {
	Base      *Base
	Auth      *AuthHandler
	Dashboard *DashboardHandler
	Users     *UsersHandler
	Books     *BooksHandler
	Upload    *UploadHandler
	Copies    *CopiesHandler
	Borrows   *BorrowsHandler
	Browse    *BrowseHandler
	Profile   *ProfileHandler
}

// NewUI создаёт обработчики всех страниц.
func NewUI(base *Base, tasks *service.TaskRegistry, logger *slog.Logger) *UI {
	return &UI{
		Base:      base,
		Auth:      NewAuthHandler(base, logger),
		Dashboard: NewDashboardHandler(base, logger),
		Users:     NewUsersHandler(base, logger),
		Books:     NewBooksHandler(base, logger),
		Upload:    NewUploadHandler(base, tasks, logger),
		Copies:    NewCopiesHandler(base, logger),
		Borrows:   NewBorrowsHandler(base, logger),
		Browse:    NewBrowseHandler(base, logger),
		Profile:   NewProfileHandler(base, logger),
	}
}

// Mount регистрирует страницы. r уже должен быть обёрнут Session middleware.
// Каждая защищённая страница проверяет право из таблицы ролей.
func (ui *UI) Mount(r chi.Router, guard *uimiddleware.Guard) {
	// Публичные страницы
	r.Get("/", ui.Auth.Home)
	r.Get(rbac.PathLogin, ui.Auth.LoginPage)
	r.Post(rbac.PathLogin, ui.Auth.Login)
	r.Post("/logout", ui.Auth.Logout)
	r.Get("/register", ui.Auth.RegisterPage)
	r.Post("/register", ui.Auth.Register)
	r.Get("/forgot-password", ui.Auth.ForgotPage)
	r.Post("/forgot-password", ui.Auth.Forgot)
	r.Get("/reset-password", ui.Auth.ResetPage)
	r.Post("/reset-password", ui.Auth.Reset)
	r.Post("/language", SetLanguage)

	r.With(guard.Require(rbac.PermViewDashboard)).Get(rbac.PathDashboard, ui.Dashboard.Dashboard)

	r.Route(rbac.PathUsers, func(r chi.Router) {
		r.With(guard.Require(rbac.PermViewUsers)).Get("/", ui.Users.List)
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.PermManageUsers))
			r.Post("/{id}/role", ui.Users.ChangeRole)
			r.Post("/{id}/delete", ui.Users.Delete)
		})
	})

	r.Route(rbac.PathBooks, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.PermUploadBooks))
			r.Get("/upload", ui.Upload.Page)
			r.Post("/upload", ui.Upload.Submit)
			r.Get("/upload/events", ui.Upload.Events)
			r.Post("/upload/dismiss", ui.Upload.Dismiss)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.PermManageBooks))
			r.Get("/", ui.Books.List)
			r.Post("/", ui.Books.Create)
			r.Get("/new", ui.Books.New)
			r.Get("/{id}/edit", ui.Books.Edit)
			r.Post("/{id}", ui.Books.Update)
			r.Post("/{id}/delete", ui.Books.Delete)
		})
	})

	r.Route(rbac.PathCopies, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.PermLendCopies))
			r.Get("/{id}/lend", ui.Copies.LendPage)
			r.Post("/{id}/lend", ui.Copies.Lend)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.PermManageCopies))
			r.Get("/", ui.Copies.List)
			r.Post("/", ui.Copies.Create)
			r.Get("/new", ui.Copies.New)
			r.Get("/{id}/edit", ui.Copies.Edit)
			r.Post("/{id}", ui.Copies.Update)
			r.Post("/{id}/delete", ui.Copies.Delete)
		})
	})

	r.Route(rbac.PathBorrows, func(r chi.Router) {
		r.With(guard.Require(rbac.PermViewBorrows)).Get("/", ui.Borrows.List)
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.PermProcessReturns))
			r.Get("/{id}/return", ui.Borrows.ReturnPage)
			r.Post("/{id}/return", ui.Borrows.Return)
		})
	})
	r.With(guard.Require(rbac.PermViewOwnBorrows)).Get(rbac.PathMyBorrows, ui.Borrows.MyBorrows)

	r.Route(rbac.PathBrowse, func(r chi.Router) {
		r.Use(guard.Require(rbac.PermBrowseCatalog))
		r.Get("/", ui.Browse.Browse)
		r.Get("/{id}", ui.Browse.Detail)
		r.Post("/{id}/borrow", ui.Browse.Borrow)
	})

	r.Route(rbac.PathProfile, func(r chi.Router) {
		r.With(guard.RequireAuth).Get("/", ui.Profile.Own)
		r.With(guard.RequireAuth).Post("/", ui.Profile.Update)
		r.With(guard.Require(rbac.PermViewOtherProfiles)).Get("/{id}", ui.Profile.Other)
	})
}

// NotFoundHandler — страница 404 для неизвестных путей.
func (ui *UI) NotFoundHandler() http.HandlerFunc {
	return ui.Base.NotFound
}

// ForbiddenHandler — страница 403 для Guard.
func (ui *UI) ForbiddenHandler() http.Handler {
	return http.HandlerFunc(ui.Base.Forbidden)
}
