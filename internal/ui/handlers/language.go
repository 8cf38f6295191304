package handlers

import (
	"net/http"
	"net/url"

	"github.com/swanith1234/LibraryManagementSystem/internal/ui/i18n"
	uimiddleware "github.com/swanith1234/LibraryManagementSystem/internal/ui/middleware"
)

// SetLanguage — POST /language: запоминает язык в cookie на год и
// возвращает на страницу, с которой пришёл запрос (только тот же хост).
func SetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if i18n.Supported(lang) {
		http.SetCookie(w, &http.Cookie{
			Name:     i18n.LangCookieName,
			Value:    lang,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo возвращает путь из Referer, если он указывает на этот же хост.
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host {
		return "/"
	}
	if next := uimiddleware.SafeNext(ref.RequestURI()); next != "" {
		return next
	}
	if ref.Path == "/login" {
		return "/login"
	}
	return "/"
}
