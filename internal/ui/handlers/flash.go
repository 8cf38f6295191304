package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/swanith1234/LibraryManagementSystem/internal/ui/pages"
)

const flashCookieName = "lm_flash"

const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

// setFlash записывает уведомление, которое покажет следующая страница.
func setFlash(w http.ResponseWriter, kind, message string) {
	raw, err := json.Marshal(pages.Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// popFlash читает уведомление и удаляет cookie.
func popFlash(w http.ResponseWriter, r *http.Request) *pages.Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f pages.Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	switch f.Kind {
	case flashSuccess, flashError, flashInfo:
	default:
		f.Kind = flashInfo
	}
	return &f
}
