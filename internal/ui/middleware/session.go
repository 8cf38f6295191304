// Пакет middleware — HTTP middleware веб-интерфейса.
// session.go — сессия запроса: токены из cookie, API-клиент, Store пользователя.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/identity"
	"github.com/swanith1234/LibraryManagementSystem/internal/ui/auth"
)

type contextKey string

const contextKeySession contextKey = "ui_session"

// RequestSession — всё, что обработчику нужно о сессии текущего запроса.
type RequestSession struct {
	// Tokens — пара токенов из cookie; изменения записываются в ответ
	Tokens *auth.SessionTokens
	// Client — API-клиент, привязанный к Tokens
	Client *apiclient.Client
	// Identity — текущий пользователь
	Identity *identity.Store

	once sync.Once
	err  error
}

// Authenticate восстанавливает пользователя из токена один раз за запрос.
func (s *RequestSession) Authenticate(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.Identity.Bootstrap(ctx)
	})
	return s.err
}

// Session — middleware, создающий RequestSession для каждого запроса.
type Session struct {
	sessions *auth.SessionManager
	gateway  *apiclient.Gateway
	profiles *identity.ProfileCache
	logger   *slog.Logger
}

// NewSession создаёт middleware сессий. profiles может быть nil.
func NewSession(
	sessions *auth.SessionManager,
	gateway *apiclient.Gateway,
	profiles *identity.ProfileCache,
	logger *slog.Logger,
) *Session {
	return &Session{
		sessions: sessions,
		gateway:  gateway,
		profiles: profiles,
		logger:   logger.With(slog.String("component", "ui_session")),
	}
}

// Middleware читает cookie, собирает RequestSession и записывает изменённую
// пару токенов в cookie перед первой записью ответа.
func (s *Session) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := s.sessions.Load(r)
		tokens := auth.NewSessionTokens(data)
		if err != nil {
			// Повреждённый или чужой cookie: сессия пустая, cookie удаляется
			s.logger.Debug("Ошибка чтения сессии",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr),
			)
			tokens.Clear()
		}

		client := s.gateway.Client(tokens)
		rs := &RequestSession{
			Tokens:   tokens,
			Client:   client,
			Identity: identity.NewStore(client, tokens, s.profiles, s.logger),
		}

		cw := &cookieWriter{ResponseWriter: w, commit: func(w http.ResponseWriter) { s.commit(w, tokens) }}
		ctx := context.WithValue(r.Context(), contextKeySession, rs)
		next.ServeHTTP(cw, r.WithContext(ctx))
		cw.ensureCommitted()
	})
}

// commit записывает cookie, если пара токенов изменилась.
func (s *Session) commit(w http.ResponseWriter, tokens *auth.SessionTokens) {
	if !tokens.Dirty() {
		return
	}
	data, empty := tokens.Snapshot()
	if empty {
		s.sessions.Clear(w)
	} else if err := s.sessions.Save(w, &data); err != nil {
		s.logger.Error("Ошибка записи cookie сессии", slog.String("error", err.Error()))
		s.sessions.Clear(w)
	}
	tokens.MarkClean()
}

// FromContext возвращает сессию запроса (nil вне Session middleware).
func FromContext(ctx context.Context) *RequestSession {
	rs, _ := ctx.Value(contextKeySession).(*RequestSession)
	return rs
}

// WithSession помещает сессию в контекст (для тестов обработчиков).
func WithSession(ctx context.Context, rs *RequestSession) context.Context {
	return context.WithValue(ctx, contextKeySession, rs)
}

// cookieWriter откладывает Set-Cookie до первой записи заголовков.
type cookieWriter struct {
	http.ResponseWriter
	commit    func(http.ResponseWriter)
	committed bool
}

func (cw *cookieWriter) ensureCommitted() {
	if cw.committed {
		return
	}
	cw.committed = true
	cw.commit(cw.ResponseWriter)
}

func (cw *cookieWriter) WriteHeader(code int) {
	cw.ensureCommitted()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cookieWriter) Write(b []byte) (int, error) {
	cw.ensureCommitted()
	return cw.ResponseWriter.Write(b)
}

// FlushError вызывается http.ResponseController: cookie пишется до начала потока SSE.
func (cw *cookieWriter) FlushError() error {
	cw.ensureCommitted()
	return http.NewResponseController(cw.ResponseWriter).Flush()
}

// Unwrap позволяет http.ResponseController добраться до исходного ResponseWriter.
func (cw *cookieWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
