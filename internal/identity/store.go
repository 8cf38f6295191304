// Пакет identity — текущий пользователь сессии.
//
// Состояния: unauthenticated → loading → {authenticated | unauthenticated}.
// Store читает токены только через apiclient.TokenStore; пока идёт загрузка
// профиля, Snapshot сообщает Loading=true и страницы ничего не рисуют.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
)

// ErrNotAuthenticated — в хранилище нет access token.
var ErrNotAuthenticated = errors.New("пользователь не аутентифицирован")

// State — состояние сессии.
type State string

const (
	Unauthenticated State = "unauthenticated"
	Loading         State = "loading"
	Authenticated   State = "authenticated"
)

// API — операции REST API, которые нужны Store.
type API interface {
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.LoginResult, error)
	Profile(ctx context.Context) (*model.User, error)
}

// Snapshot — то, что видят страницы: пользователь и флаг загрузки.
type Snapshot struct {
	User    *model.User
	Loading bool
	State   State
}

// Store — состояние аутентификации одной сессии.
type Store struct {
	api    API
	tokens apiclient.TokenStore
	cache  *ProfileCache
	logger *slog.Logger

	mu    sync.RWMutex
	state State
	user  *model.User
}

// NewStore создаёт Store в состоянии Unauthenticated.
// cache может быть nil — тогда профиль запрашивается при каждом Bootstrap.
func NewStore(api API, tokens apiclient.TokenStore, cache *ProfileCache, logger *slog.Logger) *Store {
	return &Store{
		api:    api,
		tokens: tokens,
		cache:  cache,
		logger: logger.With(slog.String("component", "identity")),
		state:  Unauthenticated,
	}
}

// Snapshot возвращает текущее состояние.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{User: s.user, Loading: s.state == Loading, State: s.state}
}

// Bootstrap восстанавливает сессию из сохранённого токена.
// Без токена сразу переходит в Unauthenticated и возвращает ErrNotAuthenticated.
// Ошибка загрузки профиля очищает токены.
func (s *Store) Bootstrap(ctx context.Context) error {
	token := s.tokens.AccessToken()
	if token == "" {
		s.set(Unauthenticated, nil)
		return ErrNotAuthenticated
	}

	if u, ok := s.cache.Get(token); ok {
		s.set(Authenticated, u)
		return nil
	}
	return s.loadProfile(ctx)
}

// Login выполняет вход и загружает профиль. При ошибке состояние
// остаётся Unauthenticated, ошибка содержит сообщение сервера.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.set(Loading, nil)

	if _, err := s.api.Login(ctx, apiclient.Credentials{Email: email, Password: password}); err != nil {
		s.set(Unauthenticated, nil)
		return fmt.Errorf("вход: %w", err)
	}
	return s.loadProfile(ctx)
}

// Refresh повторно загружает профиль в обход кэша (после изменения профиля).
// Токены сбрасываются только при истёкшей сессии; при прочих ошибках
// остаётся прежний пользователь.
func (s *Store) Refresh(ctx context.Context) error {
	s.cache.Delete(s.tokens.AccessToken())

	s.mu.Lock()
	prevState, prevUser := s.state, s.user
	s.state = Loading
	s.mu.Unlock()

	u, err := s.api.Profile(ctx)
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		s.tokens.Clear()
		s.set(Unauthenticated, nil)
		return fmt.Errorf("перечитывание профиля: %w", err)
	case err != nil:
		s.set(prevState, prevUser)
		return fmt.Errorf("перечитывание профиля: %w", err)
	}

	s.cache.Set(s.tokens.AccessToken(), u)
	s.set(Authenticated, u)
	return nil
}

// Logout очищает токены и сбрасывает состояние. Запрос к серверу не нужен.
func (s *Store) Logout() {
	s.cache.Delete(s.tokens.AccessToken())
	s.tokens.Clear()
	s.set(Unauthenticated, nil)
}

func (s *Store) loadProfile(ctx context.Context) error {
	s.set(Loading, nil)

	u, err := s.api.Profile(ctx)
	if err != nil {
		s.tokens.Clear()
		s.set(Unauthenticated, nil)
		s.logger.Debug("Профиль не загружен, сессия сброшена", slog.String("error", err.Error()))
		return fmt.Errorf("загрузка профиля: %w", err)
	}

	// Токен мог обновиться во время запроса профиля
	s.cache.Set(s.tokens.AccessToken(), u)
	s.set(Authenticated, u)
	return nil
}

func (s *Store) set(state State, u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.user = u
}
