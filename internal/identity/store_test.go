package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI — ответы входа и профиля без HTTP.
type fakeAPI struct {
	tokens     apiclient.TokenStore
	loginErr   error
	profile    *model.User
	profileErr error

	profileCalls atomic.Int32
	// onProfile вызывается во время запроса профиля (проверка Loading)
	onProfile func()
}

func (f *fakeAPI) Login(_ context.Context, creds apiclient.Credentials) (*apiclient.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.tokens.SetTokens("access-"+creds.Email, "refresh-"+creds.Email)
	return &apiclient.LoginResult{Message: "Login successful"}, nil
}

func (f *fakeAPI) Profile(context.Context) (*model.User, error) {
	f.profileCalls.Add(1)
	if f.onProfile != nil {
		f.onProfile()
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	u := *f.profile
	return &u, nil
}

func member() *model.User {
	return &model.User{ID: "u1", Username: "ann", Role: rbac.RoleMember}
}

func TestBootstrap_NoToken(t *testing.T) {
	tokens := apiclient.NewMemoryTokens("", "")
	api := &fakeAPI{tokens: tokens, profile: member()}
	s := NewStore(api, tokens, nil, testLogger())

	err := s.Bootstrap(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("ожидалась ErrNotAuthenticated, получено %v", err)
	}
	snap := s.Snapshot()
	if snap.State != Unauthenticated || snap.Loading || snap.User != nil {
		t.Errorf("снимок %+v, ожидалось unauthenticated без пользователя", snap)
	}
	if api.profileCalls.Load() != 0 {
		t.Error("без токена профиль не запрашивается")
	}
}

func TestBootstrap_WithToken(t *testing.T) {
	tokens := apiclient.NewMemoryTokens("a", "r")
	api := &fakeAPI{tokens: tokens, profile: member()}
	s := NewStore(api, tokens, nil, testLogger())

	var sawLoading bool
	api.onProfile = func() { sawLoading = s.Snapshot().Loading }

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !sawLoading {
		t.Error("во время запроса профиля Loading должен быть true")
	}
	snap := s.Snapshot()
	if snap.State != Authenticated || snap.User == nil || snap.User.Username != "ann" {
		t.Errorf("снимок %+v", snap)
	}
}

func TestBootstrap_ProfileFailureClearsTokens(t *testing.T) {
	tokens := apiclient.NewMemoryTokens("a", "r")
	api := &fakeAPI{tokens: tokens, profileErr: &apiclient.APIError{Status: 500, Message: "boom"}}
	s := NewStore(api, tokens, nil, testLogger())

	if err := s.Bootstrap(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if tokens.AccessToken() != "" || tokens.RefreshToken() != "" {
		t.Error("ошибка профиля должна очищать токены")
	}
	if s.Snapshot().State != Unauthenticated {
		t.Errorf("состояние %q, ожидалось unauthenticated", s.Snapshot().State)
	}
}

func TestBootstrap_UsesCache(t *testing.T) {
	cache := NewProfileCache(10, time.Minute)
	tokens := apiclient.NewMemoryTokens("a", "r")
	api := &fakeAPI{tokens: tokens, profile: member()}

	for i := 0; i < 3; i++ {
		s := NewStore(api, tokens, cache, testLogger())
		if err := s.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap #%d: %v", i, err)
		}
	}
	if n := api.profileCalls.Load(); n != 1 {
		t.Errorf("запросов профиля: %d, ожидался 1 (остальные из кэша)", n)
	}
}

func TestLogin_Success(t *testing.T) {
	tokens := apiclient.NewMemoryTokens("", "")
	api := &fakeAPI{tokens: tokens, profile: member()}
	s := NewStore(api, tokens, nil, testLogger())

	if err := s.Login(context.Background(), "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tokens.AccessToken() != "access-ann@example.com" {
		t.Errorf("access token = %q", tokens.AccessToken())
	}
	if s.Snapshot().State != Authenticated {
		t.Errorf("состояние %q, ожидалось authenticated", s.Snapshot().State)
	}
}

func TestLogin_FailureSurfacesServerMessage(t *testing.T) {
	tokens := apiclient.NewMemoryTokens("", "")
	api := &fakeAPI{tokens: tokens, loginErr: &apiclient.APIError{Status: 401, Message: "Invalid credentials"}}
	s := NewStore(api, tokens, nil, testLogger())

	err := s.Login(context.Background(), "ann@example.com", "wrong")
	if apiclient.Message(err) != "Invalid credentials" {
		t.Errorf("ожидалось сообщение сервера, получено %v", err)
	}
	if s.Snapshot().State != Unauthenticated {
		t.Errorf("состояние %q, ожидалось unauthenticated", s.Snapshot().State)
	}
}

func TestLogout_IsLocalAndSynchronous(t *testing.T) {
	cache := NewProfileCache(10, time.Minute)
	tokens := apiclient.NewMemoryTokens("a", "r")
	api := &fakeAPI{tokens: tokens, profile: member()}
	s := NewStore(api, tokens, cache, testLogger())
	_ = s.Bootstrap(context.Background())

	s.Logout()

	if tokens.AccessToken() != "" || tokens.RefreshToken() != "" {
		t.Error("Logout должен очищать токены")
	}
	if snap := s.Snapshot(); snap.State != Unauthenticated || snap.User != nil {
		t.Errorf("снимок после выхода %+v", snap)
	}
	if cache.Len() != 0 {
		t.Error("Logout должен удалять профиль из кэша")
	}
}

func TestRefresh_BypassesCache(t *testing.T) {
	cache := NewProfileCache(10, time.Minute)
	tokens := apiclient.NewMemoryTokens("a", "r")
	api := &fakeAPI{tokens: tokens, profile: member()}
	s := NewStore(api, tokens, cache, testLogger())
	_ = s.Bootstrap(context.Background())

	api.profile = &model.User{ID: "u1", Username: "ann", FullName: "Ann Lee", Role: rbac.RoleMember}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Snapshot().User.FullName != "Ann Lee" {
		t.Error("Refresh должен загрузить свежий профиль")
	}
	if api.profileCalls.Load() != 2 {
		t.Errorf("запросов профиля: %d, ожидалось 2", api.profileCalls.Load())
	}
}

func TestRefresh_Failure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantTokens bool
		wantState  State
	}{
		{"API недоступен", &apiclient.APIError{Status: 503}, true, Authenticated},
		{"сетевая ошибка", errors.New("connection reset"), true, Authenticated},
		{"сессия истекла", apiclient.ErrSessionExpired, false, Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := apiclient.NewMemoryTokens("a", "r")
			api := &fakeAPI{tokens: tokens, profile: member()}
			s := NewStore(api, tokens, NewProfileCache(10, time.Minute), testLogger())
			if err := s.Bootstrap(context.Background()); err != nil {
				t.Fatal(err)
			}

			api.profileErr = tt.err
			if err := s.Refresh(context.Background()); !errors.Is(err, tt.err) {
				t.Fatalf("ожидалась %v, получено %v", tt.err, err)
			}

			hasTokens := tokens.AccessToken() == "a" && tokens.RefreshToken() == "r"
			if hasTokens != tt.wantTokens {
				t.Errorf("токены сохранены = %v, ожидается %v", hasTokens, tt.wantTokens)
			}
			snap := s.Snapshot()
			if snap.State != tt.wantState || snap.Loading {
				t.Errorf("снимок %+v, ожидается %s", snap, tt.wantState)
			}
			if tt.wantTokens && (snap.User == nil || snap.User.ID != "u1") {
				t.Errorf("прежний пользователь потерян: %+v", snap.User)
			}
		})
	}
}
