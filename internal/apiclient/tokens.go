package apiclient

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore — долговременное хранилище пары токенов. Единственная точка,
// через которую клиент читает и меняет токены.
// Реализации должны быть безопасны для конкурентного использования.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	// SetTokens сохраняет обе части пары (после входа или ротации refresh token)
	SetTokens(access, refresh string)
	// SetAccessToken заменяет только access token (после обновления)
	SetAccessToken(access string)
	// Clear удаляет оба токена
	Clear()
}

// MemoryTokens — TokenStore в памяти процесса.
type MemoryTokens struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryTokens создаёт хранилище с начальной парой токенов.
func NewMemoryTokens(access, refresh string) *MemoryTokens {
	return &MemoryTokens{access: access, refresh: refresh}
}

func (m *MemoryTokens) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

func (m *MemoryTokens) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

func (m *MemoryTokens) SetTokens(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
}

func (m *MemoryTokens) SetAccessToken(access string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
}

func (m *MemoryTokens) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = "", ""
}

// TokenExpiry извлекает claim exp из JWT без проверки подписи.
// Подпись проверяет сервер; клиенту срок нужен только для времени жизни
// cookie и вывода в CLI. Для непрозрачных токенов возвращает false.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
