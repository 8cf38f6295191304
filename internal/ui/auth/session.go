// Пакет auth — сессия веб-интерфейса в зашифрованном cookie (AES-256-GCM).
// Cookie хранит пару токенов REST API; SessionTokens отдаёт её API-клиенту
// как apiclient.TokenStore и запоминает, что пару нужно записать обратно.
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
)

// SessionCookieName — имя cookie с зашифрованной сессией.
const SessionCookieName = "library_session"

// ErrSessionLifetime — с первого входа прошло больше ttl менеджера.
// Обновление токенов не продлевает сессию сверх этого срока.
var ErrSessionLifetime = errors.New("истёк предельный срок сессии")

// SessionData — содержимое cookie сессии.
type SessionData struct {
	// AccessToken — access token REST API
	AccessToken string `json:"access_token"`
	// RefreshToken — refresh token для обновления access token
	RefreshToken string `json:"refresh_token"`
	// IssuedAt — время первого входа (Unix); 0 — срок не отслеживается
	IssuedAt int64 `json:"issued_at"`
}

// SessionManager шифрует SessionData в cookie и обратно.
type SessionManager struct {
	gcm    cipher.AEAD
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager создаёт менеджер сессий.
// secret — base64-ключ длиной 32 байта либо произвольная строка (хешируется SHA-256).
// ttl — предельное время жизни сессии от первого входа.
func NewSessionManager(secret string, secure bool, ttl time.Duration) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("секрет сессии не задан")
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{gcm: gcm, secure: secure, ttl: ttl, now: time.Now}, nil
}

// Encrypt шифрует SessionData и возвращает base64url-строку (nonce + ciphertext).
func (sm *SessionManager) Encrypt(data *SessionData) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	nonce := make([]byte, sm.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	sealed := sm.gcm.Seal(nonce, nonce, plaintext, []byte(SessionCookieName))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает значение cookie.
func (sm *SessionManager) Decrypt(value string) (*SessionData, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования cookie: %w", err)
	}

	nonceSize := sm.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("зашифрованные данные слишком короткие")
	}

	plaintext, err := sm.gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(SessionCookieName))
	if err != nil {
		return nil, fmt.Errorf("ошибка дешифрования сессии: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сессии: %w", err)
	}
	return &data, nil
}

// Load читает сессию из запроса. Отсутствие cookie — nil, nil.
// Сессия старше ttl возвращает ErrSessionLifetime.
func (sm *SessionManager) Load(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	data, err := sm.Decrypt(cookie.Value)
	if err != nil {
		return nil, err
	}
	if data.IssuedAt != 0 && sm.left(data) <= 0 {
		return nil, ErrSessionLifetime
	}
	return data, nil
}

// left — сколько сессии осталось до предельного срока.
func (sm *SessionManager) left(data *SessionData) time.Duration {
	return time.Unix(data.IssuedAt, 0).Add(sm.ttl).Sub(sm.now())
}

// Save записывает сессию в ответ. Время жизни cookie совпадает со сроком
// refresh token, но не превышает остаток ttl от первого входа.
func (sm *SessionManager) Save(w http.ResponseWriter, data *SessionData) error {
	value, err := sm.Encrypt(data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   sm.maxAge(data),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear удаляет cookie сессии.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (sm *SessionManager) maxAge(data *SessionData) int {
	ttl := sm.ttl
	if data.IssuedAt != 0 {
		ttl = sm.left(data)
	}
	if exp, ok := apiclient.TokenExpiry(data.RefreshToken); ok {
		if left := exp.Sub(sm.now()); left < ttl {
			ttl = left
		}
	}
	// Истёкший refresh token: cookie живёт минуту, следующий запрос всё равно попадёт на вход
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return int(ttl / time.Second)
}

// SessionTokens — apiclient.TokenStore поверх SessionData одного запроса.
// Изменения помечаются флагом Dirty: middleware записывает cookie перед
// первой записью тела ответа.
type SessionTokens struct {
	mu    sync.RWMutex
	data  SessionData
	dirty bool
}

// NewSessionTokens создаёт хранилище из данных cookie (nil — пустая сессия).
func NewSessionTokens(data *SessionData) *SessionTokens {
	t := &SessionTokens{}
	if data != nil {
		t.data = *data
	}
	return t
}

// Методы ниже реализуют apiclient.TokenStore.

// AccessToken возвращает access token сессии.
func (t *SessionTokens) AccessToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.AccessToken
}

// RefreshToken возвращает refresh token сессии.
func (t *SessionTokens) RefreshToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.RefreshToken
}

// SetTokens сохраняет пару после входа; время первого входа запоминается один раз.
func (t *SessionTokens) SetTokens(access, refresh string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.AccessToken, t.data.RefreshToken = access, refresh
	if t.data.IssuedAt == 0 {
		t.data.IssuedAt = time.Now().Unix()
	}
	t.dirty = true
}

// SetAccessToken сохраняет обновлённый access token.
func (t *SessionTokens) SetAccessToken(access string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.AccessToken = access
	t.dirty = true
}

// Clear очищает сессию; middleware удалит cookie.
func (t *SessionTokens) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = SessionData{}
	t.dirty = true
}

// Renew начинает отсчёт срока сессии заново (новый вход по паролю).
func (t *SessionTokens) Renew() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.IssuedAt = time.Now().Unix()
	t.dirty = true
}

// Dirty сообщает, что пара токенов менялась в ходе запроса.
func (t *SessionTokens) Dirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty
}

// Snapshot возвращает копию данных сессии и признак пустой сессии.
func (t *SessionTokens) Snapshot() (SessionData, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data, t.data.AccessToken == "" && t.data.RefreshToken == ""
}

// MarkClean сбрасывает флаг изменений после записи cookie.
func (t *SessionTokens) MarkClean() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirty = false
}
