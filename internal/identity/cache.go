package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
)

var (
	profileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_profile_cache_hits_total",
		Help: "Количество попаданий в кэш профилей.",
	})
	profileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_profile_cache_misses_total",
		Help: "Количество промахов кэша профилей.",
	})
)

// ProfileCache — LRU-кэш профилей с TTL, общий для всех сессий веб-интерфейса.
// Ключ — SHA-256 от access token, сам токен в памяти кэша не хранится.
type ProfileCache struct {
	cache *expirable.LRU[string, model.User]
}

// NewProfileCache создаёт кэш на maxSize записей с временем жизни ttl.
func NewProfileCache(maxSize int, ttl time.Duration) *ProfileCache {
	return &ProfileCache{cache: expirable.NewLRU[string, model.User](maxSize, nil, ttl)}
}

// Get возвращает профиль для access token.
func (c *ProfileCache) Get(accessToken string) (*model.User, bool) {
	if c == nil || accessToken == "" {
		return nil, false
	}
	u, ok := c.cache.Get(cacheKey(accessToken))
	if !ok {
		profileCacheMisses.Inc()
		return nil, false
	}
	profileCacheHits.Inc()
	return &u, true
}

// Set запоминает профиль для access token.
func (c *ProfileCache) Set(accessToken string, u *model.User) {
	if c == nil || accessToken == "" || u == nil {
		return
	}
	c.cache.Add(cacheKey(accessToken), *u)
}

// Delete удаляет запись (выход, смена роли).
func (c *ProfileCache) Delete(accessToken string) {
	if c == nil || accessToken == "" {
		return
	}
	c.cache.Remove(cacheKey(accessToken))
}

// Len возвращает число записей.
func (c *ProfileCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
