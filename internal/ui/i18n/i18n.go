// Пакет i18n — переводы веб-интерфейса (English, Русский).
// Язык выбирается так: cookie "lang" → Accept-Language → en.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LangCookieName — cookie с выбранным языком.
const LangCookieName = "lang"

// DefaultLang — язык по умолчанию и язык-резерв для отсутствующих ключей.
const DefaultLang = "en"

//go:embed locales/*.json
var localeFS embed.FS

// supported — порядок совпадает с languages; первый элемент — язык по умолчанию.
var (
	supported = []language.Tag{language.English, language.Russian}
	languages = []string{"en", "ru"}
	matcher   = language.NewMatcher(supported)
)

// Languages возвращает коды поддерживаемых языков.
func Languages() []string {
	return append([]string(nil), languages...)
}

// Supported сообщает, поддерживается ли код языка.
func Supported(lang string) bool {
	for _, l := range languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Bundle — каталоги переводов всех языков.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string
	printers map[string]*message.Printer
}

// NewBundle создаёт пустой Bundle.
func NewBundle() *Bundle {
	b := &Bundle{
		catalogs: make(map[string]map[string]string),
		printers: make(map[string]*message.Printer),
	}
	for i, lang := range languages {
		b.printers[lang] = message.NewPrinter(supported[i])
	}
	return b
}

// Load создаёт Bundle из встроенных каталогов locales/<lang>.json.
func Load(logger *slog.Logger) (*Bundle, error) {
	b := NewBundle()
	for _, lang := range languages {
		path := "locales/" + lang + ".json"
		data, err := localeFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}
		if err := b.Add(lang, data); err != nil {
			return nil, err
		}
		logger.Debug("i18n каталог загружен", slog.String("lang", lang))
	}
	return b, nil
}

// Add добавляет плоский JSON-каталог {"key": "перевод"} для языка.
func (b *Bundle) Add(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages
	return nil
}

// Keys возвращает ключи каталога языка.
func (b *Bundle) Keys(lang string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.catalogs[lang]))
	for k := range b.catalogs[lang] {
		keys = append(keys, k)
	}
	return keys
}

// T возвращает перевод ключа. Отсутствующий ключ ищется в английском
// каталоге, затем возвращается как есть.
func (b *Bundle) T(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs[DefaultLang][key]; ok {
		return msg
	}
	return key
}

// Tf — T с подстановкой аргументов по формату из каталога.
func (b *Bundle) Tf(lang, key string, args ...any) string {
	return b.printer(lang).Sprintf(b.T(lang, key), args...)
}

// Amount форматирует денежную сумму по правилам языка (разделители разрядов).
func (b *Bundle) Amount(lang string, v float64) string {
	return b.printer(lang).Sprintf("%.2f", v)
}

// Number форматирует целое число по правилам языка.
func (b *Bundle) Number(lang string, v int) string {
	return b.printer(lang).Sprintf("%d", v)
}

func (b *Bundle) printer(lang string) *message.Printer {
	if p, ok := b.printers[lang]; ok {
		return p
	}
	return b.printers[DefaultLang]
}

// Detect выбирает язык: значение cookie имеет приоритет над Accept-Language.
// Нераспознанные значения игнорируются.
func Detect(cookieLang, acceptLanguage string) string {
	_, idx := language.MatchStrings(matcher, cookieLang, acceptLanguage)
	if idx < 0 || idx >= len(languages) {
		return DefaultLang
	}
	return languages[idx]
}

type contextKey struct{}

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKey{}, lang)
}

// LangFromContext возвращает язык запроса (en, если не задан).
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// Middleware определяет язык запроса и помещает его в контекст.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieLang := ""
		if c, err := r.Cookie(LangCookieName); err == nil {
			cookieLang = c.Value
		}
		lang := Detect(cookieLang, r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
	})
}
