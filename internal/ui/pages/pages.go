// Пакет pages — страницы веб-интерфейса.
// Шаблоны html/template встроены в бинарник и отдаются обработчикам
// как templ.Component: каждая страница — набор layout.html + partials.html
// + собственный файл, который определяет блок "content".
package pages

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"

	"github.com/swanith1234/LibraryManagementSystem/internal/ui/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

// Файлы, общие для всех страниц.
const (
	layoutFile   = "templates/layout.html"
	partialsFile = "templates/partials.html"
)

// Renderer — разобранные шаблоны всех страниц.
type Renderer struct {
	bundle   *i18n.Bundle
	pages    map[string]*template.Template
	partials *template.Template
}

// NewRenderer разбирает встроенные шаблоны. Ошибка шаблона — ошибка старта.
func NewRenderer(bundle *i18n.Bundle) (*Renderer, error) {
	base, err := template.New("layout").Funcs(funcMap(bundle)).ParseFS(templateFS, layoutFile, partialsFile)
	if err != nil {
		return nil, fmt.Errorf("разбор layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{bundle: bundle, pages: make(map[string]*template.Template), partials: base}
	for _, file := range files {
		if file == layoutFile || file == partialsFile {
			continue
		}
		set, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("разбор %s: %w", file, err)
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = set
	}
	return r, nil
}

// Page возвращает страницу name (имя файла без .html) с данными data.
func (r *Renderer) Page(name string, data any) templ.Component {
	set, ok := r.pages[name]
	if !ok {
		return missing("страница " + name)
	}
	return templ.FromGoHTML(set.Lookup("layout"), data)
}

// Partial возвращает фрагмент из partials.html без layout.
func (r *Renderer) Partial(name string, data any) templ.Component {
	t := r.partials.Lookup(name)
	if t == nil {
		return missing("фрагмент " + name)
	}
	return templ.FromGoHTML(t, data)
}

// Has сообщает, есть ли страница с таким именем.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func missing(what string) templ.Component {
	return templ.ComponentFunc(func(context.Context, io.Writer) error {
		return fmt.Errorf("шаблон не найден: %s", what)
	})
}

func funcMap(b *i18n.Bundle) template.FuncMap {
	return template.FuncMap{
		"t":      b.T,
		"tf":     b.Tf,
		"amount": b.Amount,
		"number": b.Number,
		"add":    func(a, c int) int { return a + c },
		"sub":    func(a, c int) int { return a - c },
		"pct":    func(v float64) string { return fmt.Sprintf("%.0f", v) },
		"lower":  strings.ToLower,
		// query и qs возвращают template.URL: строка запроса подставляется
		// после "?" без повторного экранирования "&" и "="
		"query": func(pairs ...string) template.URL {
			v := url.Values{}
			for i := 0; i+1 < len(pairs); i += 2 {
				if pairs[i+1] != "" {
					v.Set(pairs[i], pairs[i+1])
				}
			}
			return template.URL(v.Encode())
		},
		"qs": func(encoded string) template.URL {
			// Значение уже закодировано url.Values.Encode
			return template.URL(encoded)
		},
		"itoa": func(i int) string { return fmt.Sprint(i) },
		"list": func(items ...string) []string { return items },
	}
}
