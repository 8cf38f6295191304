// Пакет static — CSS и JS веб-интерфейса, встроенные в бинарник.
// Сервер раздаёт их по /static/* с долгим кешированием.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed css/*.css js/*.js
var content embed.FS

// FileSystem — ресурсы для http.FileServer.
func FileSystem() http.FileSystem { return http.FS(content) }

// FS — те же ресурсы как fs.FS.
func FS() fs.FS { return content }
