package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/swanith1234/LibraryManagementSystem/internal/tokenstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI — REST API библиотеки. Токен "admin" выдаётся за пароль
// "secret-pass"; прогресс загрузки завершается на втором опросе.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/login/" {
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["password"] != "secret-pass" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"access": "admin", "refresh": "r-admin"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer admin" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
			return
		}

		switch r.URL.Path {
		case "/users/profile/":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "u-admin", "username": "admin", "email": "admin@example.com", "role": "admin",
			})
		case "/books/":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "b1", "title": "Go in Action", "author": "Kennedy", "isbn": "978-1617291784", "total_copies": 2, "available_copies": 1},
				{"id": "b2", "title": "Refactoring", "author": "Fowler", "total_copies": 1, "available_copies": 0},
			})
		case "/admin/upload-books/":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file"})
				return
			}
			if _, _, err := r.FormFile("file"); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"task_id": "t1"})
		case "/admin/upload-progress/t1/":
			if polls.Add(1) == 1 {
				writeJSON(w, http.StatusOK, map[string]any{"status": "processing", "progress": "50", "processed": "1", "total": "2", "failed": "0"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "progress": 100, "processed": 2, "total": 2, "failed": 0})
		case "/borrow/records/":
			writeJSON(w, http.StatusOK, map[string]any{
				"total": 1, "page": 1, "limit": 20,
				"records": []map[string]any{
					{"borrow_id": "br2", "user": "carol", "book": "Clean Code", "barcode": "BC-2", "due_date": "2020-01-01", "returned": false},
				},
			})
		case "/borrow/search/":
			writeJSON(w, http.StatusOK, map[string]any{
				"count": 1,
				"results": []map[string]any{
					{"borrow_id": "br3", "user": "dave", "book": "SICP", "barcode": r.URL.Query().Get("barcode"), "returned": false},
				},
			})
		case "/borrow/calculate-fine/":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["borrow_id"] == "broken" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no due date"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"borrow_id": body["borrow_id"], "fine": 12.5})
		case "/borrow/return/":
			writeJSON(w, http.StatusOK, map[string]any{"message": "Returned", "borrow_id": "br1", "fine": 12.5, "fine_payment_status": "paid"})
		case "/borrow/create/":
			writeJSON(w, http.StatusOK, map[string]any{
				"message": "ok", "borrow_id": "br9", "book_title": "Go in Action", "barcode": "BC-9", "due_date": "2026-11-01",
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run выполняет команду libraryctl и возвращает stdout.
func run(t *testing.T, apiURL, creds, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LM_API_URL", "")
	t.Setenv("LM_API_CA_CERT", "")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	full := []string{"--credentials", creds}
	if apiURL != "" {
		full = append(full, "--api-url", apiURL)
	}
	cmd.SetArgs(append(full, args...))

	err := cmd.Execute()
	return out.String(), err
}

// loggedIn возвращает файл учётных данных после успешного входа.
func loggedIn(t *testing.T, apiURL string) string {
	t.Helper()
	creds := filepath.Join(t.TempDir(), "credentials.json")
	if _, err := run(t, apiURL, creds, "", "login", "--email", "admin@example.com", "--password", "secret-pass"); err != nil {
		t.Fatalf("вход: %v", err)
	}
	return creds
}

func openStore(t *testing.T, path string) *tokenstore.File {
	t.Helper()
	store, err := tokenstore.Open(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestLoginWhoamiLogout(t *testing.T) {
	api := fakeAPI(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")

	out, err := run(t, api.URL, creds, "", "login", "--email", "admin@example.com", "--password", "secret-pass")
	if err != nil {
		t.Fatalf("вход: %v", err)
	}
	if !strings.Contains(out, "Вход выполнен: admin (admin)") {
		t.Errorf("вывод входа: %q", out)
	}
	store := openStore(t, creds)
	if store.AccessToken() != "admin" || store.RefreshToken() != "r-admin" {
		t.Errorf("токены не сохранены: %q/%q", store.AccessToken(), store.RefreshToken())
	}
	if store.APIURL() != api.URL {
		t.Errorf("URL API не сохранён: %q", store.APIURL())
	}

	// URL берётся из файла учётных данных
	out, err = run(t, "", creds, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	for _, want := range []string{"admin@example.com", "u-admin", "Роль:         admin"} {
		if !strings.Contains(out, want) {
			t.Errorf("в выводе whoami нет %q: %q", want, out)
		}
	}

	if _, err := run(t, "", creds, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := run(t, "", creds, "", "whoami"); err == nil || !strings.Contains(err.Error(), "вход не выполнен") {
		t.Errorf("после выхода ожидается ошибка «вход не выполнен», получено %v", err)
	}
}

func TestLogin_ReadsCredentialsFromInput(t *testing.T) {
	api := fakeAPI(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")

	out, err := run(t, api.URL, creds, "admin@example.com\nsecret-pass\n", "login")
	if err != nil {
		t.Fatalf("вход: %v", err)
	}
	if !strings.Contains(out, "Вход выполнен") {
		t.Errorf("вывод: %q", out)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	api := fakeAPI(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")

	if _, err := run(t, api.URL, creds, "", "login", "--email", "a@b.c", "--password", "nope"); err == nil {
		t.Fatal("ожидается ошибка входа")
	}
	if openStore(t, creds).AccessToken() != "" {
		t.Error("после неудачного входа токен сохранён")
	}
}

func TestNoAPIURL(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "credentials.json")
	_, err := run(t, "", creds, "", "books", "list")
	if err == nil || !strings.Contains(err.Error(), "не задан URL API") {
		t.Errorf("ожидается ошибка про URL API, получено %v", err)
	}
}

func TestBooksList(t *testing.T) {
	api := fakeAPI(t)
	creds := loggedIn(t, api.URL)

	out, err := run(t, api.URL, creds, "", "books", "list", "--search", "go")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Go in Action") || !strings.Contains(out, "1/2") {
		t.Errorf("нет найденной книги: %q", out)
	}
	if strings.Contains(out, "Refactoring") {
		t.Errorf("фильтр не применён: %q", out)
	}
}

func TestBooksUpload_Wait(t *testing.T) {
	api := fakeAPI(t)
	creds := loggedIn(t, api.URL)
	csv := filepath.Join(t.TempDir(), "books.csv")
	if err := os.WriteFile(csv, []byte("title,author\nGo,Pike\nC,K&R\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, api.URL, creds, "", "books", "upload", csv, "--wait", "--interval", "10ms")
	if err != nil {
		t.Fatalf("загрузка: %v", err)
	}
	for _, want := range []string{"Задача загрузки: t1", "processing: 50% (1/2, ошибок 0)", "Загрузка завершена: обработано 2 из 2, ошибок 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("в выводе нет %q: %q", want, out)
		}
	}
	if id := openStore(t, creds).TaskID(); id != "" {
		t.Errorf("после завершения id задачи остался: %q", id)
	}
}

func TestUpload_StatusAndForget(t *testing.T) {
	api := fakeAPI(t)
	creds := loggedIn(t, api.URL)
	csv := filepath.Join(t.TempDir(), "books.csv")
	if err := os.WriteFile(csv, []byte("title,author\nGo,Pike\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, api.URL, creds, "", "books", "upload", csv); err != nil {
		t.Fatalf("загрузка: %v", err)
	}
	if id := openStore(t, creds).TaskID(); id != "t1" {
		t.Fatalf("id задачи не сохранён: %q", id)
	}

	// Вторая загрузка при незавершённой задаче отклоняется
	if _, err := run(t, api.URL, creds, "", "books", "upload", csv); err == nil || !strings.Contains(err.Error(), "upload forget") {
		t.Errorf("ожидается отказ повторной загрузки, получено %v", err)
	}

	out, err := run(t, api.URL, creds, "", "upload", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "processing: 50%") {
		t.Errorf("вывод status: %q", out)
	}
	if id := openStore(t, creds).TaskID(); id != "t1" {
		t.Errorf("незавершённая задача забыта: %q", id)
	}

	if _, err := run(t, api.URL, creds, "", "upload", "forget"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, api.URL, creds, "", "upload", "status"); err == nil {
		t.Error("без сохранённой задачи ожидается ошибка")
	}
}

func TestBorrows(t *testing.T) {
	api := fakeAPI(t)
	creds := loggedIn(t, api.URL)

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr string
	}{
		{
			name: "список активных",
			args: []string{"borrows", "list"},
			want: []string{"Clean Code", "BC-2", "2020-01-01 !", "Страница 1 из 1, всего 1"},
		},
		{
			name:    "неизвестный статус",
			args:    []string{"borrows", "list", "--status", "lost"},
			wantErr: "неизвестный статус",
		},
		{
			name: "поиск по штрихкоду",
			args: []string{"borrows", "search", "BC-3"},
			want: []string{"SICP", "BC-3"},
		},
		{
			name: "штраф",
			args: []string{"borrows", "fine", "br1"},
			want: []string{"Штраф: 12.50"},
		},
		{
			name:    "штраф не рассчитан",
			args:    []string{"borrows", "fine", "broken"},
			wantErr: "штраф неизвестен",
		},
		{
			name: "возврат",
			args: []string{"borrows", "return", "br1", "--fine-paid", "--remarks", "ok"},
			want: []string{"Returned", "Штраф: 12.50 (paid)", "Активных выдач: 1"},
		},
		{
			name:    "возврат с неизвестным состоянием",
			args:    []string{"borrows", "return", "br1", "--condition", "wet"},
			wantErr: "wet",
		},
		{
			name: "выдача",
			args: []string{"borrows", "lend", "--user", "u2", "--copy", "c1"},
			want: []string{"Выдача br9: Go in Action (BC-9), вернуть до 2026-11-01"},
		},
		{
			name:    "выдача без экземпляра",
			args:    []string{"borrows", "lend", "--user", "u2"},
			wantErr: "CopyID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, api.URL, creds, "", tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ожидается ошибка с %q, получено %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ошибка: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("в выводе нет %q: %q", want, out)
				}
			}
		})
	}
}
