package service

import (
	"context"
	"errors"
	"testing"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

func TestUsers_List(t *testing.T) {
	api := newFakeLibrary()
	api.users = []model.User{
		{ID: "u1", Username: "ann", Email: "ann@example.com"},
		{ID: "u2", Username: "bob", Email: "bob@example.com"},
	}
	svc := NewUserService(api, testLogger())

	all, err := svc.List(context.Background(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List(): %d, %v", len(all), err)
	}
	found, err := svc.List(context.Background(), " bob ")
	if err != nil || len(found) != 1 || found[0].ID != "u2" {
		t.Errorf("List(bob): %+v, %v", found, err)
	}
}

func TestUsers_ChangeRole(t *testing.T) {
	admin := &model.User{ID: "a1", Role: rbac.RoleAdmin}

	tests := []struct {
		name    string
		userID  string
		role    string
		wantErr error
	}{
		{"повышение до librarian", "u1", "Librarian", nil},
		{"неизвестная роль", "u1", "superuser", ErrValidation},
		{"собственная роль", "a1", "member", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeLibrary()
			err := NewUserService(api, testLogger()).ChangeRole(context.Background(), admin, tt.userID, tt.role)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ожидалась %v, получено %v", tt.wantErr, err)
				}
				if len(api.roleChanges) != 0 {
					t.Error("запрос не должен уходить на сервер")
				}
				return
			}
			if err != nil {
				t.Fatalf("ChangeRole: %v", err)
			}
			if api.roleChanges[tt.userID] != rbac.RoleLibrarian {
				t.Errorf("роль %q", api.roleChanges[tt.userID])
			}
		})
	}
}

func TestUsers_Delete(t *testing.T) {
	api := newFakeLibrary()
	svc := NewUserService(api, testLogger())
	admin := &model.User{ID: "a1", Role: rbac.RoleAdmin}

	if err := svc.Delete(context.Background(), admin, "a1"); !errors.Is(err, ErrValidation) {
		t.Errorf("удаление себя: ожидалась ErrValidation, получено %v", err)
	}
	if err := svc.Delete(context.Background(), admin, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "u1" {
		t.Errorf("удалены %v", api.deleted)
	}
}

func TestUsers_ProfileNotFound(t *testing.T) {
	svc := NewUserService(newFakeLibrary(), testLogger())
	if _, err := svc.Profile(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestUsers_RegisterValidation(t *testing.T) {
	svc := NewUserService(newFakeLibrary(), testLogger())

	_, err := svc.Register(context.Background(), apiclient.Registration{Username: "ab", Email: "nope", Password: "short"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ожидалась ValidationError, получено %v", err)
	}
	for _, f := range []string{"Username", "Email", "Password"} {
		if !verr.Has(f) {
			t.Errorf("поле %s должно быть в ошибке: %v", f, verr.Fields)
		}
	}

	u, err := svc.Register(context.Background(), apiclient.Registration{Username: "carol", Email: "carol@example.com", Password: "longenough"})
	if err != nil || u.Username != "carol" {
		t.Errorf("Register: %+v, %v", u, err)
	}
}

func TestUsers_UpdateProfileValidation(t *testing.T) {
	svc := NewUserService(newFakeLibrary(), testLogger())

	if _, err := svc.UpdateProfile(context.Background(), apiclient.ProfileUpdate{Password: "123"}); !errors.Is(err, ErrValidation) {
		t.Errorf("короткий пароль: ожидалась ErrValidation, получено %v", err)
	}
	u, err := svc.UpdateProfile(context.Background(), apiclient.ProfileUpdate{FullName: " Ann Lee "})
	if err != nil || u.FullName != "Ann Lee" {
		t.Errorf("UpdateProfile: %+v, %v", u, err)
	}
}
