package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

// UserList — список пользователей.
type UserList struct {
	Users []model.User
	Total int
}

// ListUsers возвращает всех пользователей (admin).
func (c *Client) ListUsers(ctx context.Context) (*UserList, error) {
	var body listBody[model.User]
	if _, err := c.Do(ctx, http.MethodGet, "/users/all-users/", nil, nil, &body); err != nil {
		return nil, err
	}
	return &UserList{Users: body.Items, Total: body.Total}, nil
}

// SearchUsers ищет пользователей по username или email.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	var body listBody[model.User]
	if _, err := c.Do(ctx, http.MethodGet, "/users/search/", url.Values{"q": {query}}, nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// UpdateUserRole меняет роль пользователя.
func (c *Client) UpdateUserRole(ctx context.Context, userID string, role rbac.Role) error {
	path := "/users/update-role/" + url.PathEscape(userID) + "/"
	_, err := c.Do(ctx, http.MethodPatch, path, nil, map[string]string{"role": role.String()}, nil)
	return err
}

// DeleteUser удаляет пользователя. Идентификатор передаётся в теле запроса.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/users/delete-user/", nil, map[string]string{"user_id": userID}, nil)
	return err
}

// DashboardSummary возвращает сводку для дашборда администратора.
func (c *Client) DashboardSummary(ctx context.Context) (*model.DashboardSummary, error) {
	var out model.DashboardSummary
	if _, err := c.Do(ctx, http.MethodGet, "/users/dashboard/summary/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
