package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

// Credentials — данные для входа.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration — данные для регистрации.
type Registration struct {
	Username string    `json:"username" validate:"required,min=3,max=50"`
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=8"`
	Role     rbac.Role `json:"role,omitempty"`
}

// ProfileUpdate — изменяемые поля собственного профиля. Пустые поля
// отправляются (очистка), пустой пароль — нет.
type ProfileUpdate struct {
	FullName string `json:"full_name" validate:"max=100"`
	Phone    string `json:"phone" validate:"max=20"`
	Address  string `json:"address" validate:"max=200"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// LoginResult — ответ на вход.
type LoginResult struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// Login выполняет вход и сохраняет полученные токены в TokenStore.
// Access token берётся из тела, refresh token — из тела или cookie.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	req, err := newRequest(http.MethodPost, "/users/login/", nil).withJSON(creds)
	if err != nil {
		return nil, err
	}
	req.public = true

	resp, err := c.gw.send(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, newAPIError(resp.status, resp.body)
	}

	pair := extractTokens(resp.header, resp.body)
	if pair.access == "" {
		return nil, ErrNoToken
	}

	var result LoginResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("декодирование ответа входа: %w", err)
	}

	c.tokens.SetTokens(pair.access, pair.refresh)
	return &result, nil
}

// Register создаёт учётную запись. Роль по умолчанию назначает сервер.
func (c *Client) Register(ctx context.Context, reg Registration) (*model.User, error) {
	req, err := newRequest(http.MethodPost, "/users/register/", nil).withJSON(reg)
	if err != nil {
		return nil, err
	}
	req.public = true

	var out struct {
		User model.User `json:"user"`
	}
	if _, err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// profileBody — профиль приходит либо как {"user": {...}}, либо как сам объект.
type profileBody struct {
	model.User
	Wrapped *model.User `json:"user"`
}

func (p profileBody) user() *model.User {
	if p.Wrapped != nil {
		return p.Wrapped
	}
	u := p.User
	return &u
}

// Profile возвращает профиль текущего пользователя.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var body profileBody
	if _, err := c.Do(ctx, http.MethodGet, "/users/profile/", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.user(), nil
}

// ProfileByID возвращает профиль другого пользователя (admin, librarian).
func (c *Client) ProfileByID(ctx context.Context, userID string) (*model.User, error) {
	var body profileBody
	path := "/users/profile/" + url.PathEscape(userID)
	if _, err := c.Do(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	return body.user(), nil
}

// UpdateProfile изменяет собственный профиль.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*model.User, error) {
	var body profileBody
	if _, err := c.Do(ctx, http.MethodPut, "/users/profile/update/", nil, upd, &body); err != nil {
		return nil, err
	}
	return body.user(), nil
}

// ForgotPassword запрашивает письмо со ссылкой сброса пароля.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.publicMessage(ctx, "/users/forgot-password/", map[string]string{"email": email})
}

// ResetPassword устанавливает новый пароль по токену из письма.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return c.publicMessage(ctx, "/users/reset-password/", map[string]string{
		"token":        token,
		"new_password": newPassword,
	})
}

func (c *Client) publicMessage(ctx context.Context, path string, payload any) (string, error) {
	req, err := newRequest(http.MethodPost, path, nil).withJSON(payload)
	if err != nil {
		return "", err
	}
	req.public = true

	var out struct {
		Message string `json:"message"`
	}
	if _, err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
