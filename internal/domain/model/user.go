package model

import "github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"

// User — пользователь библиотеки.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Role            rbac.Role `json:"role"`
	FullName        string    `json:"full_name,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	ProfilePicture  string    `json:"profile_picture_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	DeliveryService bool      `json:"delivery_service"`
	CreatedAt       Timestamp `json:"created_at"`
}

// DisplayName возвращает полное имя, а при его отсутствии — username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// DashboardSummary — сводка для дашборда администратора.
type DashboardSummary struct {
	TotalUsers    int `json:"total_users"`
	TotalBooks    int `json:"total_books"`
	ActiveBorrows int `json:"active_borrows"`
	TotalBorrows  int `json:"total_borrows"`
}
