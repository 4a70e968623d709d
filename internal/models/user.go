package models

import "time"

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User зарегистрированный пользователь. PasswordHash заполняется только при входе.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Caller пользователь, выполняющий запрос, по данным токена.
type Caller struct {
	ID   string
	Role string
}

// IsAdmin сообщает, есть ли у вызывающего права администратора.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
