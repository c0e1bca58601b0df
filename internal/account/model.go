package account

import (
	"time"

	"campuscredits/internal/access"
)

type Account struct {
	ID            int64       `db:"id" json:"id"`
	DisplayName   string      `db:"display_name" json:"display_name"`
	Email         string      `db:"email" json:"email"`
	PasswordHash  string      `db:"password_hash" json:"-"`
	Role          access.Role `db:"role" json:"role"`
	CreditBalance int64       `db:"credit_balance" json:"credit_balance"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

type RegisterRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	Account      Account `json:"account"`
}

type RefreshResponse struct {
	AccessToken string  `json:"access_token"`
	Account     Account `json:"account"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=student staff admin"`
}
