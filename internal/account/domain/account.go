package domain

import (
	"errors"
	"time"

	"video_pipeline_service/pkg/encrypt"
	"video_pipeline_service/pkg/token"
)

var (
	// ErrAccountExists signup with a registered email
	ErrAccountExists = errors.New("user already exists")
	// ErrAccountNotFound no account for the lookup
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials unknown email or wrong password, deliberately indistinguishable
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account 用來表示使用者
type Account struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Role         token.RoleType `json:"role"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// IsPasswordMatch 密碼驗證
func (a *Account) IsPasswordMatch(inputPwd string) error {
	return encrypt.CheckPassword(a.PasswordHash, inputPwd)
}

// Session token handed out on signup and login
type Session struct {
	Token   string   `json:"token"`
	Account *Account `json:"user"`
}
