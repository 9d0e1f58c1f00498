package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"video_pipeline_service/internal/account/domain"
	"video_pipeline_service/internal/account/repository"
	"video_pipeline_service/pkg/encrypt"
	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidEmail signup email failed parsing
var ErrInvalidEmail = errors.New("invalid email")

// AccountUseCase 這裡封裝了對外提供的帳號服務
type AccountUseCase interface {
	Signup(ctx context.Context, email, password string) (*domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
}

type accountUseCase struct {
	repo repository.AccountRepository
}

// NewAccountUseCase 建立一個新的 AccountUseCase
func NewAccountUseCase(repo repository.AccountRepository) AccountUseCase {
	return &accountUseCase{repo: repo}
}

// 讓 test 可以替換
var (
	hashPassword = encrypt.HashPassword
	newAccountID = func() string { return uuid.NewString() }
)

// Signup 建立 creator 帳號並簽發 token
func (u *accountUseCase) Signup(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	if _, err := u.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, errprocess.Wrap(err, "signup lookup")
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:           newAccountID(),
		Email:        email,
		PasswordHash: hashed,
		Role:         token.RoleCreator,
	}
	if err := u.repo.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return nil, err
		}
		return nil, errprocess.Wrap(err, "signup create")
	}
	logger.Log.Info("account created", zap.String("accountID", account.ID))
	return u.session(account)
}

// Login 驗證密碼並簽發 token
func (u *accountUseCase) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, err := u.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, errprocess.Wrap(err, "login lookup")
	}
	if err := account.IsPasswordMatch(password); err != nil {
		logger.Log.Warn("password mismatch", zap.String("accountID", account.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return u.session(account)
}

func (u *accountUseCase) session(a *domain.Account) (*domain.Session, error) {
	t, err := token.GenerateJWTWrapper(a.ID, string(a.Role))
	if err != nil {
		return nil, errprocess.Wrap(err, "sign token")
	}
	return &domain.Session{Token: t, Account: a}, nil
}
