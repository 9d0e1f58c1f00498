package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video_pipeline_service/internal/account/domain"
	"video_pipeline_service/pkg/token"
)

// AccountRepository definition get Account info
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
}

type accountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository create a AccountRepository
func NewAccountRepository(db *pgxpool.Pool) AccountRepository {
	return &accountRepository{db: db}
}

const uniqueViolation = "23505"

func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	err := r.db.QueryRow(ctx,
		"INSERT INTO accounts(id, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING created_at",
		a.ID, a.Email, a.PasswordHash, string(a.Role),
	).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, "email", email)
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, "id", id)
}

// findOne column is one of the fixed names above, never user input
func (r *accountRepository) findOne(ctx context.Context, column, value string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT id, email, password_hash, role, created_at FROM accounts WHERE %s = $1", column),
		value,
	)
	var (
		a    domain.Account
		role string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	a.Role = roleOf(role)
	return &a, nil
}

func roleOf(s string) token.RoleType {
	if r := token.RoleType(s); r.Valid() {
		return r
	}
	return token.RoleCreator
}
