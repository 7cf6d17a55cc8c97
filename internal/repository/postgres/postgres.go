package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
	maxListLimit    = 200
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.UserRepository = (*Repository)(nil)

const userColumns = `id::text, email, name, role, password_hash, auth_provider, provider_subject, created_at, updated_at, last_login_at`

// CreateUser inserts a user. A duplicate email yields repository.ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO users (id, email, name, role, password_hash, auth_provider, provider_subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	args := insertArgs(user)
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return translateError(err)
	}
	user.Email = domain.NormalizeEmail(user.Email)
	user.UpdatedAt = user.CreatedAt
	return nil
}

// FindOrCreateUser inserts user unless a row with the same email exists. The
// insert relies on the unique email index so concurrent first logins resolve
// to a single row.
func (r *Repository) FindOrCreateUser(ctx context.Context, user *domain.User) (*domain.User, bool, error) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return nil, false, repository.ErrInvalidArgument
	}
	query := `INSERT INTO users (id, email, name, role, password_hash, auth_provider, provider_subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (email) DO NOTHING
		RETURNING ` + userColumns
	inserted, err := scanUser(r.pool.QueryRow(ctx, query, insertArgs(user)...))
	switch {
	case err == nil:
		return inserted, true, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, err
	}
	existing, err := r.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, false, fmt.Errorf("load existing user: %w", err)
	}
	return existing, false, nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, repository.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	return scanUser(r.pool.QueryRow(ctx, query, trimmed))
}

// ListUsers returns users ordered by creation time, newest first.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, email ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserRole stores a new role and returns the updated row.
func (r *Repository) UpdateUserRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, repository.ErrInvalidArgument
	}
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id::text = $1 RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, strings.TrimSpace(id), string(role)))
	if err != nil {
		return nil, translateError(err)
	}
	return user, nil
}

// RecordLogin stamps the last successful login time.
func (r *Repository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login_at = $2 WHERE id::text = $1`
	tag, err := r.pool.Exec(ctx, query, strings.TrimSpace(id), at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func insertArgs(user *domain.User) []any {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		user.CreatedAt = createdAt
	}
	provider := strings.TrimSpace(user.AuthProvider)
	if provider == "" {
		provider = domain.AuthProviderPassword
	}
	var hash []byte
	if len(user.PasswordHash) > 0 {
		hash = user.PasswordHash
	}
	return []any{
		strings.TrimSpace(user.ID),
		domain.NormalizeEmail(user.Email),
		strings.TrimSpace(user.Name),
		string(user.Role),
		hash,
		provider,
		nullString(user.ProviderSubject),
		createdAt.UTC(),
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		role        string
		subject     sql.NullString
		lastLoginAt sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&role,
		&user.PasswordHash,
		&user.AuthProvider,
		&subject,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(strings.TrimSpace(role))
	if subject.Valid {
		user.ProviderSubject = subject.String
	}
	if lastLoginAt.Valid {
		value := lastLoginAt.Time.UTC()
		user.LastLoginAt = &value
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return repository.ErrConflict
		case checkViolation:
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullString(value string) sql.NullString {
	trimmed := strings.TrimSpace(value)
	return sql.NullString{String: trimmed, Valid: trimmed != ""}
}
