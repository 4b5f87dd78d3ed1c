package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antonwidjaya/store-api/internal/domain/user"
)

const (
	createUserSQL = `INSERT INTO users (user_id, name, email, password_hash, address, phone_number, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getUserByIDSQL = `SELECT user_id, name, email, password_hash, address, phone_number, role, created_at
		FROM users WHERE user_id = $1`

	getUserByEmailSQL = `SELECT user_id, name, email, password_hash, address, phone_number, role, created_at
		FROM users WHERE email = $1`

	listUsersSQL = `SELECT user_id, name, email, password_hash, address, phone_number, role, created_at
		FROM users ORDER BY created_at`

	searchUsersSQL = `SELECT user_id, name, email, password_hash, address, phone_number, role, created_at
		FROM users WHERE name ILIKE '%' || $1 || '%' ORDER BY created_at`

	updateUserSQL = `UPDATE users
		SET name = $2, email = $3, password_hash = $4, address = $5, phone_number = $6, role = $7
		WHERE user_id = $1`

	deleteUserSQL = `DELETE FROM users WHERE user_id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create persists a new user. A duplicate email yields user.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Address, u.PhoneNumber, u.Role,
	)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// GetByID returns a single user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}

// GetByEmail returns a single user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserByEmailSQL, email)
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &u, nil
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

// Search returns users whose name matches the query, case-insensitively.
func (r *UserRepository) Search(ctx context.Context, name string) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, searchUsersSQL, name)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

// Update overwrites the stored user record.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	tag, err := r.pool.Exec(ctx, updateUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Address, u.PhoneNumber, u.Role,
	)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return fmt.Errorf("deleting user %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Address, &u.PhoneNumber, &u.Role, &u.CreatedAt,
	)
	return u, err
}
