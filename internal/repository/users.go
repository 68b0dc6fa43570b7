package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/bookshelf/internal/domain"
)

// UsersRepository stores accounts.
type UsersRepository struct {
	db DBTX
}

const userColumns = `
    id,
    username,
    first_name,
    last_name,
    password_hash,
    is_staff,
    created_at
`

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	IsStaff      bool
}

// Create inserts a user. Duplicate usernames yield ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	const query = `
        INSERT INTO users (username, first_name, last_name, password_hash, is_staff)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, params.Username, params.FirstName, params.LastName, params.PasswordHash, params.IsStaff))
	if err != nil {
		return domain.User{}, translateError("create user", err)
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, translateError("get user", err)
	}
	return user, nil
}

// GetByUsername fetches a user by username.
func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return domain.User{}, translateError("get user", err)
	}
	return user, nil
}

// Delete removes a user. Owned books keep existing with no owner; the user's
// relations are removed.
func (r *UsersRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsStaff,
		&user.CreatedAt,
	)
	return user, err
}
