package rest

import (
	"context"
	"errors"

	"github.com/bwise1/outpost/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, username, email, password_hash, age, auth_provider, avatar_url,
	is_premium, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Age,
		&user.AuthProvider,
		&user.AvatarURL,
		&user.IsPremium,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (api *API) UserExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	stmt := `
		SELECT
			EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1)),
			EXISTS(SELECT 1 FROM users WHERE email = $2)`

	err = api.Deps.DB.Pool().QueryRow(ctx, stmt, username, email).Scan(&usernameTaken, &emailTaken)
	return usernameTaken, emailTaken, err
}

func (api *API) CreateUserRepo(ctx context.Context, user model.User) (model.User, error) {
	stmt := `
		INSERT INTO users (id, username, email, password_hash, age, auth_provider, avatar_url, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + userColumns

	return scanUser(api.Deps.DB.Pool().QueryRow(ctx, stmt,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Age, user.AuthProvider, user.AvatarURL,
	))
}

func (api *API) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(api.Deps.DB.Pool().QueryRow(ctx, stmt, email))
}

func (api *API) GetUserByID(ctx context.Context, id string) (model.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(api.Deps.DB.Pool().QueryRow(ctx, stmt, id))
}

func (api *API) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := api.Deps.DB.Pool().Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	return err
}
