package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tyagi221B/Backend/internal/domain"
)

var _ UserRepository = (*PostgresUserRepo)(nil)

const userColumns = `id, username, email, full_name, avatar_url, avatar_ref,
cover_image_url, cover_image_ref, watch_history, password_hash,
COALESCE(refresh_token, ''), created_at, updated_at`

// PostgresUserRepo implements UserRepository on a pgx pool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const insertUserSQL = `INSERT INTO users (id, username, email, full_name, avatar_url, avatar_ref, cover_image_url, cover_image_ref, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.AvatarURL,
		user.AvatarRef,
		user.CoverImageURL,
		user.CoverImageRef,
		user.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1`, identifier)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) SetRefreshToken(ctx context.Context, userID, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		userID, token)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set refresh token: %w", pgx.ErrNoRows)
	}
	return nil
}

// RotateRefreshToken is the compare-and-swap gate of the rotation protocol:
// the WHERE clause matches only while the slot still holds current, so two
// racing rotations can never both succeed.
func (r *PostgresUserRepo) RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $3, updated_at = now() WHERE id = $1 AND refresh_token = $2`,
		userID, current, next)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) ClearRefreshToken(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password hash: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresUserRepo) UpdateAccount(ctx context.Context, userID, fullName, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET full_name = $2, email = $3, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		userID, fullName, email)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("update account: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, userID, url, ref string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET avatar_url = $2, avatar_ref = $3, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		userID, url, ref)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("update avatar: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) UpdateCoverImage(ctx context.Context, userID, url, ref string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET cover_image_url = $2, cover_image_ref = $3, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		userID, url, ref)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("update cover image: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.AvatarRef,
		&u.CoverImageURL,
		&u.CoverImageRef,
		&u.WatchHistory,
		&u.PasswordHash,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
