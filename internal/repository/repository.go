package repository

import (
	"context"
	"errors"

	"github.com/Tyagi221B/Backend/internal/domain"
)

// ErrDuplicate reports a unique-constraint collision on username or email.
var ErrDuplicate = errors.New("username or email already taken")

// UserRepository is the persistence boundary for credential records.
// Not-found lookups return an error wrapping pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	// GetByIdentifier looks a user up by normalized username or email.
	GetByIdentifier(ctx context.Context, identifier string) (domain.User, error)

	// SetRefreshToken overwrites the single refresh token slot, implicitly
	// revoking whatever session held it before.
	SetRefreshToken(ctx context.Context, userID, token string) error
	// RotateRefreshToken replaces the slot only if it still holds current.
	// It returns false when the conditional write matched no row, which
	// means a concurrent rotation or logout won the race.
	RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID string) error

	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateAccount(ctx context.Context, userID, fullName, email string) (domain.User, error)
	UpdateAvatar(ctx context.Context, userID, url, ref string) (domain.User, error)
	UpdateCoverImage(ctx context.Context, userID, url, ref string) (domain.User, error)
}
