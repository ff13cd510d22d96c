package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Tyagi221B/Backend/internal/config"
	"github.com/Tyagi221B/Backend/internal/domain"
	"github.com/Tyagi221B/Backend/internal/jwt"
	"github.com/Tyagi221B/Backend/internal/password"
	"github.com/Tyagi221B/Backend/internal/repository"
	"github.com/Tyagi221B/Backend/internal/storage"
)

// AuthService implements the identity and session lifecycle: registration,
// password login, access token validation, refresh rotation, and logout.
type AuthService struct {
	users  repository.UserRepository
	tokens *jwt.Generator
	hasher *password.Hasher
	media  storage.ObjectStore
	cfg    config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuthService wires the service with its collaborators.
func NewAuthService(
	users repository.UserRepository,
	tokens *jwt.Generator,
	hasher *password.Hasher,
	media storage.ObjectStore,
	cfg config.Config,
	logger *zap.Logger,
) *AuthService {
	if media == nil {
		media = storage.NoopStore{}
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		media:  media,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("auth-service"),
	}
}

// Tokens exposes the generator so transport code can derive cookie lifetimes.
func (s *AuthService) Tokens() *jwt.Generator { return s.tokens }

// RegisterInput carries the registration payload. Media references are
// produced by the upload collaborator before registration reaches this core.
type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	FullName      string
	AvatarURL     string
	AvatarRef     string
	CoverImageURL string
	CoverImageRef string
}

// Register creates a credential record after a case-insensitive uniqueness
// check on username and email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	username := normalizeIdentifier(in.Username)
	email := normalizeIdentifier(in.Email)
	if username == "" || email == "" || strings.TrimSpace(in.Password) == "" || strings.TrimSpace(in.FullName) == "" {
		return domain.PublicUser{}, errInvalidRequest("All fields are required.")
	}

	for _, identifier := range []string{username, email} {
		if _, err := s.users.GetByIdentifier(ctx, identifier); err == nil {
			return domain.PublicUser{}, errConflict("User with email or username already exists.")
		} else if !errors.Is(err, pgx.ErrNoRows) {
			span.RecordError(err)
			return domain.PublicUser{}, fmt.Errorf("check existing user: %w", err)
		}
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(in.FullName),
		AvatarURL:     in.AvatarURL,
		AvatarRef:     in.AvatarRef,
		CoverImageURL: in.CoverImageURL,
		CoverImageRef: in.CoverImageRef,
		PasswordHash:  hashed,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.PublicUser{}, errConflict("User with email or username already exists.")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("create user: %w", err)
	}

	s.audit("user.register.success", "user_id", created.ID, "username", created.Username)
	return created.Public(), nil
}

// Login verifies the password for a username-or-email identifier and mints a
// token pair. The refresh value overwrites the record's slot, revoking any
// previous session.
func (s *AuthService) Login(ctx context.Context, identifier, plaintext string) (domain.PublicUser, domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized := normalizeIdentifier(identifier)
	if normalized == "" || plaintext == "" {
		return domain.PublicUser{}, domain.TokenPair{}, errInvalidRequest("Username or email and password are required.")
	}

	user, err := s.users.GetByIdentifier(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublicUser{}, domain.TokenPair{}, errUnauthorized("Invalid user credentials.")
		}
		span.RecordError(err)
		return domain.PublicUser{}, domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		s.audit("user.login.invalid_password", "user_id", user.ID)
		return domain.PublicUser{}, domain.TokenPair{}, errUnauthorized("Invalid user credentials.")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, domain.TokenPair{}, err
	}

	s.audit("user.login.success", "user_id", user.ID)
	return user.Public(), pair, nil
}

// Refresh rotates a refresh token. Two independent gates guard the rotation:
// cryptographic validity first, then freshness against the stored slot. The
// conditional write in the repository makes the read-compare-write sequence
// atomic per identity, so of N concurrent calls exactly one succeeds.
func (s *AuthService) Refresh(ctx context.Context, candidate string) (domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if strings.TrimSpace(candidate) == "" {
		return domain.TokenPair{}, errUnauthorized("Unauthorized request.")
	}

	claims, err := s.tokens.VerifyRefresh(candidate)
	if err != nil {
		s.audit("user.refresh.rejected", "reason", err.Error())
		return domain.TokenPair{}, errUnauthorized("Invalid refresh token.")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, errUnauthorized("Invalid refresh token.")
		}
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	// Exact-value check against the single live slot. A well-signed token
	// that was already rotated out or cleared by logout fails here.
	if user.RefreshToken == "" || user.RefreshToken != candidate {
		s.audit("user.refresh.stale_token", "user_id", user.ID)
		return domain.TokenPair{}, errUnauthorized("Refresh token is expired or used.")
	}

	accessToken, err := s.tokens.SignAccess(user)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.tokens.SignRefresh(user.ID)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, candidate, refreshToken)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// Lost the write race to a concurrent rotation or logout; this call
		// counts as a stale use, not a success.
		s.audit("user.refresh.lost_race", "user_id", user.ID)
		return domain.TokenPair{}, errUnauthorized("Refresh token is expired or used.")
	}

	s.audit("user.refresh.success", "user_id", user.ID)
	return domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout clears the refresh slot unconditionally. Any outstanding refresh
// token for the identity fails the freshness gate afterwards.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.audit("user.logout.success", "user_id", userID)
	return nil
}

// Authenticate resolves an access token to a live, sanitized identity. It is
// read-only and never mutates the record.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Authenticate")
	defer span.End()

	claims, _, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		s.audit("user.authenticate.rejected", "reason", err.Error())
		return domain.PublicUser{}, errUnauthorized("Invalid access token.")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublicUser{}, errUnauthorized("Invalid access token.")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("load user: %w", err)
	}

	return user.Public(), nil
}

// ChangePassword verifies the old password and stores a fresh hash. The
// refresh slot is left untouched.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	if strings.TrimSpace(newPassword) == "" {
		return errInvalidRequest("New password is required.")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return errInvalidRequest("Invalid old password.")
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, hashed); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password hash: %w", err)
	}

	s.audit("user.password_change.success", "user_id", userID)
	return nil
}

// UpdateAccount mutates display fields. Username stays immutable.
func (s *AuthService) UpdateAccount(ctx context.Context, userID, fullName, email string) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UpdateAccount")
	defer span.End()

	fullName = strings.TrimSpace(fullName)
	email = normalizeIdentifier(email)
	if fullName == "" || email == "" {
		return domain.PublicUser{}, errInvalidRequest("All fields are required.")
	}

	updated, err := s.users.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.PublicUser{}, errConflict("Email already in use.")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("update account: %w", err)
	}

	s.audit("user.account_update.success", "user_id", userID)
	return updated.Public(), nil
}

// UpdateAvatar swaps the avatar reference and asks the object store to drop
// the replaced one. Deletion failures are logged, not surfaced.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID, url, ref string) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UpdateAvatar")
	defer span.End()

	if strings.TrimSpace(url) == "" {
		return domain.PublicUser{}, errInvalidRequest("Avatar file is required.")
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("load user: %w", err)
	}

	updated, err := s.users.UpdateAvatar(ctx, userID, url, ref)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("update avatar: %w", err)
	}

	if current.AvatarRef != "" && current.AvatarRef != ref {
		if err := s.media.Delete(ctx, current.AvatarRef); err != nil {
			s.logger.Warn("failed to delete replaced avatar",
				zap.String("user_id", userID),
				zap.String("ref", current.AvatarRef),
				zap.Error(err),
			)
		}
	}

	s.audit("user.avatar_update.success", "user_id", userID)
	return updated.Public(), nil
}

// UpdateCoverImage mirrors UpdateAvatar for the cover image slot.
func (s *AuthService) UpdateCoverImage(ctx context.Context, userID, url, ref string) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UpdateCoverImage")
	defer span.End()

	if strings.TrimSpace(url) == "" {
		return domain.PublicUser{}, errInvalidRequest("Cover image file is required.")
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("load user: %w", err)
	}

	updated, err := s.users.UpdateCoverImage(ctx, userID, url, ref)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("update cover image: %w", err)
	}

	if current.CoverImageRef != "" && current.CoverImageRef != ref {
		if err := s.media.Delete(ctx, current.CoverImageRef); err != nil {
			s.logger.Warn("failed to delete replaced cover image",
				zap.String("user_id", userID),
				zap.String("ref", current.CoverImageRef),
				zap.Error(err),
			)
		}
	}

	s.audit("user.cover_update.success", "user_id", userID)
	return updated.Public(), nil
}

func (s *AuthService) issueTokens(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	accessToken, err := s.tokens.SignAccess(user)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.tokens.SignRefresh(user.ID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, kv ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Sugar().Infow(event, kv...)
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
