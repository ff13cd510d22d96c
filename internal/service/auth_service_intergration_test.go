//go:build integration

package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyagi221B/Backend/internal/config"
	"github.com/Tyagi221B/Backend/internal/jwt"
	"github.com/Tyagi221B/Backend/internal/password"
	"github.com/Tyagi221B/Backend/internal/repository"
	"github.com/Tyagi221B/Backend/internal/service"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL must be set for integration tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}

	return pool
}

type seededUser struct {
	ID       string
	Username string
	Email    string
}

func seedUser(t *testing.T, db *pgxpool.Pool) seededUser {
	ctx := context.Background()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)

	user := seededUser{
		ID:       uuid.NewString(),
		Username: "owner-" + uuid.NewString()[:8],
	}
	user.Email = user.Username + "@example.com"

	_, err := db.Exec(ctx, `
		INSERT INTO users (id, username, email, full_name, password_hash)
		VALUES ($1,$2,$3,$4,$5)
	`, user.ID, user.Username, user.Email, "Owner Example", string(hashed))
	assert.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, user.ID)
	})

	return user
}

func newRealAuthService(t *testing.T, db *pgxpool.Pool) *service.AuthService {
	t.Helper()

	logger := zap.NewExample()

	cfg := config.Config{
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}

	generator, err := jwt.NewGenerator(jwt.Config{
		AccessSecret:  []byte("integration-access-secret"),
		RefreshSecret: []byte("integration-refresh-secret"),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	require.NoError(t, err)

	userRepo := repository.NewPostgresUserRepo(db)

	return service.NewAuthService(
		userRepo,
		generator,
		password.NewHasher(bcrypt.DefaultCost),
		nil,
		cfg,
		logger,
	)
}

func TestAuthService_Login_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	user := seedUser(t, db)
	svc := newRealAuthService(t, db)

	ctx := context.Background()
	loggedIn, pair, err := svc.Login(ctx, user.Email, "secret123")

	assert.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, user.ID, loggedIn.ID)

	// Check refresh token saved in DB
	var refreshToken string
	err = db.QueryRow(ctx, `
		SELECT refresh_token FROM users WHERE id = $1
	`, user.ID).Scan(&refreshToken)
	assert.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, refreshToken)
}

func TestAuthService_RefreshRotation_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	user := seedUser(t, db)
	svc := newRealAuthService(t, db)

	ctx := context.Background()
	_, pair, err := svc.Login(ctx, user.Username, "secret123")
	require.NoError(t, err)

	// iat has one-second granularity; make sure the rotated token differs.
	time.Sleep(1100 * time.Millisecond)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The slot now holds the rotated value.
	var stored string
	err = db.QueryRow(ctx, `
		SELECT refresh_token FROM users WHERE id = $1
	`, user.ID).Scan(&stored)
	assert.NoError(t, err)
	assert.Equal(t, rotated.RefreshToken, stored)

	// Replaying the superseded token fails the freshness gate.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.Error(t, err)
}
