package service_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyagi221B/Backend/internal/config"
	"github.com/Tyagi221B/Backend/internal/domain"
	"github.com/Tyagi221B/Backend/internal/jwt"
	"github.com/Tyagi221B/Backend/internal/password"
	"github.com/Tyagi221B/Backend/internal/repository"
	"github.com/Tyagi221B/Backend/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*service.AuthService, *memoryUserRepo, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	gen, err := jwt.NewGenerator(jwt.Config{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Now:           clock.Now,
	})
	require.NoError(t, err)

	repo := newMemoryUserRepo()
	svc := service.NewAuthService(repo, gen, password.NewHasher(4), nil, config.Config{}, zap.NewNop())
	return svc, repo, clock
}

func registerAndLogin(t *testing.T, svc *service.AuthService) (domain.PublicUser, domain.TokenPair) {
	t.Helper()
	ctx := context.Background()

	user, err := svc.Register(ctx, service.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
		FullName: "Alice Example",
	})
	require.NoError(t, err)

	loggedIn, pair, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.Equal(t, user.ID, loggedIn.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return loggedIn, pair
}

func requireAuthStatus(t *testing.T, err error, status int) *service.AuthError {
	t.Helper()
	var authErr *service.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, status, authErr.Status)
	return authErr
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{Username: "alice"})
	requireAuthStatus(t, err, http.StatusBadRequest)
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "pw", FullName: "Alice",
	})
	require.NoError(t, err)

	// Same username in different case must still collide.
	_, err = svc.Register(ctx, service.RegisterInput{
		Username: "ALICE", Email: "other@example.com", Password: "pw", FullName: "Other",
	})
	requireAuthStatus(t, err, http.StatusConflict)

	_, err = svc.Register(ctx, service.RegisterInput{
		Username: "bob", Email: "Alice@Example.com", Password: "pw", FullName: "Bob",
	})
	requireAuthStatus(t, err, http.StatusConflict)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "secret123", FullName: "Alice",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "not-the-password")
	requireAuthStatus(t, err, http.StatusUnauthorized)

	_, _, err = svc.Login(ctx, "nobody", "secret123")
	requireAuthStatus(t, err, http.StatusUnauthorized)
}

func TestLoginByEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "secret123", FullName: "Alice",
	})
	require.NoError(t, err)

	_, pair, err := svc.Login(ctx, "Alice@Example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestRefreshRotation(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, pair := registerAndLogin(t, svc)
	r1 := pair.RefreshToken

	clock.Advance(time.Second)
	rotated, err := svc.Refresh(ctx, r1)
	require.NoError(t, err)
	r2 := rotated.RefreshToken
	require.NotEqual(t, r1, r2)

	// R1 is still within its own expiry but has been rotated out.
	_, err = svc.Refresh(ctx, r1)
	authErr := requireAuthStatus(t, err, http.StatusUnauthorized)
	require.Contains(t, authErr.Description, "expired or used")

	clock.Advance(time.Second)
	_, err = svc.Refresh(ctx, r2)
	require.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, pair := registerAndLogin(t, svc)

	// Signed with the access key class: must fail the refresh verifier.
	_, err := svc.Refresh(ctx, pair.AccessToken)
	requireAuthStatus(t, err, http.StatusUnauthorized)
}

func TestRefreshMissingToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "")
	requireAuthStatus(t, err, http.StatusUnauthorized)

	_, err = svc.Refresh(context.Background(), "not-a-token")
	requireAuthStatus(t, err, http.StatusUnauthorized)
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	user, pair := registerAndLogin(t, svc)
	require.NoError(t, svc.Logout(ctx, user.ID))

	clock.Advance(time.Second)
	_, err := svc.Refresh(ctx, pair.RefreshToken)
	authErr := requireAuthStatus(t, err, http.StatusUnauthorized)
	require.Contains(t, authErr.Description, "expired or used")
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, pair := registerAndLogin(t, svc)
	clock.Advance(time.Second)

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		requireAuthStatus(t, err, http.StatusUnauthorized)
	}
	require.Equal(t, 1, winners)
}

func TestAuthenticate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	user, pair := registerAndLogin(t, svc)

	resolved, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, resolved.ID)
	require.Equal(t, "alice", resolved.Username)

	// Deleted identity: a structurally valid token no longer resolves.
	repo.delete(user.ID)
	_, err = svc.Authenticate(ctx, pair.AccessToken)
	requireAuthStatus(t, err, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	user, _ := registerAndLogin(t, svc)

	err := svc.ChangePassword(ctx, user.ID, "wrong-old", "newsecret")
	requireAuthStatus(t, err, http.StatusBadRequest)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "secret123", "newsecret"))

	_, _, err = svc.Login(ctx, "alice", "secret123")
	requireAuthStatus(t, err, http.StatusUnauthorized)
	_, _, err = svc.Login(ctx, "alice", "newsecret")
	require.NoError(t, err)
}

func TestUpdateAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	user, _ := registerAndLogin(t, svc)

	updated, err := svc.UpdateAccount(ctx, user.ID, "Alice Updated", "new@example.com")
	require.NoError(t, err)
	require.Equal(t, "Alice Updated", updated.FullName)
	require.Equal(t, "new@example.com", updated.Email)

	_, err = svc.UpdateAccount(ctx, user.ID, "", "")
	requireAuthStatus(t, err, http.StatusBadRequest)
}

// memoryUserRepo is an in-memory UserRepository with the same CAS semantics
// as the Postgres implementation.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

var _ repository.UserRepository = (*memoryUserRepo)(nil)

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]domain.User)}
}

func (m *memoryUserRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return domain.User{}, repository.ErrDuplicate
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *memoryUserRepo) GetByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) SetRefreshToken(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.RefreshToken = token
	m.users[userID] = user
	return nil
}

func (m *memoryUserRepo) RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok || user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	m.users[userID] = user
	return true, nil
}

func (m *memoryUserRepo) ClearRefreshToken(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	user.RefreshToken = ""
	m.users[userID] = user
	return nil
}

func (m *memoryUserRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = hash
	m.users[userID] = user
	return nil
}

func (m *memoryUserRepo) UpdateAccount(ctx context.Context, userID, fullName, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	for id, existing := range m.users {
		if id != userID && existing.Email == email {
			return domain.User{}, repository.ErrDuplicate
		}
	}
	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = time.Now()
	m.users[userID] = user
	return user, nil
}

func (m *memoryUserRepo) UpdateAvatar(ctx context.Context, userID, url, ref string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.AvatarURL = url
	user.AvatarRef = ref
	m.users[userID] = user
	return user, nil
}

func (m *memoryUserRepo) UpdateCoverImage(ctx context.Context, userID, url, ref string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.CoverImageURL = url
	user.CoverImageRef = ref
	m.users[userID] = user
	return user, nil
}
