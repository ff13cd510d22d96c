package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/Tyagi221B/Backend/internal/domain"
)

// Verification failures. All of them surface to clients as 401; callers keep
// the distinction for logging.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// AccessTokenClaims is the custom payload of an access token.
type AccessTokenClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Config holds the signing material and lifetimes for both token classes.
// Access and refresh secrets must differ so that one leaked key cannot forge
// the other class.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// Generator signs and verifies HS256 access and refresh tokens.
type Generator struct {
	accessSigner  jose.Signer
	refreshSigner jose.Signer
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewGenerator validates the config and builds a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("jwt: both signing secrets are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: token lifetimes must be positive")
	}

	accessSigner, err := newHS256Signer(cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt: access signer: %w", err)
	}
	refreshSigner, err := newHS256Signer(cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt: refresh signer: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Generator{
		accessSigner:  accessSigner,
		refreshSigner: refreshSigner,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           now,
	}, nil
}

func newHS256Signer(secret []byte) (jose.Signer, error) {
	return jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
}

// AccessTTL returns the configured access token lifetime.
func (g *Generator) AccessTTL() time.Duration { return g.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (g *Generator) RefreshTTL() time.Duration { return g.refreshTTL }

// SignAccess mints a short-lived access token carrying the user's identity
// claims.
func (g *Generator) SignAccess(user domain.User) (string, error) {
	now := g.now()
	std := gojwt.Claims{
		Subject:  user.ID,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(g.accessTTL)),
	}
	custom := AccessTokenClaims{
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	}
	raw, err := gojwt.Signed(g.accessSigner).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return raw, nil
}

// SignRefresh mints a long-lived refresh token carrying only the user id.
func (g *Generator) SignRefresh(userID string) (string, error) {
	now := g.now()
	std := gojwt.Claims{
		Subject:  userID,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(g.refreshTTL)),
	}
	raw, err := gojwt.Signed(g.refreshSigner).Claims(std).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return raw, nil
}

// VerifyAccess checks structure, signature, and expiry of an access token,
// in that order, and returns its claims.
func (g *Generator) VerifyAccess(raw string) (*gojwt.Claims, *AccessTokenClaims, error) {
	var custom AccessTokenClaims
	std, err := g.verify(raw, g.accessSecret, &custom)
	if err != nil {
		return nil, nil, err
	}
	return std, &custom, nil
}

// VerifyRefresh checks structure, signature, and expiry of a refresh token.
// Callers must still compare the raw value against the stored slot; a token
// that passes here can already have been rotated out.
func (g *Generator) VerifyRefresh(raw string) (*gojwt.Claims, error) {
	return g.verify(raw, g.refreshSecret, nil)
}

func (g *Generator) verify(raw string, secret []byte, custom any) (*gojwt.Claims, error) {
	tok, err := gojwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	var std gojwt.Claims
	dests := []any{&std}
	if custom != nil {
		dests = append(dests, custom)
	}
	if err := tok.Claims(secret, dests...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenSignature, err)
	}

	if err := std.Validate(gojwt.Expected{Time: g.now()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if std.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	return &std, nil
}
