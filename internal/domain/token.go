package domain

// TokenPair carries a freshly minted access and refresh token. The refresh
// value is also persisted into the owning User's RefreshToken slot; the
// access token is never stored server-side.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
