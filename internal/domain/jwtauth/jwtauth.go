// Package jwtauth signs and verifies the access and refresh tokens issued
// by the OAuth Proxy, using HS256 exclusively.
package jwtauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature,
// expired, wrong token type, or missing required claims. Callers don't need
// to distinguish further — all of them produce a 401.
var ErrInvalidToken = errors.New("jwtauth: invalid token")

// refreshTokenType distinguishes access from refresh tokens via the "type" claim.
// Access tokens omit the claim entirely; only refresh tokens set it.
const refreshTokenType = "refresh"

// Claims is the JWT claim set shared by access and refresh tokens.
type Claims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	Type     string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with a single HMAC secret.
type Manager struct {
	secret []byte
}

// NewManager creates a Manager using secret as the HS256 signing key.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// IssueAccessToken mints an access token for clientID/subject/scope/audience
// expiring after ttl.
func (m *Manager) IssueAccessToken(issuer, subject, clientID, scope, audience string, ttl time.Duration) (string, error) {
	return m.sign(issuer, subject, clientID, scope, audience, ttl, "")
}

// IssueRefreshToken mints a refresh token, identical in shape to an access
// token but carrying type="refresh".
func (m *Manager) IssueRefreshToken(issuer, subject, clientID, scope, audience string, ttl time.Duration) (string, error) {
	return m.sign(issuer, subject, clientID, scope, audience, ttl, refreshTokenType)
}

func (m *Manager) sign(issuer, subject, clientID, scope, audience string, ttl time.Duration, typ string) (string, error) {
	// A random jti keeps two tokens minted in the same second distinct.
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		ClientID: clientID,
		Scope:    scope,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        hex.EncodeToString(jti),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess validates raw as a signed, unexpired access token and
// rejects it if client_id is missing or it carries type="refresh".
func (m *Manager) VerifyAccess(raw string) (*Claims, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.ClientID == "" || claims.Type == refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates raw as a signed, unexpired refresh token and
// rejects it if client_id is missing or it does not carry type="refresh".
func (m *Manager) VerifyRefresh(raw string) (*Claims, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.ClientID == "" || claims.Type != refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NormalizeAudience returns aud as a string slice regardless of whether the
// JWT library decoded it from a bare string or an array, per RFC 7519 §4.1.3.
func NormalizeAudience(claims *Claims) []string {
	return []string(claims.Audience)
}
