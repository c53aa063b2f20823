// Package auth issues and validates the bearer identities required by the
// enrichment API.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

// ErrInvalidToken is returned when a bearer token fails validation.
var ErrInvalidToken = eris.New("auth: invalid token")

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID string
	Role   string
}

// Claims carries the identity inside a JWT.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager handles JWT token generation and validation.
type Manager struct {
	secret        []byte
	ttl           time.Duration
	elevatedRoles map[string]struct{}
}

// NewManager creates a token manager. elevatedRoles lists the roles allowed
// to act on jobs they do not own.
func NewManager(secret string, ttl time.Duration, elevatedRoles []string) *Manager {
	roles := make(map[string]struct{}, len(elevatedRoles))
	for _, r := range elevatedRoles {
		roles[r] = struct{}{}
	}
	return &Manager{secret: []byte(secret), ttl: ttl, elevatedRoles: roles}
}

// GenerateToken signs a token for the given identity.
func (m *Manager) GenerateToken(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return signed, nil
}

// ValidateToken parses a bearer token and returns the caller identity.
func (m *Manager) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.New("auth: unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: claims.Subject, Role: claims.Role}, nil
}

// Elevated reports whether the identity's role may act on any job.
func (m *Manager) Elevated(id Identity) bool {
	_, ok := m.elevatedRoles[id.Role]
	return ok
}

type contextKey struct{}

// WithIdentity attaches an identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity placed by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
