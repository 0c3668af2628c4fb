package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"suratadmin/internal/server/service"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims are the portal's session token claims.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWT verifies HS256 session tokens issued by the portal.
type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

// Issue signs a token for a principal.
func (j *JWT) Issue(userID string, role service.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Parse verifies a token and returns its principal. The token itself is kept
// on the principal so store calls can be made on its behalf.
func (j *JWT) Parse(token string) (*service.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return principalFrom(claims, token)
}

// Provider returns a SessionProvider that resolves token when a console
// activates.
func (j *JWT) Provider(token string) service.SessionProvider {
	return tokenSession{token: token, parse: j.Parse}
}

// Unverified returns a SessionProvider that reads the token's claims
// without checking the signature. The store still verifies every request;
// this only decides whether the console activates locally.
func Unverified(token string) service.SessionProvider {
	return tokenSession{token: token, parse: PrincipalFromToken}
}

// PrincipalFromToken decodes the claims of token without verification.
func PrincipalFromToken(token string) (*service.Principal, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return principalFrom(&claims, token)
}

type tokenSession struct {
	token string
	parse func(string) (*service.Principal, error)
}

// CurrentPrincipal resolves to nobody when there is no token.
func (s tokenSession) CurrentPrincipal(context.Context) (*service.Principal, error) {
	if s.token == "" {
		return nil, nil
	}
	return s.parse(s.token)
}

func principalFrom(claims *Claims, token string) (*service.Principal, error) {
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return &service.Principal{
		ID:    id,
		Role:  service.Role(strings.ToUpper(strings.TrimSpace(claims.Role))),
		Token: token,
	}, nil
}
