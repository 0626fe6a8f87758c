// Package middleware guards the reveal-server control endpoints with a
// single shared bearer token: there is no per-user session in this
// domain, only "can drive this run's reveal machine".
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectKey contextKey = "subject"

// Guard holds the HMAC secret used to sign and verify control tokens.
type Guard struct {
	secret []byte
}

// NewGuard builds a Guard from CONTROL_TOKEN_SECRET, falling back to a
// development default so a local run never refuses to start.
func NewGuard() *Guard {
	secret := os.Getenv("CONTROL_TOKEN_SECRET")
	if secret == "" {
		secret = "dev-control-secret-change-in-production"
	}
	return &Guard{secret: []byte(secret)}
}

// IssueToken mints a bearer token for subject (typically "operator"),
// valid for the given ttl.
func (g *Guard) IssueToken(subject string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// ValidateToken parses and verifies a bearer token, returning its
// subject.
func (g *Guard) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("invalid token: missing subject")
	}
	return sub, nil
}

// RequireBearer rejects requests without a valid "Authorization: Bearer
// <token>" header, then stores the verified subject in the request
// context.
func (g *Guard) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		subject, err := g.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext extracts the bearer token's verified subject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}