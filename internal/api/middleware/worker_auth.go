package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/reigh-app/reigh-api/internal/api/shared"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
)

// WorkerTokenIssuer is the issuer claim on worker tokens.
const WorkerTokenIssuer = "reigh-api"

// WorkerClaims are the claims carried by a worker token.
type WorkerClaims struct {
	jwt.RegisteredClaims
}

// WorkerAuth verifies HS256 worker tokens on the routes workers call back on.
// A zero-length secret disables verification.
type WorkerAuth struct {
	secret []byte
}

// NewWorkerAuth creates a WorkerAuth for secret.
func NewWorkerAuth(secret string) *WorkerAuth {
	return &WorkerAuth{secret: []byte(secret)}
}

// Enabled reports whether tokens are checked.
func (m *WorkerAuth) Enabled() bool {
	return len(m.secret) > 0
}

// IssueToken mints a worker token for subject that expires after ttl.
func (m *WorkerAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	if !m.Enabled() {
		return "", errors.New("worker token secret is not configured")
	}
	now := time.Now()
	claims := WorkerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    WorkerTokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken validates token and returns its claims.
func (m *WorkerAuth) ParseToken(token string) (*WorkerClaims, error) {
	claims := &WorkerClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(WorkerTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Authenticate rejects requests without a valid Bearer worker token and adds
// the token subject to the request context.
func (m *WorkerAuth) Authenticate(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.ParseToken(token)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "Token expired"
			}
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, message, err,
				shared.WithElevatedLogLevel())
			return
		}

		logger.FromContext(r.Context()).Debug("worker authenticated", "worker_id", claims.Subject)
		next.ServeHTTP(w, r.WithContext(shared.SetWorkerID(r.Context(), claims.Subject)))
	})
}
