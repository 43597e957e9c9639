package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"

	ferrors "github.com/maruel/flatkv/internal/errors"
	"github.com/maruel/flatkv/internal/server/ipgeo"
	"github.com/maruel/flatkv/internal/server/ratelimit"
)

type contextKey string

const (
	keySubject   contextKey = "subject"
	keyRequestID contextKey = "requestID"
)

// Subject returns the authenticated token subject, if any.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(keySubject).(string)
	return s
}

var (
	errMissingAuth    = errors.New("missing authorization header")
	errInvalidAuthHdr = errors.New("invalid authorization header")
	errInvalidToken   = errors.New("invalid token")
	errMissingSubject = errors.New("token has no subject")
)

// AuthMiddleware requires a valid HS256 bearer token on every /api/ request
// except /api/health. An empty secret disables authentication.
func AuthMiddleware(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(jwtSecret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			sub, err := validateJWT(r, jwtSecret)
			if err != nil {
				writeError(r.Context(), w, ferrors.Unauthorized(err.Error()))
				return
			}
			ctx := context.WithValue(r.Context(), keySubject, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateJWT extracts and validates the bearer token and returns its subject.
func validateJWT(r *http.Request, jwtSecret []byte) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingAuth
	}
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return "", errInvalidAuthHdr
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

// GenerateToken returns an HS256 token for subject valid for ttl.
func GenerateToken(jwtSecret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(jwtSecret)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware tags each request with an X-Request-ID and logs one line
// per request. geo may be nil.
func LoggingMiddleware(geo *ipgeo.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rid := ksid.NewID().String()
			w.Header().Set("X-Request-ID", rid)
			ctx := context.WithValue(r.Context(), keyRequestID, rid)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			ip := ratelimit.ClientIP(r)
			slog.DebugContext(ctx, "http", "rid", rid, "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start).Round(time.Microsecond), "ip", ip, "country", geo.Country(ip))
		})
	}
}

// RequestID returns the ID assigned by LoggingMiddleware, if any.
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(keyRequestID).(string)
	return s
}
