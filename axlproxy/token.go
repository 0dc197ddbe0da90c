package axlproxy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TokenIssuer = "uckit-axlproxy"

type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret []byte, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secret: secret,
		ttl:    ttl,
	}
}

// Issue signs a bearer token for subject. It returns the token and its
// lifetime in seconds.
func (i *JWTIssuer) Issue(subject string) (string, int64, error) {
	now := time.Now()
	exp := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"iss": TokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", 0, err
	}

	return s, int64(i.ttl.Seconds()), nil
}

// Verify returns the subject of a valid, unexpired token.
func (i *JWTIssuer) Verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

var errNoBearer = errors.New("missing bearer token")

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoBearer
	}
	return strings.TrimSpace(token), nil
}

// RequireToken rejects requests without a valid bearer token.
func RequireToken(i *JWTIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearer(r)
			if err == nil {
				_, err = i.Verify(raw)
			}
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="axl"`)
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": fmt.Sprintf("unauthorized: %v", err)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
