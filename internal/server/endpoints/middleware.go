package endpoints

import (
	"context"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// MiddlewareAuth validates the bearer token in the authorization
// header and adds the caller identity to the request context. An
// empty secret disables authentication (local mode).
func MiddlewareAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			caller, err := verifyToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			// extending request context
			ctx := context.WithValue(r.Context(), CKCaller, caller)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verifyToken checks the HMAC signature and returns the subject claim
func verifyToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token subject is empty")
	}

	return sub, nil
}
