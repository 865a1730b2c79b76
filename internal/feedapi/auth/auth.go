// Package auth gates the Feed API's single admin-only route
// (/admin/metrics, §4.7) behind a bearer JWT, adapted from the teacher's
// role-matrix authorization middleware down to the one check this domain
// needs: does the token carry role "admin".
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"newsfeed/internal/handler/http/respond"
)

const bearerPrefix = "Bearer "

// RequireAdmin wraps next, rejecting any request whose Authorization header
// doesn't carry a valid, unexpired HS256 JWT with an "admin" role claim,
// signed with secret. The parsing and claim checks mirror the teacher's
// validateJWT exactly; only the permission decision is simplified, since
// this route has no viewer/admin method matrix to evaluate, just one gate.
func RequireAdmin(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := validateAdminToken(r.Header.Get("Authorization"), secret); err != nil {
			respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validateAdminToken(authz string, secret []byte) (string, error) {
	if !strings.HasPrefix(authz, bearerPrefix) {
		return "", errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, bearerPrefix)

	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return "", errors.New("token expired")
	}
	role, ok := claims["role"].(string)
	if !ok || role != "admin" {
		return "", errors.New("admin role required")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
