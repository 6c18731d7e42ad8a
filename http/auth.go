package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const ErrTypeUnauthorized = "unauthorized"

// GetTokenFromRequest returns the bearer token of the Authorization header, or
// the token query parameter when the header is not set.
func GetTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// VerifyToken returns an error when the request does not carry the given
// token. Every request is accepted when token is empty.
func VerifyToken(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(GetTokenFromRequest(r)), []byte(token)) != 1 {
		return errors.New("invalid token").
			WithType(ErrTypeUnauthorized).
			WithTag("path", r.URL.Path).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// VerifyTokenHandshake is a websocket handshake that rejects connections that
// do not carry the given token.
func VerifyTokenHandshake(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := VerifyToken(token, r); err != nil {
			logs.Warn(err)
			return err
		}
		return nil
	}
}

// VerifyTokenHandler responds with 401 to requests that do not carry the
// given token.
func VerifyTokenHandler(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := VerifyToken(token, r); err != nil {
			logs.Warn(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}
