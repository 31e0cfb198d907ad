package session

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader carries the CSRF token in both directions: responses expose
// it and state-changing requests must send it back.
const CSRFTokenHeader = "X-CSRF-Token"

const csrfContextKey = "csrf_token"

// CSRFMiddleware rejects state-changing requests without a valid token. Safe
// methods pass and receive the token in the X-CSRF-Token response header.
func CSRFMiddleware(secret []byte, secure bool) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		passed := false
		handler := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			token := csrf.Token(r)
			c.Set(csrfContextKey, token)
			c.Header(CSRFTokenHeader, token)
			// Session middleware runs after this and adds its own context on top
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing","code":"csrf"}`))
}

// CSRFToken returns the token issued for the current request.
func CSRFToken(c *gin.Context) string {
	if token, ok := c.Get(csrfContextKey); ok {
		if t, ok := token.(string); ok {
			return t
		}
	}
	return ""
}

// CSRFSecret returns the key for CSRF tokens. A configured secret is used as
// hex when it decodes, as raw bytes otherwise. Without one a random key is
// generated, so tokens do not survive a restart.
func CSRFSecret(configured string) ([]byte, bool, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, false, nil
		}
		return []byte(configured), false, nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, false, err
	}
	return secret, true, nil
}
