package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// OIDCConfig holds OIDC authentication settings.
type OIDCConfig struct {
	IssuerURL string
	Audience  string
	Enabled   bool
}

const healthPath = "/api/v1/health"

// callerClaims identify who requested a comparison.
type callerClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

func (c callerClaims) user() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Email
}

// requireCaller verifies the bearer token of every request but health.
// The caller is put on the request context with tracing.WithUser, so the
// comparison's root span and every stage span beneath it name who ran it.
func requireCaller(provider *oidc.Provider, audience string) func(http.Handler) http.Handler {
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == healthPath {
				next.ServeHTTP(w, r)
				return
			}
			user, err := authenticate(r, verifier)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="amendment-diff"`)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(tracing.WithUser(r.Context(), user)))
		})
	}
}

// authenticate returns the caller named by a valid bearer token. Tokens
// without a subject or email are rejected; comparisons are always
// attributable.
func authenticate(r *http.Request, verifier *oidc.IDTokenVerifier) (string, error) {
	raw, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	token, err := verifier.Verify(r.Context(), raw)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	var claims callerClaims
	if err := token.Claims(&claims); err != nil {
		return "", errors.New("invalid token claims")
	}
	user := claims.user()
	if user == "" {
		return "", errors.New("token names no caller (sub or email)")
	}
	return user, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid Authorization header format")
	}
	return token, nil
}
