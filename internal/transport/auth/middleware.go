package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
)

type ctxKey string

const OperatorKey ctxKey = "operator"

// TokenLookup resolves database-issued operator tokens.
type TokenLookup interface {
	FindByPlainToken(ctx context.Context, plain string) (*domain.OperatorToken, error)
}

type staticToken struct {
	operator string
	sum      [sha256.Size]byte
}

type Authenticator struct {
	static []staticToken
	tokens TokenLookup
	log    zerolog.Logger
}

// NewAuthenticator accepts static tokens as "operator:secret" or a bare
// secret, which authenticates as operator "api". tokens may be nil.
func NewAuthenticator(staticTokens []string, tokens TokenLookup) *Authenticator {
	a := &Authenticator{tokens: tokens, log: logger.WithComponent("auth")}
	for _, raw := range staticTokens {
		operator, secret := "api", raw
		if i := strings.Index(raw, ":"); i > 0 {
			operator, secret = raw[:i], raw[i+1:]
		}
		if secret == "" {
			continue
		}
		a.static = append(a.static, staticToken{operator: operator, sum: sha256.Sum256([]byte(secret))})
	}
	return a
}

// Enabled reports whether any credential source is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.static) > 0 || a.tokens != nil
}

func presentedToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t
		}
	}
	// browsers cannot set headers on websocket upgrades
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (a *Authenticator) resolve(ctx context.Context, plain string) (string, bool) {
	sum := sha256.Sum256([]byte(plain))
	for _, st := range a.static {
		if subtle.ConstantTimeCompare(sum[:], st.sum[:]) == 1 {
			return st.operator, true
		}
	}
	if a.tokens == nil {
		return "", false
	}
	tok, err := a.tokens.FindByPlainToken(ctx, plain)
	if err != nil {
		a.log.Debug().Err(err).Msg("token lookup failed")
		return "", false
	}
	if tok.Expired(time.Now()) {
		return "", false
	}
	return tok.Operator, true
}

// Middleware rejects requests without a valid bearer token and stores the
// operator name in the request context. With no credentials configured every
// request passes as "anonymous".
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), "anonymous")))
			return
		}

		plain := presentedToken(r)
		if plain == "" {
			a.log.Debug().Str("path", r.URL.Path).Msg("no token presented")
			unauthorized(w)
			return
		}
		operator, ok := a.resolve(r.Context(), plain)
		if !ok {
			a.log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("rejected token")
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), operator)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error_code":401,"status":"error","message":"Unauthorized","data":null}`))
}

func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, OperatorKey, operator)
}

func GetOperator(ctx context.Context) (string, error) {
	op, ok := ctx.Value(OperatorKey).(string)
	if !ok || op == "" {
		return "", errors.New("operator not found in context")
	}
	return op, nil
}
