package auth

import (
	"context"
	"net/http"

	"github.com/pointme/pointme/libs/httpx"
)

type ctxKey int

const ctxKeyPrincipal ctxKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

// Require rejects requests without a valid bearer token and, when roles are
// given, callers whose role is not listed.
func (v *Verifier) Require(roles ...string) httpx.Middleware {
	allowed := map[string]bool{}
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "missing bearer token", "unauthenticated", nil)
				return
			}
			p, err := v.Verify(r.Context(), raw)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token", "unauthenticated", nil)
				return
			}
			if len(allowed) > 0 && !allowed[p.Role] {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
