package httpapi

import (
	"context"
	"net/http"

	"github.com/airpayhq/airpay/engine"
)

// IdentityHeader carries the caller's base58 signing identity. The
// signature itself is verified by the fronting auth layer; by the time
// a request reaches this API the identity is trusted.
const IdentityHeader = "X-Airpay-Identity"

type identityKeyType struct{}

var identityKey identityKeyType

// Identity middleware extracts the caller identity and rejects
// requests without a well-formed one.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdentityHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing "+IdentityHeader+" header")
			return
		}
		id, err := engine.ParseAddress(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "malformed identity")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerIdentity returns the identity set by the Identity middleware.
func CallerIdentity(ctx context.Context) (engine.Address, bool) {
	id, ok := ctx.Value(identityKey).(engine.Address)
	return id, ok
}
