package tenant

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const ctxKeyTenantID ctxKey = iota

const (
	TenantHeader = "X-Tenant-Id"
	APIKeyHeader = "X-Api-Key"
)

func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTenantID).(string)
	return v
}

// Middleware authenticates the tenant on every request: the tenant id header
// names the data partition, the API key is checked against the bcrypt hash
// in the control schema. Authenticated requests carry the tenant id in
// context; everything downstream is scoped by it.
func (r *Registry) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			tenantID := strings.TrimSpace(req.Header.Get(TenantHeader))
			apiKey := strings.TrimSpace(req.Header.Get(APIKeyHeader))
			if tenantID == "" || apiKey == "" {
				http.Error(w, "tenant credentials required", http.StatusUnauthorized)
				return
			}

			info, err := r.lookup(req.Context(), tenantID)
			if err != nil {
				http.Error(w, "unknown tenant", http.StatusUnauthorized)
				return
			}
			if bcrypt.CompareHashAndPassword(info.APIKeyHash, []byte(apiKey)) != nil {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(req.Context(), ctxKeyTenantID, tenantID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
