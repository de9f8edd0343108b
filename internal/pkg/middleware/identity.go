// internal/pkg/middleware/identity.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/pkg/httpx"
)

// 网关在完成认证后写入的可信请求头
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleBusiness Role = "BUSINESS"
	RoleCustomer Role = "CUSTOMER"
)

// Identity 是当前请求的调用方
type Identity struct {
	UserID int64
	Role   Role
}

type identityKey struct{}

// WithIdentity 把调用方放进 context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom 取出调用方，没有认证信息时 ok 为 false
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Identify 解析网关请求头；缺失或非法时按匿名请求处理
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		role := Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
		if err == nil && userID > 0 && validRole(role) {
			r = r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID, Role: role}))
		}
		next.ServeHTTP(w, r)
	})
}

func validRole(r Role) bool {
	return r == RoleAdmin || r == RoleBusiness || r == RoleCustomer
}

// RequireRole 要求调用方已认证且角色在 roles 之中；roles 为空时只要求已认证
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if len(roles) > 0 && !hasRole(roles, id.Role) {
				httpx.WriteError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
