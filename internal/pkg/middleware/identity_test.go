package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifyAndRequireRole(t *testing.T) {
	var seen Identity
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	admin := Identify(RequireRole(RoleAdmin, RoleBusiness)(final))
	anyUser := Identify(RequireRole()(final))

	tests := []struct {
		name       string
		handler    http.Handler
		userID     string
		role       string
		wantStatus int
	}{
		{"admin allowed", admin, "1", "ADMIN", http.StatusOK},
		{"business allowed, role case-insensitive", admin, "2", "business", http.StatusOK},
		{"customer forbidden", admin, "3", "CUSTOMER", http.StatusForbidden},
		{"missing headers", admin, "", "", http.StatusUnauthorized},
		{"bad user id", anyUser, "abc", "CUSTOMER", http.StatusUnauthorized},
		{"unknown role", anyUser, "5", "ROOT", http.StatusUnauthorized},
		{"customer authenticated", anyUser, "6", "CUSTOMER", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
				req.Header.Set(HeaderUserRole, tt.role)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "42")
	req.Header.Set(HeaderUserRole, "CUSTOMER")
	anyUser.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, Identity{UserID: 42, Role: RoleCustomer}, seen)
}
