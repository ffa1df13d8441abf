package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/auth"
	"github.com/noah-isme/backend-bazaar/internal/common"
)

func newTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(auth.Config{Secret: "test-secret", AccessTTL: 15 * time.Minute})
	require.NoError(t, err)
	return svc
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	svc := newTokenService(t)

	token, expiresAt, err := svc.IssueAccessToken("user-1", "Priya@Example.com", "customer")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "priya@example.com", claims.Email)
	require.Equal(t, "customer", claims.Role)
}

func TestParseExpiredToken(t *testing.T) {
	svc := newTokenService(t)
	past := time.Now().Add(-time.Hour)
	svc.WithNow(func() time.Time { return past })

	token, _, err := svc.IssueAccessToken("user-1", "a@b.com", "customer")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	svc := newTokenService(t)
	other, err := auth.NewTokenService(auth.Config{Secret: "different-secret"})
	require.NoError(t, err)

	token, _, err := other.IssueAccessToken("user-1", "a@b.com", "customer")
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	svc := newTokenService(t)
	mw := auth.Middleware{Tokens: svc}

	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	adminToken, _, err := svc.IssueAccessToken("admin-1", "ops@example.com", auth.RoleAdmin)
	require.NoError(t, err)
	customerToken, _, err := svc.IssueAccessToken("user-1", "shopper@example.com", "customer")
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"admin allowed", adminToken, http.StatusNoContent},
		{"customer forbidden", customerToken, http.StatusForbidden},
		{"anonymous unauthorized", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/coupons", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestAuthenticatePassesAnonymous(t *testing.T) {
	svc := newTokenService(t)
	mw := auth.Middleware{Tokens: svc}

	var sawUser bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/carts/current", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, sawUser)
}
