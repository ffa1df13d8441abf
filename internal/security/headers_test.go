package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveWith(h Headers, req *http.Request) *httptest.ResponseRecorder {
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHeadersSetOnTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	req.TLS = &tls.ConnectionState{}

	rr := serveWith(Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}, req)

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Contains(t, rr.Header().Get("Strict-Transport-Security"), "includeSubDomains")
}

func TestNoHSTSOnPlainHTTP(t *testing.T) {
	rr := serveWith(Headers{Enable: true, EnableHSTS: true}, httptest.NewRequest(http.MethodGet, "http://example.com", nil))

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestHeadersDisabled(t *testing.T) {
	rr := serveWith(Headers{}, httptest.NewRequest(http.MethodGet, "http://example.com", nil))

	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}
