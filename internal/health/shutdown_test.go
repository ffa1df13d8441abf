package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/health"
)

type okChecker struct{}

func (okChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (okChecker) PingRedis(context.Context, time.Duration) error { return nil }

func TestReadinessGateDuringShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	h := health.Handler{Checker: okChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	rr := httptest.NewRecorder()
	h.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	health.SetReady(false)
	rr = httptest.NewRecorder()
	h.Ready(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
