package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowAndDeny(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	rl := NewRateLimiterWithNow(2, time.Minute, func() time.Time { return clock })
	defer rl.Close()

	if !rl.Allow("ip") {
		t.Fatalf("expected allow")
	}
	if !rl.Allow("ip") {
		t.Fatalf("expected allow")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected deny")
	}
	if !rl.Allow("other-ip") {
		t.Fatalf("expected allow for a different key")
	}

	clock = clock.Add(time.Minute + time.Second)
	if !rl.Allow("ip") {
		t.Fatalf("expected allow after window")
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		if !rl.Allow("ip") {
			t.Fatalf("request %d denied with limiting disabled", i)
		}
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	r := gin.New()
	r.POST("/", RateLimit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, w.Code)
		}
	}
}

func TestRateLimiter_CloseStopsSweep(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	rl.Close()
	rl.Close()

	select {
	case <-rl.done:
	case <-time.After(time.Second):
		t.Fatalf("sweep still running after Close")
	}
}
