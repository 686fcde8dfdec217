package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/config"
	"github.com/beontime/internal/handler"
	"github.com/beontime/internal/service"
	"github.com/beontime/internal/testutil"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.OpenDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	services := service.NewServices(gdb, config.Default(), clk, nil)

	return SetupRouter(handler.NewAPI(services, clk), "test-secret")
}

func TestSetupRouterPing(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "pong") {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}
}

func TestSetupRouterExposesMetrics(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "beontime_scheduler_ticks_total") {
		t.Fatalf("expected scheduler metrics to be registered")
	}
}

func TestSetupRouterRequiresSession(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/habits", "/api/habits/today", "/api/notifications", "/api/challenges", "/api/stats", "/api/me"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusUnauthorized, rr.Code)
		}
	}
}
