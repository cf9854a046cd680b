package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(context.Context) CheckResult   { return CheckResult{Status: StatusHealthy} }
func unhealthy(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical Check
		optional Check
		want     Status
	}{
		{"all healthy", healthy, healthy, StatusHealthy},
		{"optional failing", healthy, unhealthy, StatusDegraded},
		{"critical failing", unhealthy, healthy, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterFunc("device", true, tt.critical)
			c.RegisterFunc("history", false, tt.optional)
			assert.Equal(t, StatusUnknown, c.OverallStatus(), "critical checks start unknown")

			c.Check(context.Background())
			assert.Equal(t, tt.want, c.OverallStatus())
		})
	}
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("boom", false, func(context.Context) CheckResult { panic("bad check") })

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)
	assert.Equal(t, StatusUnhealthy, results["boom"].Status)
	assert.Equal(t, "bad check", results["boom"].Error)
}

func TestCheckComponentAndUnregister(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("device", true, healthy)
	assert.Equal(t, []string{"device"}, c.Names())

	res, ok := c.CheckComponent(context.Background(), "device")
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, res.Status)
	assert.False(t, res.LastChecked.IsZero())

	_, ok = c.CheckComponent(context.Background(), "missing")
	assert.False(t, ok)

	c.Unregister("device")
	_, ok = c.GetResult("device")
	assert.False(t, ok)
	assert.Empty(t, c.Names())
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("device", true, unhealthy)
	mux := http.NewServeMux()
	c.RegisterHandlers(mux)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code, "not ready yet")

	c.SetReady(true)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code, "critical check failing")

	c.RegisterFunc("device", true, healthy)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)
}

func TestHealthHandlerFull(t *testing.T) {
	c := NewChecker()
	c.SetReady(true)
	c.RegisterFunc("device", true, healthy)
	c.RegisterFunc("history", false, unhealthy)

	rec := httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?full=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded still serves")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.True(t, resp.Ready)
	assert.Len(t, resp.Components, 2)

	rec = httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	resp = Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Components)
}

func TestDeviceCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event5")
	check := DeviceCheck(path)

	res := check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, path, res.Details["path"])

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
}

func TestDatabaseAndCustomCheck(t *testing.T) {
	ok := DatabaseCheck(func(context.Context) error { return nil })
	assert.Equal(t, StatusHealthy, ok(context.Background()).Status)

	bad := DatabaseCheck(func(context.Context) error { return errors.New("locked") })
	res := bad(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "locked", res.Error)

	custom := CustomCheck(func() error { return errors.New("pipeline stopped") })
	assert.Equal(t, StatusUnhealthy, custom(context.Background()).Status)
}
