package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealth_returnsOK(t *testing.T) {
	// Set build-time variables for test.
	origVersion, origCommit := Version, Commit
	Version = "1.2.3"
	Commit = "abc1234"
	t.Cleanup(func() {
		Version = origVersion
		Commit = origCommit
	})

	handler := HandleHealth()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
	if resp.Commit != "abc1234" {
		t.Errorf("commit = %q, want abc1234", resp.Commit)
	}
}

func TestHandleHealth_defaultValues(t *testing.T) {
	handler := HandleHealth()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Version == "" {
		t.Error("version should have a default value")
	}
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(_ context.Context) error {
	return m.err
}

func serveReady(t *testing.T, checks ReadinessChecks) (*httptest.ResponseRecorder, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleReady(checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return rec, resp
}

func TestHandleReady_allHealthy(t *testing.T) {
	rec, resp := serveReady(t, ReadinessChecks{
		AuditStore:   &mockHealthChecker{},
		APIDocLoaded: func() bool { return true },
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "ready" {
		t.Errorf("status = %q, want ready", resp.Status)
	}
	if resp.Checks["audit_store"].Status != "ok" {
		t.Errorf("audit_store = %q, want ok", resp.Checks["audit_store"].Status)
	}
	if resp.Checks["api_doc"].Status != "ok" {
		t.Errorf("api_doc = %q, want ok", resp.Checks["api_doc"].Status)
	}
}

func TestHandleReady_auditStoreDown(t *testing.T) {
	rec, resp := serveReady(t, ReadinessChecks{
		AuditStore:   &mockHealthChecker{err: errors.New("connection refused")},
		APIDocLoaded: func() bool { return true },
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Status != "not_ready" {
		t.Errorf("status = %q, want not_ready", resp.Status)
	}
	if resp.Checks["audit_store"].Error != "connection refused" {
		t.Errorf("audit_store error = %q, want 'connection refused'", resp.Checks["audit_store"].Error)
	}
}

func TestHandleReady_apiDocNotLoaded(t *testing.T) {
	rec, resp := serveReady(t, ReadinessChecks{
		AuditStore:   &mockHealthChecker{},
		APIDocLoaded: func() bool { return false },
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Checks["api_doc"].Status != "error" {
		t.Errorf("api_doc = %q, want error", resp.Checks["api_doc"].Status)
	}
}

func TestHandleReady_nilCheckers(t *testing.T) {
	rec, resp := serveReady(t, ReadinessChecks{})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Checks["audit_store"].Error != "audit store not configured" {
		t.Errorf("audit_store error = %q", resp.Checks["audit_store"].Error)
	}
	if resp.Checks["api_doc"].Status != "error" {
		t.Errorf("api_doc = %q, want error", resp.Checks["api_doc"].Status)
	}
}

func TestHandleReady_extraChecks(t *testing.T) {
	rec, resp := serveReady(t, ReadinessChecks{
		AuditStore:   &mockHealthChecker{},
		APIDocLoaded: func() bool { return true },
		Extra: map[string]HealthChecker{
			"tracing": HealthCheckFunc(func(context.Context) error { return nil }),
			"skipped": nil,
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resp.Checks) != 3 {
		t.Errorf("checks count = %d, want 3", len(resp.Checks))
	}
	if _, ok := resp.Checks["skipped"]; ok {
		t.Error("nil extra checker should not be reported")
	}
}

func TestHandleReady_extraCheckFails(t *testing.T) {
	rec, resp := serveReady(t, ReadinessChecks{
		AuditStore:   &mockHealthChecker{},
		APIDocLoaded: func() bool { return true },
		Extra: map[string]HealthChecker{
			"replica": &mockHealthChecker{err: errors.New("lagging")},
		},
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Checks["replica"].Error != "lagging" {
		t.Errorf("replica error = %q, want lagging", resp.Checks["replica"].Error)
	}
}

func TestRunCheck_honoursTimeout(t *testing.T) {
	checker := HealthCheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runCheck(ctx, checker)
	if result.Status != "error" {
		t.Errorf("status = %q, want error", result.Status)
	}
}
