package buildinfo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
)

func TestGet_ReturnsCorrectDefaults(t *testing.T) {
	info := Get("meetflow")

	if info.ServiceName != "meetflow" {
		t.Errorf("expected ServiceName='meetflow', got %q", info.ServiceName)
	}
	if info.Version != "dev" {
		t.Errorf("expected Version='dev', got %q", info.Version)
	}
	if info.Commit != "unknown" {
		t.Errorf("expected Commit='unknown', got %q", info.Commit)
	}
	if info.BuildTime != "unknown" {
		t.Errorf("expected BuildTime='unknown', got %q", info.BuildTime)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("expected GoVersion=%q, got %q", runtime.Version(), info.GoVersion)
	}
}

func TestString_CustomValues(t *testing.T) {
	origVersion := Version
	origCommit := Commit
	origBuildTime := BuildTime
	defer func() {
		Version = origVersion
		Commit = origCommit
		BuildTime = origBuildTime
	}()

	Version = "v0.3.1"
	Commit = "4c1f9aa"
	BuildTime = "2026-08-21T09:15:00Z"

	result := String()
	expected := "v0.3.1 (4c1f9aa, 2026-08-21T09:15:00Z)"
	if result != expected {
		t.Errorf("expected String()=%q, got %q", expected, result)
	}
}

func TestHandler(t *testing.T) {
	for _, serviceName := range []string{"meetflow-serve", "meetflow-worker"} {
		t.Run(serviceName, func(t *testing.T) {
			handler := Handler(serviceName)
			req := httptest.NewRequest(http.MethodGet, "/version", nil)
			rec := httptest.NewRecorder()

			handler(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}

			var info Info
			if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
				t.Fatalf("failed to decode JSON response: %v", err)
			}
			if info.ServiceName != serviceName {
				t.Errorf("expected service_name %q, got %q", serviceName, info.ServiceName)
			}
			if info.GoVersion == "" {
				t.Error("expected go_version to be non-empty")
			}
		})
	}
}
