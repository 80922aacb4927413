package version

import (
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}
	if info.BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
	if info.InstanceID == "" {
		t.Error("InstanceID should not be empty")
	}
	if info.Hostname == "" {
		t.Error("Hostname should not be empty")
	}

	info2 := GetInfo()
	if info.InstanceID != info2.InstanceID {
		t.Errorf("InstanceID should be cached, got %s then %s", info.InstanceID, info2.InstanceID)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{
			name: "full version info",
			info: Info{
				Version:   "1.2.3",
				GitCommit: "abc1234",
				BuildDate: "2026-02-21T10:00:00Z",
				GoVersion: "go1.25.0",
			},
			expected: "gatekeeper 1.2.3 (commit: abc1234, built: 2026-02-21T10:00:00Z, go1.25.0)",
		},
		{
			name: "unknown values",
			info: Info{
				Version:   "unknown",
				GitCommit: "unknown",
				BuildDate: "unknown",
				GoVersion: "go1.25.0",
			},
			expected: "gatekeeper unknown (commit: unknown, built: unknown, go1.25.0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetHostname_Lambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "gatekeeper-hello")
	if got := getHostname(); got != "gatekeeper-hello" {
		t.Errorf("getHostname() = %q, want function name", got)
	}
}

func TestDetectPlatform(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	if got := detectPlatform(); got != "server" {
		t.Errorf("detectPlatform() = %q, want server", got)
	}

	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	if got := detectPlatform(); got != "lambda" {
		t.Errorf("detectPlatform() = %q, want lambda", got)
	}
}
