package update

import (
	"runtime"
	"strings"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		newer   bool
	}{
		{"v1.0.0", "v1.0.1", true},
		{"v1.0.0", "v1.1.0", true},
		{"v1.0.0", "v2.0.0", true},
		{"v1.0.0", "v1.0.0", false},
		{"v1.2.0", "v1.1.9", false},
		{"1.0.0", "v1.0.1", true},
		{"v1.0", "v1.0.1", true},
		{"v2.0.0", "v1.9.9", false},
	}

	for _, tt := range tests {
		t.Run(tt.current+"_vs_"+tt.latest, func(t *testing.T) {
			if got := CompareVersions(tt.current, tt.latest); got != tt.newer {
				t.Errorf("CompareVersions(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.newer)
			}
		})
	}
}

func TestGetBinaryName(t *testing.T) {
	name := GetBinaryName()
	if !strings.HasPrefix(name, "hackradar_") {
		t.Errorf("binary name = %q", name)
	}
	if !strings.Contains(name, runtime.GOOS) || !strings.Contains(name, runtime.GOARCH) {
		t.Errorf("binary name %q should carry GOOS and GOARCH", name)
	}
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		t.Errorf("windows binary name %q should end in .exe", name)
	}
}
