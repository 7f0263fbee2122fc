package version

import (
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "v1.0.0", Revision: "3f2a9c1d77aa"}, "v1.0.0 (3f2a9c1d)"},
		{Info{Version: "v1.0.0", Revision: "abc", Dirty: true}, "v1.0.0 (abc+dirty)"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Errorf("Short() = %q, want %q", got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	s := Info{Version: "v1.0.0", BuildTime: "2024-01-01", GoVersion: "go1.24.0"}.String()
	for _, want := range []string{"salesdash v1.0.0", "built 2024-01-01", "go1.24.0"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	if strings.Contains(Info{Version: "dev", BuildTime: "unknown"}.String(), "built") {
		t.Error("unknown build time should be omitted")
	}
}

func TestWarning(t *testing.T) {
	if Info{Version: "dev"}.Warning() == "" {
		t.Error("dev build without VCS info should warn")
	}
	if Info{Version: "v1", Revision: "abc", Dirty: true}.Warning() == "" {
		t.Error("dirty build should warn")
	}
	if w := (Info{Version: "v1", Revision: "abc"}).Warning(); w != "" {
		t.Errorf("clean build warned: %q", w)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" {
		t.Error("Version should never be empty")
	}
	if info.BuildTime != BuildTime {
		t.Errorf("BuildTime = %q, want %q", info.BuildTime, BuildTime)
	}
}
