package config

import (
	"path/filepath"
	"testing"
)

func TestDataDirFor(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want string
	}{
		{
			name: "xdg wins everywhere",
			goos: "darwin",
			env:  map[string]string{"XDG_DATA_HOME": "/custom/data", "HOME": "/Users/ann"},
			want: filepath.Join("/custom/data", "docq"),
		},
		{
			name: "linux home",
			goos: "linux",
			env:  map[string]string{"HOME": "/home/ann"},
			want: filepath.Join("/home/ann", ".local", "share", "docq"),
		},
		{
			name: "macos home",
			goos: "darwin",
			env:  map[string]string{"HOME": "/Users/ann"},
			want: filepath.Join("/Users/ann", "Library", "Application Support", "docq"),
		},
		{
			name: "windows local app data",
			goos: "windows",
			env:  map[string]string{"LOCALAPPDATA": `C:\Users\ann\AppData\Local`},
			want: filepath.Join(`C:\Users\ann\AppData\Local`, "docq"),
		},
		{
			name: "windows user profile",
			goos: "windows",
			env:  map[string]string{"USERPROFILE": `C:\Users\ann`},
			want: filepath.Join(`C:\Users\ann`, "AppData", "Local", "docq"),
		},
		{
			name: "no home",
			goos: "linux",
			env:  map[string]string{},
			want: filepath.Join(".", "data"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataDirFor(tt.goos, func(k string) string { return tt.env[k] })
			if got != tt.want {
				t.Fatalf("dataDirFor(%s) = %q, want %q", tt.goos, got, tt.want)
			}
		})
	}
}

func TestDefaultDataDirUsesXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != filepath.Join("/custom/data", "docq") {
		t.Fatalf("DefaultDataDir() = %q", got)
	}
}
