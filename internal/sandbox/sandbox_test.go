package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.allowedPaths) != 0 || s.maxFileSize != 0 {
		t.Errorf("empty config produced restrictions: %+v", s)
	}

	s, err = New(Config{MaxFileSize: "64KB"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.maxFileSize != 64*1024 {
		t.Errorf("maxFileSize = %d, want %d", s.maxFileSize, 64*1024)
	}

	if _, err := New(Config{MaxFileSize: "lots"}); err == nil {
		t.Fatal("expected error for invalid file size")
	}
}

func TestCheckPath(t *testing.T) {
	tmpDir := t.TempDir()
	plans := filepath.Join(tmpDir, "plans")
	secret := filepath.Join(plans, "secret")

	s, err := New(Config{
		AllowedPaths: []string{plans},
		DeniedPaths:  []string{secret},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"allowed dir itself", plans, false},
		{"file in allowed dir", filepath.Join(plans, "login.yaml"), false},
		{"denied under allowed", filepath.Join(secret, "creds.yaml"), true},
		{"outside allowed", filepath.Join(tmpDir, "other.yaml"), true},
		{"prefix lookalike", plans + "-old/login.yaml", true},
		{"traversal", filepath.Join(plans, "..", "escape.yaml"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CheckPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckPath(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestCheckPathNoAllowList(t *testing.T) {
	s, err := New(Config{DeniedPaths: []string{"/etc"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CheckPath(filepath.Join(t.TempDir(), "plan.yaml")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.CheckPath("/etc/passwd"); err == nil {
		t.Error("expected /etc/passwd to be denied")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.yaml")
	big := filepath.Join(dir, "big.yaml")
	if err := os.WriteFile(small, []byte("steps: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(big, []byte(strings.Repeat("#", 2048)), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := New(Config{AllowedPaths: []string{dir}, MaxFileSize: "1KB"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CheckFile(small); err != nil {
		t.Errorf("small file: %v", err)
	}
	if err := s.CheckFile(big); err == nil || !strings.Contains(err.Error(), "limit is 1.0KB") {
		t.Errorf("big file err = %v, want size limit error", err)
	}
	if err := s.CheckFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseFileSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"100B", 100},
		{"1KB", 1024},
		{"1.5mb", 1536 * 1024},
		{" 2GB ", 2 * 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := parseFileSize(tt.in)
		if err != nil {
			t.Errorf("parseFileSize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFileSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
