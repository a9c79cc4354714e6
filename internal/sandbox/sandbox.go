// Package sandbox restricts which plan and fixture files agent mode may read.
// Agent requests carry file paths from an untrusted peer; the CLI subcommands
// take paths from the operator and are not checked.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sandbox enforces allowed/denied path prefixes and a file size limit.
type Sandbox struct {
	allowedPaths []string
	deniedPaths  []string
	maxFileSize  int64 // bytes, 0 means unlimited
}

// Config holds the sandbox configuration.
type Config struct {
	AllowedPaths []string `yaml:"allowed_paths"`
	DeniedPaths  []string `yaml:"denied_paths"`
	MaxFileSize  string   `yaml:"max_file_size"` // e.g. "64KB", "1MB"
}

// New creates a Sandbox from cfg. Paths are resolved to absolute paths.
func New(cfg Config) (*Sandbox, error) {
	allowed, err := resolveAll("allowed", cfg.AllowedPaths)
	if err != nil {
		return nil, err
	}
	denied, err := resolveAll("denied", cfg.DeniedPaths)
	if err != nil {
		return nil, err
	}

	s := &Sandbox{allowedPaths: allowed, deniedPaths: denied}
	if cfg.MaxFileSize != "" {
		if s.maxFileSize, err = parseFileSize(cfg.MaxFileSize); err != nil {
			return nil, fmt.Errorf("sandbox: max_file_size %q: %w", cfg.MaxFileSize, err)
		}
	}
	return s, nil
}

func resolveAll(kind string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: %s path %q: %w", kind, p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// CheckPath reports whether path may be read. Denied prefixes win over
// allowed ones; with no allowed prefixes every non-denied path is readable.
func (s *Sandbox) CheckPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("sandbox: resolve path %q: %w", path, err)
	}

	for _, denied := range s.deniedPaths {
		if under(abs, denied) {
			return fmt.Errorf("sandbox: path %q is under denied path %q", abs, denied)
		}
	}
	if len(s.allowedPaths) == 0 {
		return nil
	}
	for _, allowed := range s.allowedPaths {
		if under(abs, allowed) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: path %q is not under any allowed path %v", abs, s.allowedPaths)
}

// CheckFile runs CheckPath and then checks the file's size on disk.
func (s *Sandbox) CheckFile(path string) error {
	if err := s.CheckPath(path); err != nil {
		return err
	}
	if s.maxFileSize <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	if info.Size() > s.maxFileSize {
		return fmt.Errorf("sandbox: %s is %d bytes, limit is %s", path, info.Size(), formatFileSize(s.maxFileSize))
	}
	return nil
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}

var sizeUnits = []struct {
	suffix string
	bytes  int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseFileSize parses sizes like "512", "64KB" or "1.5MB" into bytes.
func parseFileSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, u := range sizeUnits {
		num, ok := strings.CutSuffix(s, u.suffix)
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return int64(n * float64(u.bytes)), nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}

func formatFileSize(n int64) string {
	for _, u := range sizeUnits[:len(sizeUnits)-1] {
		if n >= u.bytes {
			return fmt.Sprintf("%.1f%s", float64(n)/float64(u.bytes), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", n)
}
