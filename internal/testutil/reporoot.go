package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var errNoModuleRoot = errors.New("testutil: go.mod not found above source file")

// moduleRoot walks up from this source file to the directory holding go.mod.
func moduleRoot() (string, error) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("testutil: caller unavailable")
	}
	for dir := filepath.Dir(self); ; {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir, nil
		}
		up := filepath.Dir(dir)
		if up == dir {
			return "", errNoModuleRoot
		}
		dir = up
	}
}

// RepoFile resolves a path relative to the module root and fails the test
// when it does not exist. Shipped files (example configs, workflows) are
// checked through it.
func RepoFile(t *testing.T, elem ...string) string {
	t.Helper()
	root, err := moduleRoot()
	if err != nil {
		t.Fatalf("module root: %v", err)
	}
	p := filepath.Join(append([]string{root}, elem...)...)
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("repo file %s: %v", p, err)
	}
	return p
}
