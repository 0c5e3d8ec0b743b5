// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &out))
	assert.Contains(t, out.String(), "commit:")
}

func TestRun_BadFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-no-such-flag"}, &bytes.Buffer{}))
}

func TestRun_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("unknownKey: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, run([]string{"-config", path}, &bytes.Buffer{}))
}
