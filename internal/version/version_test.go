package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })

	Version = "v1.2.3"
	s := String()
	assert.True(t, strings.HasPrefix(s, "v1.2.3 (commit: "), s)
	assert.Contains(t, s, "built: ")
}
