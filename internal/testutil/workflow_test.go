package testutil

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type workflow struct {
	On struct {
		Push struct {
			Branches []string `yaml:"branches"`
			Tags     []string `yaml:"tags"`
		} `yaml:"push"`
	} `yaml:"on"`
	Jobs map[string]struct {
		Strategy struct {
			Matrix struct {
				OS      []string            `yaml:"os"`
				Dist    []string            `yaml:"dist"`
				Go      []string            `yaml:"go"`
				Role    []string            `yaml:"role"`
				Include []map[string]string `yaml:"include"`
			} `yaml:"matrix"`
		} `yaml:"strategy"`
		Env   map[string]string `yaml:"env"`
		Steps []struct {
			Name string `yaml:"name"`
			If   string `yaml:"if"`
			Run  string `yaml:"run"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

func goDirective(t *testing.T) string {
	t.Helper()
	f, err := os.Open(RepoFile(t, "go.mod"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "go "); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatal("go directive missing from go.mod")
	return ""
}

func TestWorkflow_Shape(t *testing.T) {
	raw, err := os.ReadFile(RepoFile(t, ".github", "workflows", "ci.yml"))
	require.NoError(t, err)
	var wf workflow
	require.NoError(t, yaml.Unmarshal(raw, &wf))

	assert.Equal(t, []string{"main"}, wf.On.Push.Branches)
	assert.Equal(t, []string{"v*"}, wf.On.Push.Tags)

	job, ok := wf.Jobs["check"]
	require.True(t, ok, "check job missing")
	m := job.Strategy.Matrix
	assert.NotEmpty(t, m.OS)
	assert.NotEmpty(t, m.Dist)
	require.Len(t, m.Go, 3)
	assert.Equal(t, "stable", m.Go[0])
	assert.Equal(t, "oldstable", m.Go[1])

	// the third channel pins the go.mod minimum at major.minor.
	parts := strings.SplitN(goDirective(t), ".", 3)
	require.GreaterOrEqual(t, len(parts), 2)
	assert.Equal(t, parts[0]+"."+parts[1]+".x", m.Go[2])

	roles := map[string]bool{}
	for _, r := range m.Role {
		roles[r] = true
	}
	for _, inc := range m.Include {
		roles[inc["role"]] = true
	}
	assert.Equal(t, map[string]bool{"test": true, "lint": true, "fmt": true}, roles)
	assert.Equal(t, "${{ matrix.role }}", job.Env["ROLE"])

	// every role runs exactly one gated step.
	gated := map[string]string{}
	for _, s := range job.Steps {
		if s.If == "" {
			continue
		}
		role := strings.Trim(strings.TrimPrefix(s.If, "env.ROLE == "), "'")
		_, dup := gated[role]
		assert.False(t, dup, "role %s gated twice", role)
		gated[role] = s.Run
	}
	require.Len(t, gated, 3)
	assert.Contains(t, gated["test"], "go test -race")
	assert.Contains(t, gated["lint"], "go vet")
	assert.Contains(t, gated["fmt"], "gofmt -l")
}
