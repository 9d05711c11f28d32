package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuite_AllPass(t *testing.T) {
	files, err := ScenarioFiles("testdata/scenarios")
	require.NoError(t, err)

	result := RunSuite(files)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	wrong := filepath.Join(dir, "wrong.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [\n"), 0o644))
	require.NoError(t, os.WriteFile(wrong, []byte(`
name: wrong
description: "fails"
nodes:
  a: {x: 1}
steps:
  - idle: true
assertions:
  - type: value
    node: a
    name: x
    expect: 2
`), 0o644))

	result := RunSuite([]string{bad, wrong, "testdata/scenarios/chain.yaml"})
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, bad, result.Failures[0].Path)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "wrong", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
}
