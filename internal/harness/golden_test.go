package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

// Regenerate with: go test ./internal/harness -update
func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"chain", "fetch_barrier"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			requirePass(t, result)
		})
	}
}

func TestSnapshot_Format(t *testing.T) {
	result := &Result{
		Name:  "snap",
		Ticks: 2,
		Trace: []ir.TraceEvent{
			{Seq: 1, Tick: 0, NodeID: "a", Name: "x", Type: ir.TraceActivate, Status: ir.StatusActive},
			{Seq: 2, Tick: 1, NodeID: "a", Name: "x", Type: ir.TraceDone, Status: ir.StatusDone, Value: ir.String("ok")},
		},
	}
	snap, err := Snapshot(result)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(snap), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `{"scenario":"snap","ticks":2}`, lines[0])
	assert.Contains(t, lines[1], `"value":null`)
	assert.Contains(t, lines[2], `"value":"ok"`)
	assert.True(t, strings.HasPrefix(lines[1], `{"cycle":0,"name":"x"`), "keys are sorted")
}

func TestCompareGolden(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "golden", "chain.golden")

	scenario, err := LoadScenario("testdata/scenarios/chain.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	err = CompareGolden(path, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--update")

	require.NoError(t, WriteGolden(path, result))
	assert.NoError(t, CompareGolden(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	changed := strings.Replace(string(data), `"ticks":5`, `"ticks":6`, 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	err = CompareGolden(path, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestGoldenPath(t *testing.T) {
	got := GoldenPath(filepath.Join("suite", "scenarios", "chain.yaml"), "chain")
	assert.Equal(t, filepath.Join("suite", "golden", "chain.golden"), got)
}

func TestGoldenFileMatchesCheckedIn(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/chain.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.NoError(t, CompareGolden(filepath.Join(GoldenDir, "chain.golden"), result))
}
