package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cadence/internal/ir"
)

// GoldenDir is the fixture directory for golden traces.
const GoldenDir = "testdata/golden"

// GoldenSuffix is appended to the scenario name to form the file name.
const GoldenSuffix = ".golden"

// Snapshot renders a result as a golden trace: a header line with the
// scenario name and tick count, then one canonical JSON event per line.
func Snapshot(result *Result) ([]byte, error) {
	var buf bytes.Buffer

	header, err := ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(result.Name),
		"ticks":    ir.Number(result.Ticks),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for _, ev := range result.Trace {
		line, err := ir.MarshalCanonical(ev.Object())
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, name, snap)
	return nil
}

// GoldenPath returns the golden file for a scenario file: a sibling
// golden/ directory next to the scenario's directory.
func GoldenPath(scenarioPath, name string) string {
	dir := filepath.Dir(filepath.Dir(scenarioPath))
	return filepath.Join(dir, "golden", name+GoldenSuffix)
}

// WriteGolden writes the snapshot of result to path.
func WriteGolden(path string, result *Result) error {
	snap, err := Snapshot(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snap, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden compares the snapshot of result with the file at path.
// A missing golden file is reported as an error.
func CompareGolden(path string, result *Result) error {
	want, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("golden file not found: %s (run with --update to create)", path)
		}
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := Snapshot(result)
	if err != nil {
		return err
	}
	if bytes.Equal(want, got) {
		return nil
	}
	return fmt.Errorf("trace differs from %s:\n%s", path, firstDifference(want, got))
}

// firstDifference describes the first differing line.
func firstDifference(want, got []byte) string {
	wl := bytes.Split(bytes.TrimSuffix(want, []byte("\n")), []byte("\n"))
	gl := bytes.Split(bytes.TrimSuffix(got, []byte("\n")), []byte("\n"))
	for i := 0; i < len(wl) || i < len(gl); i++ {
		var w, g []byte
		if i < len(wl) {
			w = wl[i]
		}
		if i < len(gl) {
			g = gl[i]
		}
		if !bytes.Equal(w, g) {
			return fmt.Sprintf("  line %d\n  - %s\n  + %s", i+1, w, g)
		}
	}
	return "  (trailing bytes differ)"
}
