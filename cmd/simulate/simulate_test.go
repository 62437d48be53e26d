package simulate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/stretchr/testify/require"
)

func detailsOf(events []Event, kind command.Kind) []string {
	var out []string
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e.Detail)
		}
	}
	return out
}

func TestDefaultScenario(t *testing.T) {
	report, err := Run(context.Background(), DefaultScenario())
	require.NoError(t, err)

	for _, e := range report.Events {
		require.NotContains(t, e.Result, "error", e.Detail)
	}

	// per segment, backup writes complete in sequence order
	require.Equal(t, []string{
		"segment=0 seq=1", "segment=0 seq=2", "segment=0 seq=3",
	}, filter(detailsOf(report.Events, command.KindBackupWrite), "segment=0"))
	require.Equal(t, []string{
		"segment=1 seq=1", "segment=1 seq=2", "segment=1 seq=3", "segment=1 seq=4",
	}, filter(detailsOf(report.Events, command.KindBackupWrite), "segment=1"))
	require.Equal(t, []string{"position=0", "position=1", "position=2"}, detailsOf(report.Events, command.KindStateChunk))

	require.Equal(t, map[int]uint64{0: 3, 1: 4, 2: 2}, report.Delivered)
	require.Equal(t, uint64(3), report.Position)

	// tx-b waits for the lock on account-2 held by tx-a
	var order []string
	for _, e := range report.Events {
		if e.Kind == command.KindPrepare || e.Kind == command.KindCommit {
			order = append(order, string(e.Kind)+" "+e.Detail[:len("owner=tx-a")])
		}
	}
	require.Len(t, order, 6)
	require.Less(t, indexOf(order, "prepare owner=tx-a"), indexOf(order, "prepare owner=tx-b"))
	require.NotEqual(t, -1, indexOf(order, "commit owner=tx-b"))
	require.Equal(t, uint64(len(report.Events)), report.Metrics.Executed)
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
segments: 2
hold: 10ms
writes:
  - segment: 1
    sequences: [2, 1]
chunks: [1, 0]
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	require.Equal(t, 2, s.Segments)
	require.Equal(t, 10*time.Millisecond, s.Hold)
	require.Empty(t, s.Transactions)
	require.Equal(t, DefaultScenario().Workers, s.Workers)

	report, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, []string{"segment=1 seq=1", "segment=1 seq=2"}, detailsOf(report.Events, command.KindBackupWrite))
}

func TestScenarioValidation(t *testing.T) {
	s := DefaultScenario()
	s.Writes = []SegmentWrites{{Segment: 0, Sequences: []uint64{1, 3}}}
	require.ErrorContains(t, s.Validate(), "permutation")

	s = DefaultScenario()
	s.Writes = []SegmentWrites{{Segment: 9, Sequences: []uint64{1}}}
	require.ErrorContains(t, s.Validate(), "out of range")

	s = DefaultScenario()
	s.Chunks = []uint64{1, 1}
	require.ErrorContains(t, s.Validate(), "chunks")
}

func TestSimulateCommandOutput(t *testing.T) {
	var out bytes.Buffer
	SimulateCmd.SetOut(&out)
	SimulateCmd.SetArgs([]string{"--yaml"})
	require.NoError(t, SimulateCmd.Execute())
	require.Contains(t, out.String(), "events:")
	require.Contains(t, out.String(), "kind: backup-write")
}

func filter(details []string, prefix string) []string {
	var out []string
	for _, d := range details {
		if len(d) >= len(prefix) && d[:len(prefix)] == prefix {
			out = append(out, d)
		}
	}
	return out
}

func indexOf(values []string, v string) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}
