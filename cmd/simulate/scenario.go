package simulate

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-yaml"
)

// Scenario describes the commands a simulation submits. Sequences and
// positions are submitted in the order they are listed, so a permuted list
// exercises the ordering gates.
type Scenario struct {
	Segments     int             `yaml:"segments"`
	Workers      int             `yaml:"workers"`
	LockTimeout  time.Duration   `yaml:"lock_timeout"`
	Hold         time.Duration   `yaml:"hold"`
	Timeout      time.Duration   `yaml:"timeout"`
	Writes       []SegmentWrites `yaml:"writes"`
	Chunks       []uint64        `yaml:"chunks"`
	Transactions []Transaction   `yaml:"transactions"`
}

// SegmentWrites are backup writes of one segment, in arrival order
type SegmentWrites struct {
	Segment   int      `yaml:"segment"`
	Sequences []uint64 `yaml:"sequences"`
}

// Transaction is prepared, held for Scenario.Hold and committed
type Transaction struct {
	Owner string   `yaml:"owner"`
	Keys  []string `yaml:"keys"`
}

// DefaultScenario is run when no scenario file is given
func DefaultScenario() Scenario {
	return Scenario{
		Segments:    4,
		Workers:     4,
		LockTimeout: 2 * time.Second,
		Hold:        50 * time.Millisecond,
		Timeout:     10 * time.Second,
		Writes: []SegmentWrites{
			{Segment: 0, Sequences: []uint64{3, 1, 2}},
			{Segment: 1, Sequences: []uint64{2, 4, 1, 3}},
			{Segment: 2, Sequences: []uint64{1, 2}},
		},
		Chunks: []uint64{2, 0, 1},
		Transactions: []Transaction{
			{Owner: "tx-a", Keys: []string{"account-1", "account-2"}},
			{Owner: "tx-b", Keys: []string{"account-2", "account-3"}},
			{Keys: []string{"account-4"}},
		},
	}
}

// LoadScenario reads a YAML scenario. Omitted fields keep their default.
func LoadScenario(path string) (Scenario, error) {
	s := DefaultScenario()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "read scenario %s", path)
	}
	// lists are replaced, not merged
	s.Writes, s.Chunks, s.Transactions = nil, nil, nil
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "parse scenario %s", path)
	}
	return s, s.Validate()
}

// Validate checks that every sequence list can complete
func (s Scenario) Validate() error {
	if s.Segments <= 0 {
		return errors.Newf("segments must be positive, got %d", s.Segments)
	}
	for _, w := range s.Writes {
		if w.Segment < 0 || w.Segment >= s.Segments {
			return errors.Newf("segment %d out of range [0, %d)", w.Segment, s.Segments)
		}
		if !isPermutation(w.Sequences, 1) {
			return errors.Newf("sequences of segment %d must be a permutation of 1..%d", w.Segment, len(w.Sequences))
		}
	}
	if !isPermutation(s.Chunks, 0) {
		return errors.Newf("chunks must be a permutation of 0..%d", len(s.Chunks)-1)
	}
	for i, tx := range s.Transactions {
		if len(tx.Keys) == 0 {
			return errors.Newf("transaction %d has no keys", i)
		}
	}
	return nil
}

// isPermutation reports whether values is a permutation of first..first+len-1
func isPermutation(values []uint64, first uint64) bool {
	seen := make(map[uint64]bool, len(values))
	for _, v := range values {
		if v < first || v >= first+uint64(len(values)) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
