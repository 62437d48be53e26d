package simulate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/ValentinKolb/dOrder/lib/dispatch"
	"github.com/ValentinKolb/dOrder/lib/node"
	"github.com/ValentinKolb/dOrder/lib/versioning"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const simNode = "sim"

// Event is one command completion, in the order the node finished them
type Event struct {
	Step   int          `yaml:"step"`
	Kind   command.Kind `yaml:"kind"`
	Detail string       `yaml:"detail"`
	Result string       `yaml:"result"`
}

// Report is the outcome of a simulation
type Report struct {
	Events    []Event           `yaml:"events"`
	Delivered map[int]uint64    `yaml:"delivered"`
	Position  uint64            `yaml:"position"`
	Metrics   dispatch.Snapshot `yaml:"metrics"`
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(kind command.Kind, detail string, result any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := fmt.Sprint(result)
	if err != nil {
		res = "error: " + err.Error()
	}
	r.events = append(r.events, Event{Step: len(r.events) + 1, Kind: kind, Detail: detail, Result: res})
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// simulation submits the commands of one scenario to an in-process node
type simulation struct {
	scenario Scenario
	node     *node.Node
	topology int
	rec      recorder
	wg       sync.WaitGroup
}

// Run submits every command of s to a single-member node and waits until all
// of them completed or ctx is done.
func Run(ctx context.Context, s Scenario) (Report, error) {
	if err := s.Validate(); err != nil {
		return Report{}, err
	}

	config := common.DefaultNodeConfig()
	config.NodeName = simNode
	config.StaticMembers = []string{simNode}
	config.NumSegments = s.Segments
	config.NumOwners = 1
	if s.Workers > 0 {
		config.Workers = s.Workers
	}
	if s.LockTimeout > 0 {
		config.LockTimeout = s.LockTimeout
	}

	n, err := node.New(config)
	if err != nil {
		return Report{}, err
	}
	defer n.Close()

	n.Start()
	cluster.PublishStatic(n.Notifier(), config.StaticMembers, config.NodeName)

	sim := &simulation{scenario: s, node: n, topology: n.Topology().TopologyID()}
	if err := sim.submitAll(); err != nil {
		return Report{}, err
	}

	done := make(chan struct{})
	go func() {
		sim.wg.Wait()
		close(done)
	}()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	report := Report{Delivered: make(map[int]uint64)}
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "simulation did not complete")
	}

	// drain, so the gates of the last commands are finished
	n.Executor().Stop()

	report.Events = sim.rec.snapshot()
	for _, w := range s.Writes {
		report.Delivered[w.Segment] = n.Order().Delivered(w.Segment)
	}
	report.Position = n.Cursor().Position()
	report.Metrics = n.Executor().Metrics().Snapshot()
	return report, err
}

func (sim *simulation) submitAll() error {
	for _, w := range sim.scenario.Writes {
		key := fmt.Sprintf("segment-%d", w.Segment)
		for _, seq := range w.Sequences {
			entry := command.Entry{Key: key, Value: []byte(fmt.Sprint(seq)), Version: versioning.NumericVersion{Version: seq}}
			cmd := command.NewBackupWriteCommand(sim.topology, w.Segment, seq, entry)
			if err := sim.submit(cmd, fmt.Sprintf("segment=%d seq=%d", w.Segment, seq), nil); err != nil {
				return err
			}
		}
	}

	for _, pos := range sim.scenario.Chunks {
		entry := command.Entry{Key: "chunk", Value: []byte(fmt.Sprint(pos)), Version: versioning.NumericVersion{Version: pos + 1}}
		cmd := command.NewStateChunkCommand(sim.topology, pos, []command.Entry{entry})
		if err := sim.submit(cmd, fmt.Sprintf("position=%d", pos), nil); err != nil {
			return err
		}
	}

	for _, tx := range sim.scenario.Transactions {
		if err := sim.prepare(tx); err != nil {
			return err
		}
	}
	return nil
}

// prepare submits the prepare of tx. A successful prepare is committed after
// the hold time, a failed one is rolled back.
func (sim *simulation) prepare(tx Transaction) error {
	owner := tx.Owner
	if owner == "" {
		owner = uuid.NewString()[:8]
	}
	detail := fmt.Sprintf("owner=%s keys=%s", owner, strings.Join(tx.Keys, ","))

	cmd := command.NewPrepareCommand(sim.topology, owner, tx.Keys, sim.scenario.LockTimeout)
	return sim.submit(cmd, detail, func(err error) {
		// counted before the prepare completes so Wait cannot return in between
		sim.wg.Add(1)
		time.AfterFunc(sim.scenario.Hold, func() {
			var next command.IRemoteCommand
			if err != nil {
				next = command.NewRollbackCommand(sim.topology, owner, tx.Keys)
			} else {
				next = command.NewCommitCommand(sim.topology, owner, sim.writes(owner, tx.Keys))
			}
			sim.dispatch(next, detail, nil)
		})
	})
}

// writes creates one entry per key with a fresh version
func (sim *simulation) writes(owner string, keys []string) []command.Entry {
	entries := make([]command.Entry, 0, len(keys))
	for _, k := range keys {
		v, err := sim.node.Generator().GenerateNew()
		if err != nil {
			v = versioning.NumericVersion{Version: 1}
		}
		entries = append(entries, command.Entry{Key: k, Value: []byte(owner), Version: v})
	}
	return entries
}

func (sim *simulation) submit(cmd command.IRemoteCommand, detail string, then func(error)) error {
	sim.wg.Add(1)
	return sim.dispatch(cmd, detail, then)
}

// dispatch hands cmd to the node. The caller has already counted it.
func (sim *simulation) dispatch(cmd command.IRemoteCommand, detail string, then func(error)) error {
	err := sim.node.Handle(cmd, func(result any, err error) {
		sim.rec.add(cmd.Kind(), detail, result, err)
		if then != nil {
			then(err)
		}
		sim.wg.Done()
	})
	if err != nil {
		sim.wg.Done()
		return errors.Wrapf(err, "submit %s", cmd.Kind())
	}
	return nil
}
