package cluster

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-yaml"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/config"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Membership State Machine
// --------------------------------------------------------------------------

const (
	resultOK uint64 = iota
	resultInvalid
)

// announcement is the only command of the membership shard: it binds a raft
// replica to the node name used in views.
type announcement struct {
	ReplicaID uint64 `yaml:"replica_id"`
	NodeName  string `yaml:"node_name"`
}

// namesQuery reads the announced names and the raft index of the last change
type namesQuery struct{}

type namesResult struct {
	Names map[uint64]string
	Index uint64
}

// MembershipStateMachine stores the node name announced by each replica of
// the membership shard.
type MembershipStateMachine struct {
	shardID   uint64
	replicaID uint64
	names     *xsync.MapOf[uint64, string]
	index     *xsync.MapOf[string, uint64] // "last" -> raft index of the last effective announcement
}

// NewMembershipStateMachine is the dragonboat factory of the membership shard
func NewMembershipStateMachine(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return &MembershipStateMachine{
		shardID:   shardID,
		replicaID: replicaID,
		names:     xsync.NewMapOf[uint64, string](),
		index:     xsync.NewMapOf[string, uint64](),
	}
}

// Update applies announcements. An announcement that does not change the
// stored name is acknowledged but does not move the change index.
func (fsm *MembershipStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	for idx, e := range entries {
		var a announcement
		if err := yaml.Unmarshal(e.Cmd, &a); err != nil || a.ReplicaID == 0 || a.NodeName == "" {
			entries[idx].Result = sm.Result{Value: resultInvalid, Data: []byte("invalid announcement")}
			continue
		}
		if old, ok := fsm.names.Load(a.ReplicaID); !ok || old != a.NodeName {
			fsm.names.Store(a.ReplicaID, a.NodeName)
			fsm.index.Store("last", e.Index)
		}
		entries[idx].Result = sm.Result{Value: resultOK}
	}
	return entries, nil
}

// Lookup answers namesQuery with a copy of the announced names
func (fsm *MembershipStateMachine) Lookup(itf interface{}) (interface{}, error) {
	if _, ok := itf.(namesQuery); !ok {
		return nil, errors.Newf("invalid query type: %T", itf)
	}
	res := namesResult{Names: make(map[uint64]string, fsm.names.Size())}
	fsm.names.Range(func(id uint64, name string) bool {
		res.Names[id] = name
		return true
	})
	res.Index, _ = fsm.index.Load("last")
	return res, nil
}

// PrepareSnapshot is not used, the snapshot is fuzzy
func (fsm *MembershipStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

type membershipSnapshot struct {
	Names map[uint64]string `yaml:"names"`
	Index uint64            `yaml:"index"`
}

// SaveSnapshot writes the announced names as YAML
func (fsm *MembershipStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	res, _ := fsm.Lookup(namesQuery{})
	names := res.(namesResult)
	data, err := yaml.Marshal(membershipSnapshot{Names: names.Names, Index: names.Index})
	if err != nil {
		return errors.Wrap(err, "marshal membership snapshot")
	}
	_, err = writer.Write(data)
	return err
}

// RecoverFromSnapshot replaces the announced names with the snapshot content
func (fsm *MembershipStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var snap membershipSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, "unmarshal membership snapshot")
	}
	fsm.names.Clear()
	for id, name := range snap.Names {
		fsm.names.Store(id, name)
	}
	fsm.index.Store("last", snap.Index)
	return nil
}

// Close performs any necessary cleanup.
func (fsm *MembershipStateMachine) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Raft Membership Source
// --------------------------------------------------------------------------

// RaftMembership derives views from the membership of a dragonboat shard.
//
// The view id is the larger of the shard's config change id and the raft
// index of the last name announcement. Both are raft log indices, so every
// node observes the same id for the same member list.
type RaftMembership struct {
	nh        *dragonboat.NodeHost
	cs        *client.Session
	shardID   uint64
	replicaID uint64
	nodeName  string
	notifier  *Notifier
	interval  time.Duration
}

// StartMembershipShard starts the local replica of the membership shard
func StartMembershipShard(nh *dragonboat.NodeHost, members map[uint64]string, join bool, cfg config.Config) error {
	return nh.StartConcurrentReplica(members, join, NewMembershipStateMachine, cfg)
}

// NewRaftMembership creates a membership source for an already started shard
func NewRaftMembership(nh *dragonboat.NodeHost, shardID, replicaID uint64, nodeName string, notifier *Notifier, interval time.Duration) *RaftMembership {
	if interval <= 0 {
		interval = time.Second
	}
	return &RaftMembership{
		nh:        nh,
		cs:        nh.GetNoOPSession(shardID),
		shardID:   shardID,
		replicaID: replicaID,
		nodeName:  nodeName,
		notifier:  notifier,
		interval:  interval,
	}
}

// Run announces the local node and publishes views until ctx is done
func (m *RaftMembership) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	announced := false
	for {
		if !announced {
			if err := m.announce(ctx); err != nil {
				log.Warningf("announcing %s failed, retrying: %v", m.nodeName, err)
			} else {
				announced = true
			}
		}
		if err := m.poll(ctx); err != nil {
			log.Debugf("polling membership of shard %d failed: %v", m.shardID, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *RaftMembership) announce(ctx context.Context) error {
	cmd, err := yaml.Marshal(announcement{ReplicaID: m.replicaID, NodeName: m.nodeName})
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*m.interval)
	defer cancel()
	res, err := m.nh.SyncPropose(pctx, m.cs, cmd)
	if err != nil {
		return errors.Wrap(err, "propose announcement")
	}
	if res.Value != resultOK {
		return errors.Newf("announcement rejected: %s", res.Data)
	}
	return nil
}

func (m *RaftMembership) poll(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	membership, err := m.nh.SyncGetShardMembership(pctx, m.shardID)
	if err != nil {
		return errors.Wrapf(err, "get membership of shard %d", m.shardID)
	}
	res, err := m.nh.SyncRead(pctx, m.shardID, namesQuery{})
	if err != nil {
		return errors.Wrapf(err, "read names of shard %d", m.shardID)
	}
	names, ok := res.(namesResult)
	if !ok {
		return errors.AssertionFailedf("unexpected lookup result %T", res)
	}

	m.notifier.Publish(buildRaftView(membership.ConfigChangeID, membership.Nodes, names, m.nodeName))
	return nil
}

// buildRaftView orders members by replica id and replaces raft addresses
// with announced node names where available.
func buildRaftView(configChangeID uint64, nodes map[uint64]string, names namesResult, local string) View {
	ids := make([]uint64, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	members := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names.Names[id]; ok {
			members = append(members, name)
		} else {
			members = append(members, nodes[id])
		}
	}
	return View{ID: max(configChangeID, names.Index), Members: members, Local: local}
}
