package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions to interface with Dragonboat (raft membership source)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the NodeConfig to the Dragonboat config of the membership shard
func (c *NodeConfig) ToDragonboatConfig() config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            c.ShardID,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *NodeConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Node configuration struct
// --------------------------------------------------------------------------

// MembershipSource selects where cluster views come from
type MembershipSource string

const (
	MembershipStatic MembershipSource = "static" // fixed member list, one view
	MembershipRaft   MembershipSource = "raft"   // dragonboat shard membership
	MembershipZK     MembershipSource = "zk"     // zookeeper ephemeral nodes
)

// GeneratorKind selects the entry version generator of the node
type GeneratorKind string

const (
	GeneratorNumeric         GeneratorKind = "numeric"
	GeneratorClustered       GeneratorKind = "clustered"
	GeneratorSimpleClustered GeneratorKind = "simple-clustered"
	GeneratorRandom          GeneratorKind = "random"
)

// NodeConfig holds every configuration parameter of a node.
type NodeConfig struct {
	// Identity
	NodeName string `yaml:"node_name"`

	// Membership
	Membership    MembershipSource `yaml:"membership"`
	StaticMembers []string         `yaml:"static_members,omitempty"`

	// Dragonboat parameters (raft membership source)
	ShardID            uint64            `yaml:"shard_id,omitempty"`
	ReplicaID          uint64            `yaml:"replica_id,omitempty"`
	RTTMillisecond     uint64            `yaml:"rtt_millisecond,omitempty"`
	SnapshotEntries    uint64            `yaml:"snapshot_entries,omitempty"`
	CompactionOverhead uint64            `yaml:"compaction_overhead,omitempty"`
	DataDir            string            `yaml:"data_dir,omitempty"`
	ClusterMembers     map[uint64]string `yaml:"cluster_members,omitempty"`
	PollInterval       time.Duration     `yaml:"poll_interval,omitempty"`

	// ZooKeeper parameters (zk membership source)
	ZKServers []string `yaml:"zk_servers,omitempty"`
	ZKRoot    string   `yaml:"zk_root,omitempty"`

	// Distribution
	NumSegments int `yaml:"num_segments"`
	NumOwners   int `yaml:"num_owners"`

	// Dispatching
	Workers     int           `yaml:"workers"`
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// Versioning
	VersionGenerator GeneratorKind `yaml:"version_generator"`

	// Status endpoint
	Endpoint string `yaml:"endpoint"`

	// Logging configuration
	LogLevel string `yaml:"log_level"`
}

// DefaultNodeConfig returns the configuration of a single static node
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		NodeName:           "node-1",
		Membership:         MembershipStatic,
		StaticMembers:      []string{"node-1"},
		ShardID:            1000,
		RTTMillisecond:     100,
		SnapshotEntries:    100,
		CompactionOverhead: 50,
		DataDir:            "data",
		PollInterval:       time.Second,
		ZKRoot:             "/dorder",
		NumSegments:        256,
		NumOwners:          2,
		Workers:            16,
		LockTimeout:        10 * time.Second,
		VersionGenerator:   GeneratorClustered,
		Endpoint:           "0.0.0.0:8080",
		LogLevel:           "info",
	}
}

// Validate checks the configuration for values the node cannot start with
func (c *NodeConfig) Validate() error {
	if c.NodeName == "" {
		return errors.New("node name is required")
	}
	if c.NumSegments <= 0 {
		return errors.Newf("number of segments must be positive, got %d", c.NumSegments)
	}
	if c.NumOwners <= 0 {
		return errors.Newf("number of owners must be positive, got %d", c.NumOwners)
	}
	if c.Workers <= 0 {
		return errors.Newf("number of workers must be positive, got %d", c.Workers)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.VersionGenerator {
	case GeneratorNumeric, GeneratorClustered, GeneratorSimpleClustered, GeneratorRandom:
	default:
		return errors.Newf("invalid version generator %q (expected one of: numeric, clustered, simple-clustered, random)", c.VersionGenerator)
	}

	switch c.Membership {
	case MembershipStatic:
		for _, m := range c.StaticMembers {
			if m == c.NodeName {
				return nil
			}
		}
		return errors.Newf("node %q is not part of the static members %v", c.NodeName, c.StaticMembers)
	case MembershipRaft:
		if c.ReplicaID == 0 {
			return errors.New("replica id is required for raft membership")
		}
		if _, ok := c.ClusterMembers[c.ReplicaID]; !ok {
			return errors.Newf("no address found for replica ID %d in cluster members", c.ReplicaID)
		}
		return nil
	case MembershipZK:
		if len(c.ZKServers) == 0 {
			return errors.New("at least one zookeeper server is required for zk membership")
		}
		return nil
	default:
		return errors.Newf("invalid membership source %q (expected one of: static, raft, zk)", c.Membership)
	}
}

// String returns a formatted string representation of the configuration
func (c *NodeConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Node")
	addField("Name", c.NodeName)
	addField("Status Endpoint", c.Endpoint)
	addField("Log Level", c.LogLevel)

	addSection("Distribution")
	addField("Segments", strconv.Itoa(c.NumSegments))
	addField("Owners", strconv.Itoa(c.NumOwners))

	addSection("Dispatching")
	addField("Workers", strconv.Itoa(c.Workers))
	addField("Lock Timeout", c.LockTimeout.String())
	addField("Version Generator", string(c.VersionGenerator))

	addSection("Membership")
	addField("Source", string(c.Membership))

	switch c.Membership {
	case MembershipStatic:
		addField("Members", strings.Join(c.StaticMembers, ", "))
	case MembershipZK:
		addField("Servers", strings.Join(c.ZKServers, ", "))
		addField("Root Path", c.ZKRoot)
	case MembershipRaft:
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Replica ID", strconv.FormatUint(c.ReplicaID, 10))
		addField("Shard ID", strconv.FormatUint(c.ShardID, 10))
		addField("Poll Interval", c.PollInterval.String())

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
		addField("Data Directory", c.DataDir)

		sb.WriteString("  Initial Members:\n")
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Replica %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}
