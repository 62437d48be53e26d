package util

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dOrder/lib/common"
	libUtil "github.com/ValentinKolb/dOrder/lib/util"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables with the DORDER_ prefix
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dorder")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupNodeFlags adds every node configuration flag to a command
func SetupNodeFlags(cmd *cobra.Command) {
	d := common.DefaultNodeConfig()
	f := cmd.PersistentFlags()

	f.String("node-name", d.NodeName, WrapString("NodeName is the unique name of this node in the cluster views. With raft membership it defaults to the replica id"))
	f.String("membership", string(d.Membership), WrapString("Membership is the source of cluster views (static, raft, zk)"))
	f.String("static-members", strings.Join(d.StaticMembers, ","), WrapString("(static membership) Comma-separated list of member names, in rank order"))

	f.Uint64("shard-id", d.ShardID, WrapString("(raft membership) ShardID of the raft shard that replicates the membership"))
	f.String("replica-id", "", WrapString("(raft membership) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))
	f.String("cluster-members", "", WrapString("(raft membership) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))
	f.Uint64("rtt-millisecond", d.RTTMillisecond, WrapString("(raft membership) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances"))
	f.Uint64("snapshot-entries", d.SnapshotEntries, WrapString("(raft membership) SnapshotEntries defines how often the membership state machine is snapshotted, in applied raft log entries"))
	f.Uint64("compaction-overhead", d.CompactionOverhead, WrapString("(raft membership) CompactionOverhead defines the number of log entries retained after a snapshot"))
	f.String("data-dir", d.DataDir, WrapString("(raft membership) DataDir is the directory used for the raft log and snapshots"))
	f.Duration("poll-interval", d.PollInterval, WrapString("(raft membership) PollInterval is how often the shard membership is read"))

	f.String("zk-servers", "", WrapString("(zk membership) Comma-separated list of ZooKeeper servers (e.g. 'zk1:2181,zk2:2181')"))
	f.String("zk-root", d.ZKRoot, WrapString("(zk membership) ZKRoot is the ZooKeeper path the members register under"))

	f.Int("segments", d.NumSegments, WrapString("Number of routing segments keys are hashed to"))
	f.Int("owners", d.NumOwners, WrapString("Number of owners per segment (primary plus backups)"))
	f.Int("workers", d.Workers, WrapString("Maximum number of commands executed concurrently"))
	f.Duration("lock-timeout", d.LockTimeout, WrapString("Default lock timeout for commands that do not carry their own"))
	f.String("version-generator", string(d.VersionGenerator), WrapString("Entry version generator (numeric, clustered, simple-clustered, random)"))
	f.String("endpoint", d.Endpoint, WrapString("The address on which the status endpoint will listen"))
	f.String("log-level", d.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// ReadNodeConfig reads the node configuration from viper and validates it
func ReadNodeConfig() (common.NodeConfig, error) {
	c := common.DefaultNodeConfig()

	c.Membership = common.MembershipSource(viper.GetString("membership"))
	c.StaticMembers = splitList(viper.GetString("static-members"))
	c.ShardID = viper.GetUint64("shard-id")
	c.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	c.SnapshotEntries = viper.GetUint64("snapshot-entries")
	c.CompactionOverhead = viper.GetUint64("compaction-overhead")
	c.DataDir = viper.GetString("data-dir")
	c.PollInterval = viper.GetDuration("poll-interval")
	c.ZKServers = splitList(viper.GetString("zk-servers"))
	c.ZKRoot = viper.GetString("zk-root")
	c.NumSegments = viper.GetInt("segments")
	c.NumOwners = viper.GetInt("owners")
	c.Workers = viper.GetInt("workers")
	c.LockTimeout = viper.GetDuration("lock-timeout")
	c.VersionGenerator = common.GeneratorKind(viper.GetString("version-generator"))
	c.Endpoint = viper.GetString("endpoint")
	c.LogLevel = viper.GetString("log-level")
	c.NodeName = viper.GetString("node-name")

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		c.ReplicaID = libUtil.HashString(id, 0)
		if !viper.IsSet("node-name") {
			c.NodeName = id
		}
	}

	// parse cluster members
	if members := viper.GetString("cluster-members"); members != "" {
		c.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(members, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return c, errors.Newf("invalid cluster member format: %s (expected ID=address)", member)
			}
			c.ClusterMembers[libUtil.HashString(strings.TrimSpace(parts[0]), 0)] = strings.TrimSpace(parts[1])
		}
	}

	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c, c.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
