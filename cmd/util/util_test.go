package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dOrder/lib/common"
	libUtil "github.com/ValentinKolb/dOrder/lib/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		require.LessOrEqual(t, len(line), Wrap)
	}
	require.Equal(t, "", WrapString("   "))
}

func parse(t *testing.T, args ...string) (common.NodeConfig, error) {
	t.Helper()
	viper.Reset()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	SetupNodeFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))
	return ReadNodeConfig()
}

func TestReadNodeConfigDefaults(t *testing.T) {
	c, err := parse(t)
	require.NoError(t, err)
	require.Equal(t, common.DefaultNodeConfig(), c)
}

func TestReadNodeConfigRaft(t *testing.T) {
	c, err := parse(t,
		"--membership=raft",
		"--replica-id=node-2",
		"--cluster-members=node-1=localhost:63001, node-2=localhost:63002",
	)
	require.NoError(t, err)
	require.Equal(t, common.MembershipRaft, c.Membership)
	require.Equal(t, "node-2", c.NodeName)
	require.Equal(t, libUtil.HashString("node-2", 0), c.ReplicaID)
	require.Equal(t, "localhost:63002", c.ClusterMembers[c.ReplicaID])
	require.Len(t, c.ClusterMembers, 2)
}

func TestReadNodeConfigErrors(t *testing.T) {
	_, err := parse(t, "--membership=raft", "--replica-id=node-1", "--cluster-members=node-1")
	require.ErrorContains(t, err, "invalid cluster member format")

	_, err = parse(t, "--static-members=a,b")
	require.ErrorContains(t, err, "not part")

	_, err = parse(t, "--membership=zk")
	require.ErrorContains(t, err, "zookeeper")
}
