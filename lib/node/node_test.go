package node

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/ValentinKolb/dOrder/lib/versioning"
	"github.com/stretchr/testify/require"
)

func testConfig() common.NodeConfig {
	config := common.DefaultNodeConfig()
	config.NodeName = "node-1"
	config.StaticMembers = []string{"node-1", "node-2"}
	config.NumSegments = 8
	config.Workers = 2
	config.Endpoint = "127.0.0.1:0"
	config.LogLevel = "error"
	return config
}

func startedNode(t *testing.T) *Node {
	t.Helper()
	n, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(n.Close)
	n.Start()
	cluster.PublishStatic(n.Notifier(), n.Config().StaticMembers, n.Config().NodeName)
	return n
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := testConfig()
	config.NumSegments = 0
	_, err := New(config)
	require.Error(t, err)
	require.Contains(t, err.Error(), "segments")

	config = testConfig()
	config.VersionGenerator = "lamport"
	_, err = New(config)
	require.Error(t, err)
}

func TestNodeWiring(t *testing.T) {
	n := startedNode(t)

	require.Equal(t, 1, n.Topology().TopologyID())
	require.Equal(t, 1, n.Order().TopologyID())

	v, err := n.Generator().GenerateNew()
	require.NoError(t, err)
	require.Equal(t, versioning.RankPrefix(1, 1)|1, v.(versioning.NumericVersion).Version)
}

func TestNodeHandlesCommands(t *testing.T) {
	n := startedNode(t)

	v, err := n.Generator().GenerateNew()
	require.NoError(t, err)

	done := make(chan error, 1)
	cmd := command.NewWriteCommand(n.Topology().TopologyID(), command.Entry{Key: "k", Value: []byte("v"), Version: v})
	require.NoError(t, n.Handle(cmd, func(_ any, err error) { done <- err }))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write did not complete")
	}
	e, ok := n.Env().Container.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", string(e.Value))
}

func TestStatusRoutes(t *testing.T) {
	n := startedNode(t)

	done := make(chan struct{})
	cmd := command.NewWriteCommand(1, command.Entry{Key: "k", Value: []byte("v"), Version: versioning.NumericVersion{Version: 7}})
	require.NoError(t, n.Handle(cmd, func(any, error) { close(done) }))
	<-done

	srv := httptest.NewServer(n.Router())
	defer srv.Close()

	code, body := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok\n", body)

	code, body = get(t, srv, "/view")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "rank: 1")
	require.Contains(t, body, "node-2")

	code, body = get(t, srv, "/topology")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "segments: 8")

	code, body = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "dorder_commands_executed_total 1")

	code, body = get(t, srv, "/entries/k")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "value: v")

	code, _ = get(t, srv, "/entries/missing")
	require.Equal(t, http.StatusNotFound, code)

	code, body = get(t, srv, "/locks")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "lock.wait")
}

func TestRunStopsWithContext(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- n.Run(ctx) }()

	require.Eventually(t, func() bool {
		return n.Topology().TopologyID() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Run did not return")
	}
}
