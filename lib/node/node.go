package node

import (
	"context"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/ValentinKolb/dOrder/lib/container"
	"github.com/ValentinKolb/dOrder/lib/dispatch"
	"github.com/ValentinKolb/dOrder/lib/lockmgr"
	"github.com/ValentinKolb/dOrder/lib/triangle"
	"github.com/ValentinKolb/dOrder/lib/txn"
	"github.com/ValentinKolb/dOrder/lib/versioning"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger("node")

const shutdownTimeout = 5 * time.Second

// Node is a running member of the cluster
type Node struct {
	config common.NodeConfig

	notifier  *cluster.Notifier
	topology  *cluster.TopologyTracker
	ranks     *versioning.RankCalculator
	generator versioning.IVersionGenerator

	env      *command.Env
	locks    *lockmgr.LockManager
	order    *triangle.Manager
	cursor   *triangle.PositionCursor
	executor *dispatch.Executor
	handler  *dispatch.Handler

	nodeHost *dragonboat.NodeHost
	source   func(ctx context.Context) error
	start    sync.Once
}

// New validates config and builds every component of the node. Nothing is
// started until Run is called, except the raft replica of the membership
// shard.
func New(config common.NodeConfig) (*Node, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	n := &Node{
		config:   config,
		notifier: cluster.NewNotifier(),
		topology: cluster.NewTopologyTracker(config.NumSegments, config.NumOwners),
		locks:    lockmgr.NewLockManager(),
		order:    triangle.NewManager(),
		cursor:   triangle.NewPositionCursor(),
	}

	// topology -> triangle order; installing a topology may unblock parked tasks
	n.topology.AddListener(n.order)
	n.executor = dispatch.NewExecutor(config.Workers)
	n.order.OnTopologyInstalled(func(int) { n.executor.CheckForReadyTasks() })

	n.ranks = versioning.NewRankCalculator(n.notifier)
	generator, err := versioning.NewGenerator(config.VersionGenerator, n.ranks, n.topology)
	if err != nil {
		n.executor.Stop()
		return nil, err
	}
	n.generator = generator

	n.env = &command.Env{
		Container: container.NewContainer(),
		Locks:     n.locks,
		Pending:   txn.NewPendingLockManager(),
		Topology:  n.topology,
	}
	n.handler = dispatch.NewHandler(n.executor, n.env, n.order, n.cursor, config.LockTimeout)

	if err := n.initMembership(); err != nil {
		n.executor.Stop()
		return nil, err
	}

	log.Infof("created node %s", config.NodeName)
	log.Infof(config.String())
	return n, nil
}

// initMembership selects the view source of the node
func (n *Node) initMembership() error {
	switch n.config.Membership {
	case common.MembershipStatic:
		n.source = func(ctx context.Context) error {
			cluster.PublishStatic(n.notifier, n.config.StaticMembers, n.config.NodeName)
			<-ctx.Done()
			return nil
		}

	case common.MembershipRaft:
		nh, err := dragonboat.NewNodeHost(n.config.ToNodeHostConfig())
		if err != nil {
			return errors.Wrap(err, "failed to create node host")
		}
		if err := cluster.StartMembershipShard(nh, n.config.ClusterMembers, false, n.config.ToDragonboatConfig()); err != nil {
			nh.Close()
			return errors.Wrapf(err, "failed to start membership shard %d", n.config.ShardID)
		}
		n.nodeHost = nh
		membership := cluster.NewRaftMembership(nh, n.config.ShardID, n.config.ReplicaID, n.config.NodeName, n.notifier, n.config.PollInterval)
		n.source = membership.Run

	case common.MembershipZK:
		membership := cluster.NewZKMembership(n.config.ZKServers, n.config.ZKRoot, n.config.NodeName, n.notifier)
		n.source = membership.Run

	default:
		return errors.Newf("invalid membership source %q", n.config.Membership)
	}
	return nil
}

// Run starts the membership source and the status endpoint and blocks until
// ctx is canceled or one of them fails.
func (n *Node) Run(ctx context.Context) error {
	n.Start()
	defer n.ranks.Stop()

	server := &http.Server{
		Addr:              n.config.Endpoint,
		Handler:           n.Router(),
		ReadHeaderTimeout: time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.source(ctx)
	})
	g.Go(func() error {
		log.Infof("starting status endpoint on %s", n.config.Endpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "status endpoint")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})
	return g.Wait()
}

// Start wires the rank calculator and the topology tracker to the view
// notifier. Run calls it; in-process users that publish views themselves
// call it directly.
func (n *Node) Start() {
	n.start.Do(func() {
		n.notifier.AddListener(n.topology)
		n.ranks.Start()
	})
}

// Close stops the executor and the raft node host, if any
func (n *Node) Close() {
	n.executor.Stop()
	if n.nodeHost != nil {
		n.nodeHost.Close()
	}
	log.Infof("closed node %s", n.config.NodeName)
}

// Handle dispatches a received command. reply is called exactly once.
func (n *Node) Handle(cmd command.IRemoteCommand, reply dispatch.Response) error {
	return n.handler.Handle(cmd, reply)
}

// Config returns the configuration of the node
func (n *Node) Config() common.NodeConfig { return n.config }

// Notifier returns the view notifier of the node
func (n *Node) Notifier() *cluster.Notifier { return n.notifier }

// Topology returns the topology tracker of the node
func (n *Node) Topology() *cluster.TopologyTracker { return n.topology }

// Generator returns the version generator of the node
func (n *Node) Generator() versioning.IVersionGenerator { return n.generator }

// Env returns the state commands are performed against
func (n *Node) Env() *command.Env { return n.env }

// Executor returns the dispatcher of the node
func (n *Node) Executor() *dispatch.Executor { return n.executor }

// Order returns the triangle order manager of the node
func (n *Node) Order() *triangle.Manager { return n.order }

// Cursor returns the state transfer position cursor of the node
func (n *Node) Cursor() *triangle.PositionCursor { return n.cursor }
