/*
Package node assembles a complete dOrder node from its parts.

A node owns one instance of every collaborator the dispatcher needs:

  - a membership source (static, raft or zookeeper) publishing views to a
    cluster.Notifier
  - a cluster.TopologyTracker deriving segment ownership from those views
  - a versioning.RankCalculator and the configured version generator
  - a lockmgr.LockManager and a txn.PendingLockManager
  - a triangle.Manager and a triangle.PositionCursor
  - a dispatch.Executor with its dispatch.Handler

Usage:

	n, err := node.New(config)
	if err != nil {
		return err
	}
	defer n.Close()

	// blocks until ctx is canceled
	return n.Run(ctx)

Commands enter through Handle. The status endpoint started by Run serves
the dispatcher metrics, the lock metrics and the current view.
*/
package node
