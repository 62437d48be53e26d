// Package cluster provides the membership side of a dOrder node: cluster
// views, their distribution to listeners and the cache topology derived
// from them.
//
// A View is an immutable snapshot of the cluster membership, identified by a
// monotonically increasing view id. Views are produced by a membership
// source and published through a Notifier:
//
//   - static:  a fixed member list, published once at startup
//   - raft:    RaftMembership polls the membership of a dragonboat shard and
//     publishes a view whenever its config change id grows
//   - zk:      ZKMembership registers an ephemeral node under a ZooKeeper
//     root and publishes a view on every children watch event
//
// The TopologyTracker is the most important view listener. It turns each view
// into a CacheTopology (topology id = view id) that assigns the owners of every
// segment by rendezvous hashing over the member names. The first owner of a
// segment is its primary owner. The tracker also records the first topology in
// which the local node was a member, which the topology check action uses to
// drop commands that predate this node.
//
// Thread-safety:
//
//	All exported types are safe for concurrent use. Listeners are notified
//	sequentially and in view order; a listener must not block.
package cluster
