package cluster

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-zookeeper/zk"
)

// zkLogger routes zookeeper client output to the cluster logger
type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	log.Debugf("zk: "+format, args...)
}

// ZKMembership publishes views built from the ephemeral children of a
// ZooKeeper node. The view id is the children version (cversion) of that
// node, which every client observes identically.
type ZKMembership struct {
	servers        []string
	root           string
	nodeName       string
	notifier       *Notifier
	sessionTimeout time.Duration
}

// NewZKMembership creates a ZooKeeper membership source
func NewZKMembership(servers []string, root, nodeName string, notifier *Notifier) *ZKMembership {
	return &ZKMembership{
		servers:        servers,
		root:           path.Clean("/" + root),
		nodeName:       nodeName,
		notifier:       notifier,
		sessionTimeout: 5 * time.Second,
	}
}

// Run registers the local node and publishes a view on every change of the
// member list until ctx is done.
func (m *ZKMembership) Run(ctx context.Context) error {
	conn, _, err := zk.Connect(m.servers, m.sessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return errors.Wrap(err, "zk connect")
	}
	defer conn.Close()

	membersPath := m.root + "/members"
	if err := ensurePath(conn, membersPath); err != nil {
		return errors.Wrapf(err, "ensure %s", membersPath)
	}

	nodePath := membersPath + "/" + m.nodeName
	if _, err := conn.Create(nodePath, nil, zk.FlagEphemeral, zk.WorldACL(zk.PermAll)); err != nil {
		return errors.Wrapf(err, "register %s", nodePath)
	}
	log.Infof("registered %s", nodePath)

	for {
		children, stat, ch, err := conn.ChildrenW(membersPath)
		if err != nil {
			log.Warningf("watching %s failed: %v", membersPath, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
				continue
			}
		}

		sort.Strings(children)
		m.notifier.Publish(View{ID: uint64(stat.Cversion), Members: children, Local: m.nodeName})

		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			log.Debugf("zk event %s on %s", ev.Type, ev.Path)
		}
	}
}

// ensurePath creates every missing component of p as a persistent node
func ensurePath(conn *zk.Conn, p string) error {
	cur := ""
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		_, err := conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}
	return nil
}
