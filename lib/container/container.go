// Package container holds the versioned entries of a node. A write is only
// applied when its version is newer than the stored one, which makes replays
// and reordered stale writes harmless.
package container

import (
	"sort"

	"github.com/ValentinKolb/dOrder/lib/versioning"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("container")

// Entry is a stored value and its version
type Entry struct {
	Value   []byte
	Version versioning.EntryVersion
}

// Container is a concurrent map of versioned entries
type Container struct {
	entries *xsync.MapOf[string, Entry]
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{entries: xsync.NewMapOf[string, Entry]()}
}

// Apply stores value under key if version compares After the stored version.
// It returns false for stale (Before, Equal) and Conflicting versions.
func (c *Container) Apply(key string, value []byte, version versioning.EntryVersion) (bool, error) {
	var (
		applied bool
		err     error
	)
	c.entries.Compute(key, func(old Entry, loaded bool) (Entry, bool) {
		stored := versioning.NonExisting
		if loaded {
			stored = old.Version
		}
		var res versioning.ComparisonResult
		res, err = versioning.Compare(version, stored)
		if err != nil || res != versioning.After {
			if !loaded {
				return old, true
			}
			return old, false
		}
		applied = true
		return Entry{Value: value, Version: version}, false
	})
	if err != nil {
		return false, errors.Wrapf(err, "apply %s", key)
	}
	if !applied {
		log.Debugf("rejected stale write of %s with %s", key, version)
	}
	return applied, nil
}

// Get returns the entry of key
func (c *Container) Get(key string) (Entry, bool) {
	return c.entries.Load(key)
}

// Version returns the stored version of key, or the non-existing version
func (c *Container) Version(key string) versioning.EntryVersion {
	if e, ok := c.entries.Load(key); ok {
		return e.Version
	}
	return versioning.NonExisting
}

// Size returns the number of stored keys
func (c *Container) Size() int {
	return c.entries.Size()
}

// Keys returns the stored keys in sorted order
func (c *Container) Keys() []string {
	keys := make([]string, 0, c.entries.Size())
	c.entries.Range(func(k string, _ Entry) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}
