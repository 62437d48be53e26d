package versioning

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrIncomparableVersions is returned when two versions of different kinds are compared
	ErrIncomparableVersions = errors.New("versions of different kinds are not comparable")
	// ErrRankNotInitialized is returned by clustered generators before the first view
	ErrRankNotInitialized = errors.New("version generator has not observed a cluster view yet")
	// ErrUnexpectedVersion is returned when a generator is asked to increment a foreign version kind
	ErrUnexpectedVersion = errors.New("unexpected version kind")
	// ErrVersionOverflow is returned when a version has no successor
	ErrVersionOverflow = errors.New("version space exhausted")
)

// ComparisonResult is the outcome of comparing two versions
type ComparisonResult int

const (
	Before ComparisonResult = iota
	After
	Equal
	Conflicting
)

func (r ComparisonResult) String() string {
	switch r {
	case Before:
		return "BEFORE"
	case After:
		return "AFTER"
	case Equal:
		return "EQUAL"
	case Conflicting:
		return "CONFLICTING"
	default:
		return fmt.Sprintf("ComparisonResult(%d)", int(r))
	}
}

// Invert returns the result of the reversed comparison
func (r ComparisonResult) Invert() ComparisonResult {
	switch r {
	case Before:
		return After
	case After:
		return Before
	default:
		return r
	}
}

// EntryVersion is an opaque, comparable version token.
type EntryVersion interface {
	// Compare compares this version with other. A nil other is treated as
	// the non-existing version.
	Compare(other EntryVersion) (ComparisonResult, error)
	String() string
}

// Compare compares a with b, treating nil as the non-existing version on both sides
func Compare(a, b EntryVersion) (ComparisonResult, error) {
	if a == nil {
		a = NonExisting
	}
	return a.Compare(b)
}

// --------------------------------------------------------------------------
// Non existing version
// --------------------------------------------------------------------------

type nonExistingVersion struct{}

// NonExisting is the version of a key that was never written
var NonExisting EntryVersion = nonExistingVersion{}

// IsNonExisting reports whether v is nil or the non-existing sentinel
func IsNonExisting(v EntryVersion) bool {
	return v == nil || v == NonExisting
}

func (nonExistingVersion) Compare(other EntryVersion) (ComparisonResult, error) {
	if IsNonExisting(other) {
		return Equal, nil
	}
	return Before, nil
}

func (nonExistingVersion) String() string {
	return "NonExistingVersion"
}

// --------------------------------------------------------------------------
// Numeric version
// --------------------------------------------------------------------------

// NumericVersion is a single 64 bit counter
type NumericVersion struct {
	Version uint64
}

func (v NumericVersion) Compare(other EntryVersion) (ComparisonResult, error) {
	if IsNonExisting(other) {
		return After, nil
	}
	o, ok := other.(NumericVersion)
	if !ok {
		return Conflicting, errors.Wrapf(ErrIncomparableVersions, "%s vs %s", v, other)
	}
	switch {
	case v.Version < o.Version:
		return Before, nil
	case v.Version > o.Version:
		return After, nil
	default:
		return Equal, nil
	}
}

func (v NumericVersion) String() string {
	return fmt.Sprintf("NumericVersion{version=%d}", v.Version)
}

// --------------------------------------------------------------------------
// Simple clustered version
// --------------------------------------------------------------------------

// SimpleClusteredVersion is a counter scoped to a topology id. A version of a
// newer topology is always After a version of an older one.
type SimpleClusteredVersion struct {
	TopologyID int
	Version    uint64
}

func (v SimpleClusteredVersion) Compare(other EntryVersion) (ComparisonResult, error) {
	if IsNonExisting(other) {
		return After, nil
	}
	o, ok := other.(SimpleClusteredVersion)
	if !ok {
		return Conflicting, errors.Wrapf(ErrIncomparableVersions, "%s vs %s", v, other)
	}
	switch {
	case v.TopologyID < o.TopologyID:
		return Before, nil
	case v.TopologyID > o.TopologyID:
		return After, nil
	case v.Version < o.Version:
		return Before, nil
	case v.Version > o.Version:
		return After, nil
	default:
		return Equal, nil
	}
}

func (v SimpleClusteredVersion) String() string {
	return fmt.Sprintf("SimpleClusteredVersion{topologyId=%d, version=%d}", v.TopologyID, v.Version)
}
