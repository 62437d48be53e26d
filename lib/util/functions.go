package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed returns a random 64 bit value read from crypto/rand.
// If the system random source fails the current time is used instead.
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// HashString hashes s with FNV-1a. The seed is mixed into the offset basis so
// that two different seeds give two independent hash functions.
func HashString(s string, seed uint64) uint64 {
	hash := uint64(fnvOffset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= fnvPrime64
	}
	return hash
}

// SegmentOf maps a key to one of numSegments routing segments.
// The lower bits of FNV-1a are weak for short keys, so the hash is shifted
// before the modulo.
func SegmentOf(key string, numSegments int) int {
	if numSegments <= 1 {
		return 0
	}
	return int((HashString(key, 0) >> 7) % uint64(numSegments))
}
