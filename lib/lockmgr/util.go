package lockmgr

import (
	"sort"

	"github.com/google/uuid"
)

// NewOwner creates a new unique lock owner id
func NewOwner() string {
	return uuid.New().String()
}

// sortedUnique returns the keys sorted and without duplicates
func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	j := 0
	for i, k := range out {
		if i == 0 || k != out[j-1] {
			out[j] = k
			j++
		}
	}
	return out[:j]
}
