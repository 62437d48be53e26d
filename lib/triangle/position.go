package triangle

import "sync/atomic"

// PositionCursor is a single monotonically advancing position. Position p may
// run once the cursor is at p; finishing it advances the cursor to p+1.
type PositionCursor struct {
	pos atomic.Uint64
}

// NewPositionCursor creates a cursor at position 0
func NewPositionCursor() *PositionCursor {
	return &PositionCursor{}
}

// IsNext reports whether pos is the current position
func (c *PositionCursor) IsNext(pos uint64) bool {
	return c.pos.Load() == pos
}

// Advance moves the cursor past pos. It returns false if pos was not current.
func (c *PositionCursor) Advance(pos uint64) bool {
	return c.pos.CompareAndSwap(pos, pos+1)
}

// Position returns the current position
func (c *PositionCursor) Position() uint64 {
	return c.pos.Load()
}
