package action

import "sync/atomic"

// ITriangleOrder is the sequence tracker the triangle gates admit against
type ITriangleOrder interface {
	IsNext(segment int, sequence uint64, topologyID int) bool
	IsNextAll(sequences map[int]uint64, topologyID int) bool
	MarkDelivered(segment int, sequence uint64, topologyID int)
	MarkDeliveredAll(sequences map[int]uint64, topologyID int)
}

// IReadySignal asks the dispatcher to re-check its blocked tasks
type IReadySignal interface {
	CheckForReadyTasks()
}

// IPositionCursor is the cursor of PositionAction
type IPositionCursor interface {
	IsNext(position uint64) bool
	Advance(position uint64) bool
}

// ---- single segment ----

// TriangleOrderAction admits a backup write when its sequence is next in its segment
type TriangleOrderAction struct {
	noHooks
	admitted atomic.Bool
	order    ITriangleOrder
	signal   IReadySignal
	segment  int
	sequence uint64
}

// NewTriangleOrderAction creates a gate for (segment, sequence)
func NewTriangleOrderAction(order ITriangleOrder, signal IReadySignal, segment int, sequence uint64) *TriangleOrderAction {
	return &TriangleOrderAction{order: order, signal: signal, segment: segment, sequence: sequence}
}

func (a *TriangleOrderAction) Check(state *State) Status {
	if a.order.IsNext(a.segment, a.sequence, state.TopologyID()) {
		a.admitted.Store(true)
		return Ready
	}
	return NotReady
}

// OnFinally marks the sequence delivered and wakes its successors. It does
// nothing if the gate never admitted the command.
func (a *TriangleOrderAction) OnFinally(state *State) {
	if !a.admitted.Swap(false) {
		return
	}
	a.order.MarkDelivered(a.segment, a.sequence, state.TopologyID())
	a.signal.CheckForReadyTasks()
}

// ---- multiple segments ----

// MultiTriangleOrderAction admits a batch when all its sequences are next
type MultiTriangleOrderAction struct {
	noHooks
	admitted atomic.Bool
	order     ITriangleOrder
	signal    IReadySignal
	sequences map[int]uint64
}

// NewMultiTriangleOrderAction creates a gate for every (segment, sequence) pair
func NewMultiTriangleOrderAction(order ITriangleOrder, signal IReadySignal, sequences map[int]uint64) *MultiTriangleOrderAction {
	return &MultiTriangleOrderAction{order: order, signal: signal, sequences: sequences}
}

func (a *MultiTriangleOrderAction) Check(state *State) Status {
	if a.order.IsNextAll(a.sequences, state.TopologyID()) {
		a.admitted.Store(true)
		return Ready
	}
	return NotReady
}

// OnFinally marks every sequence delivered and wakes the successors
func (a *MultiTriangleOrderAction) OnFinally(state *State) {
	if !a.admitted.Swap(false) {
		return
	}
	a.order.MarkDeliveredAll(a.sequences, state.TopologyID())
	a.signal.CheckForReadyTasks()
}

// ---- position ----

// PositionAction admits a command when the cursor reached its position
type PositionAction struct {
	noHooks
	admitted atomic.Bool
	cursor   IPositionCursor
	signal   IReadySignal
	position uint64
}

// NewPositionAction creates a gate for position
func NewPositionAction(cursor IPositionCursor, signal IReadySignal, position uint64) *PositionAction {
	return &PositionAction{cursor: cursor, signal: signal, position: position}
}

func (a *PositionAction) Check(*State) Status {
	if a.cursor.IsNext(a.position) {
		a.admitted.Store(true)
		return Ready
	}
	return NotReady
}

// OnFinally advances the cursor past the position and wakes the successors
func (a *PositionAction) OnFinally(*State) {
	if a.admitted.Swap(false) && a.cursor.Advance(a.position) {
		a.signal.CheckForReadyTasks()
	}
}
