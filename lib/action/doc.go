// Package action implements the readiness framework that gates the execution
// of remote commands.
//
// An IAction is one admission gate. Check returns NotReady, Ready or
// Canceled; Ready and Canceled are terminal. Check never blocks: an action
// that waits for something asynchronous returns NotReady and wakes its
// listeners once the wait is over. Actions are scoped to one command and share
// that command's State.
//
// Gates:
//
//   - CheckTopologyAction:       cancels commands older than the first
//     topology the node was a member of
//   - PendingTxAction:           waits for older transactions on the same
//     keys; cancels on timeout and otherwise tightens the state timeout
//   - LockAction:                acquires the locks of the primary owned
//     keys; a denied lock passes through as Ready and the command reports it
//   - TriangleOrderAction:       admits a backup write when its sequence is
//     next in its segment
//   - MultiTriangleOrderAction:  the same for several segments at once
//   - PositionAction:            admits a command when a cursor reached its
//     position
//
// The locking gates share a compare-and-swap state machine
// (init -> checking -> make-ready -> ready | canceled). Exactly one goroutine
// wins each transition, so the finalization runs once no matter how many
// goroutines poll the same action.
//
// DefaultReadyAction chains gates in a fixed order behind one cursor and is
// what the dispatcher polls. CompositeAction joins several ready actions.
//
// Thread-safety:
//
//	Check, IsReady and AddListener are safe for concurrent use. OnException
//	and OnFinally are called once by the goroutine that ran the command.
package action
