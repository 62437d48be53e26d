// Package dispatch drives the readiness framework: it receives remote
// commands, builds their admission gates and runs them once they are ready.
//
// Executor is a blocking-task-aware executor. Execute never blocks the
// caller: tasks are pushed onto a lock-free MPSC queue and picked up by one
// control goroutine. The control goroutine runs ready tasks on a bounded
// worker pool and parks the others in an ordered set. Parked tasks are polled
// again, oldest first, whenever CheckForReadyTasks is signalled. Gates signal
// it when they complete asynchronously and when a finished command may have
// unblocked its successors.
//
// Handler turns a command into a task. The gates of a task depend on the
// command kind (see the command package) and are always ordered
// topology check, pending transactions, lock, triangle order.
//
// Metrics of the executor are kept in a VictoriaMetrics set:
//
//	dorder_dispatch_submitted_total   tasks passed to Execute
//	dorder_dispatch_admitted_total    tasks handed to the worker pool
//	dorder_dispatch_parked            tasks waiting for their gates
//	dorder_dispatch_wait_seconds      time from Execute to admission
//	dorder_commands_executed_total    commands that ran successfully
//	dorder_commands_failed_total      commands that returned an error
//	dorder_commands_canceled_total    commands canceled by a gate
package dispatch
