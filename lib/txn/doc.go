// Package txn tracks in-flight transactions and lets a newer transaction wait
// until older transactions touching the same keys are gone.
//
// A transaction is identified by its lock owner. The PendingLockManager keeps
// one entry per prepared but not yet completed transaction, together with the
// topology id it was prepared in and its keys. CheckPendingTransactionsForKey
// and CheckPendingTransactionsForKeys return a promise that resolves once
// every transaction that
//
//   - has a different owner,
//   - was prepared in an older topology and
//   - touches one of the requested keys
//
// has been released, or that times out. Transactions registered after the
// check are not waited for.
package txn
