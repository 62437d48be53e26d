// Package command defines the remote commands a node receives and the
// interfaces the admission actions inspect.
//
// Command kinds and the admission gates the dispatcher puts in front of them:
//
//	Kind                 Interface                          Gates
//	write                IRemoteCommand                     topology
//	backup-write         ISequencedCommand                  topology, triangle order
//	backup-multi-write   IMultiSequencedCommand             topology, multi triangle order
//	state-chunk          IPositionedCommand                 topology, position
//	lock-control         IRemoteLockCommand                 topology, lock
//	prepare              ITransactionalRemoteLockCommand    topology, pending tx, lock
//	commit / rollback    IRemoteCommand                     topology
//
// Lock commands never release locks in their gates. A lock command that runs
// without holding its locks fails with ErrLockTimeout; releasing is done by
// lock-control (unlock), commit and rollback.
package command
