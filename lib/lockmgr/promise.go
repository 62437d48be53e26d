package lockmgr

import (
	"github.com/ValentinKolb/dOrder/lib/util"
)

// lockPromise is an ILockPromise backed by a single-resolution future
type lockPromise struct {
	f *util.Future[LockState]
}

func newLockPromise() *lockPromise {
	return &lockPromise{f: util.NewFuture[LockState]()}
}

func completedLockPromise(state LockState) *lockPromise {
	return &lockPromise{f: util.CompletedFuture(state)}
}

func (p *lockPromise) complete(state LockState) bool {
	return p.f.Complete(state)
}

func (p *lockPromise) IsAvailable() bool {
	return p.f.IsDone()
}

func (p *lockPromise) State() LockState {
	if s, ok := p.f.Value(); ok {
		return s
	}
	return Waiting
}

func (p *lockPromise) AddListener(listener func(state LockState)) {
	p.f.OnComplete(listener)
}
