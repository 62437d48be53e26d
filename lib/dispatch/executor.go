package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dOrder/lib/util"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/pool"
	"github.com/zhangyunhao116/skipmap"
)

var log = logger.GetLogger("dispatch")

var (
	// ErrStopped is returned for tasks submitted to or parked in a stopped executor
	ErrStopped = errors.New("executor stopped")
	// ErrCanceled is reported for commands canceled by one of their gates
	ErrCanceled = errors.New("command canceled")
)

// IBlockingTask is a task that may only run once it is ready
type IBlockingTask interface {
	IsReady() bool
	Run()
}

// IAbortableTask is a task that must be told when it will never run
type IAbortableTask interface {
	IBlockingTask
	Abort(err error)
}

type taskEntry struct {
	id       uint64
	task     IBlockingTask
	enqueued time.Time
}

// Executor runs blocking tasks once they are ready.
type Executor struct {
	queue  *util.MPSCQueue[taskEntry]
	parked *skipmap.FuncMap[uint64, *taskEntry]
	pool   *pool.Pool
	signal chan struct{}

	nextID  atomic.Uint64
	stopped atomic.Bool
	done    chan struct{}
	stop    sync.Once

	metrics *Metrics
}

// NewExecutor creates and starts an executor with at most workers concurrent tasks
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		queue: util.NewMPSCQueue[taskEntry](),
		parked: skipmap.NewFunc[uint64, *taskEntry](func(a, b uint64) bool {
			return a < b
		}),
		pool:   pool.New().WithMaxGoroutines(workers),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	e.metrics = newMetrics(func() float64 { return float64(e.parked.Len()) })
	go e.control()
	return e
}

// Metrics returns the metric set of the executor
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// Execute submits a task. It never blocks.
func (e *Executor) Execute(task IBlockingTask) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	entry := &taskEntry{id: e.nextID.Add(1), task: task, enqueued: time.Now()}
	if !e.queue.Push(entry) {
		return ErrStopped
	}
	e.metrics.submitted.Inc()
	return nil
}

// CheckForReadyTasks asks the control goroutine to poll the parked tasks
func (e *Executor) CheckForReadyTasks() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Parked returns the number of tasks waiting for their gates
func (e *Executor) Parked() int {
	return e.parked.Len()
}

// Stop rejects new tasks, waits for the running ones and aborts the parked ones
func (e *Executor) Stop() {
	e.stop.Do(func() {
		e.stopped.Store(true)
		e.queue.Close()
		<-e.done
		e.pool.Wait()

		aborted := 0
		e.parked.Range(func(id uint64, entry *taskEntry) bool {
			e.parked.Delete(id)
			if t, ok := entry.task.(IAbortableTask); ok {
				t.Abort(ErrStopped)
			}
			aborted++
			return true
		})
		if aborted > 0 {
			log.Warningf("executor stopped with %d parked tasks", aborted)
		}
	})
}

// control is the only goroutine that admits or parks tasks
func (e *Executor) control() {
	defer close(e.done)
	recv := e.queue.Recv()
	for {
		select {
		case entry, ok := <-recv:
			if !ok {
				return
			}
			if entry.task.IsReady() {
				e.admit(entry)
			} else {
				e.parked.Store(entry.id, entry)
			}
		case <-e.signal:
			e.recheck()
		}
	}
}

// recheck admits every parked task that became ready, oldest first
func (e *Executor) recheck() {
	e.parked.Range(func(id uint64, entry *taskEntry) bool {
		if entry.task.IsReady() {
			e.parked.Delete(id)
			e.admit(entry)
		}
		return true
	})
}

func (e *Executor) admit(entry *taskEntry) {
	e.metrics.admitted.Inc()
	e.metrics.wait.UpdateDuration(entry.enqueued)
	e.pool.Go(entry.task.Run)
}
