package dispatch

import (
	"time"

	"github.com/ValentinKolb/dOrder/lib/action"
	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/ValentinKolb/dOrder/lib/triangle"
	"github.com/cockroachdb/errors"
)

// Response receives the outcome of a command. It may be nil.
type Response func(result any, err error)

// Handler is the inbound side of a node: it gates and runs remote commands.
type Handler struct {
	executor       *Executor
	env            *command.Env
	order          *triangle.Manager
	cursor         *triangle.PositionCursor
	defaultTimeout time.Duration
}

// NewHandler creates a handler running commands on executor against env.
// env.Topology must be set.
func NewHandler(executor *Executor, env *command.Env, order *triangle.Manager, cursor *triangle.PositionCursor, defaultTimeout time.Duration) *Handler {
	return &Handler{
		executor:       executor,
		env:            env,
		order:          order,
		cursor:         cursor,
		defaultTimeout: defaultTimeout,
	}
}

// Handle submits cmd. reply is called once, from a worker goroutine.
func (h *Handler) Handle(cmd command.IRemoteCommand, reply Response) error {
	ready := h.ReadyAction(cmd)
	ready.AddListener(h.executor.CheckForReadyTasks)
	return h.executor.Execute(&commandTask{handler: h, cmd: cmd, ready: ready, reply: reply})
}

// ReadyAction builds the ordered gates of cmd
func (h *Handler) ReadyAction(cmd command.IRemoteCommand) *action.DefaultReadyAction {
	state := action.NewState(cmd, h.defaultTimeout)
	actions := []action.IAction{action.NewCheckTopologyAction(h.env.Topology)}

	if _, ok := cmd.(command.ITransactionalRemoteLockCommand); ok {
		actions = append(actions, action.NewPendingTxAction(h.env.Pending, h.env.Locks, h.env.Topology))
	}
	if _, ok := cmd.(command.IRemoteLockCommand); ok {
		actions = append(actions, action.NewLockAction(h.env.Locks, h.env.Topology))
	}
	switch c := cmd.(type) {
	case command.ISequencedCommand:
		actions = append(actions, action.NewTriangleOrderAction(h.order, h.executor, c.Segment(), c.Sequence()))
	case command.IMultiSequencedCommand:
		actions = append(actions, action.NewMultiTriangleOrderAction(h.order, h.executor, c.Sequences()))
	case command.IPositionedCommand:
		actions = append(actions, action.NewPositionAction(h.cursor, h.executor, c.Position()))
	}
	return action.NewDefaultReadyAction(state, actions...)
}

// ---- task ----

type commandTask struct {
	handler *Handler
	cmd     command.IRemoteCommand
	ready   *action.DefaultReadyAction
	reply   Response
}

func (t *commandTask) IsReady() bool {
	return t.ready.IsReady()
}

// Run performs the command and replies. The gates are finished after the
// reply, so a successor is never admitted before its predecessor replied.
func (t *commandTask) Run() {
	defer t.ready.OnFinally()
	t.respond(t.execute())
}

func (t *commandTask) execute() (any, error) {
	m := t.handler.executor.metrics
	if t.ready.IsCanceled() {
		m.canceled.Inc()
		return nil, errors.Wrapf(ErrCanceled, "%s %s (topology %d)", t.cmd.Kind(), t.cmd.CommandID(), t.cmd.TopologyID())
	}

	result, err := t.perform()
	if err != nil {
		m.failed.Inc()
		t.ready.OnException()
		log.Debugf("%s %s failed: %v", t.cmd.Kind(), t.cmd.CommandID(), err)
		return nil, err
	}
	m.executed.Inc()
	return result, nil
}

func (t *commandTask) perform() (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("%s %s panicked: %v", t.cmd.Kind(), t.cmd.CommandID(), r)
		}
	}()
	return t.cmd.Perform(t.handler.env)
}

func (t *commandTask) Abort(err error) {
	t.ready.OnFinally()
	t.respond(nil, err)
}

func (t *commandTask) respond(result any, err error) {
	if t.reply != nil {
		t.reply(result, err)
	}
}
