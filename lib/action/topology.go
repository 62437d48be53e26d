package action

// ITopologyInfo tells since when the local node is a cluster member
type ITopologyInfo interface {
	FirstTopologyAsMember() int
}

// CheckTopologyAction cancels commands sent before the local node joined the
// cluster. The node never received the state those commands act on.
type CheckTopologyAction struct {
	noHooks
	topology ITopologyInfo
}

// NewCheckTopologyAction creates a topology gate
func NewCheckTopologyAction(topology ITopologyInfo) *CheckTopologyAction {
	return &CheckTopologyAction{topology: topology}
}

func (a *CheckTopologyAction) Check(state *State) Status {
	if first := a.topology.FirstTopologyAsMember(); state.TopologyID() < first {
		log.Debugf("%s has topology %d, node joined in %d", state.Command().CommandID(), state.TopologyID(), first)
		return Canceled
	}
	return Ready
}
