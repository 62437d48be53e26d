package cluster

import (
	"fmt"
	"slices"
)

// View is one cluster membership snapshot
type View struct {
	ID      uint64   `yaml:"id"`
	Members []string `yaml:"members"`
	Local   string   `yaml:"local"`
}

// IViewListener receives every view published by a Notifier
type IViewListener interface {
	ViewChanged(view View)
}

// ViewListenerFunc adapts a function to the IViewListener interface
type ViewListenerFunc func(view View)

func (f ViewListenerFunc) ViewChanged(view View) { f(view) }

// Rank returns the 1-based position of the local member in the member list,
// or 0 if the local node is not a member of this view.
func (v View) Rank() int {
	return slices.Index(v.Members, v.Local) + 1
}

// IsMember reports whether the given node is part of the view
func (v View) IsMember(node string) bool {
	return slices.Contains(v.Members, node)
}

func (v View) String() string {
	return fmt.Sprintf("view[%d]%v", v.ID, v.Members)
}
