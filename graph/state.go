package graph

import "sync/atomic"

// State is the run state of the graph or one of its nodes.
type State int32

const (
	// StateNull means stopped: the node holds no running resources and
	// produces silence.
	StateNull State = iota
	// StatePlaying means the node is producing or consuming audio.
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StatePlaying:
		return "playing"
	}
	return "unknown"
}

// node carries the run state shared by every element of the graph. The
// state is read by the render goroutine and written by the mutator, so it is
// atomic.
type node struct {
	state    atomic.Int32
	released atomic.Bool
}

// State reports the node's current run state.
func (n *node) State() State { return State(n.state.Load()) }

// Released reports whether the node has been torn down.
func (n *node) Released() bool { return n.released.Load() }

func (n *node) setState(s State) { n.state.Store(int32(s)) }

// syncState copies the parent's state onto the node, so a node added to an
// already playing graph starts playing instead of staying stopped.
func (n *node) syncState(parent State) {
	if n.released.Load() {
		return
	}
	n.setState(parent)
}

func (n *node) release() { n.released.Store(true) }

// element is anything the graph can own as a child.
type element interface {
	State() State
	setState(State)
	release()
}
