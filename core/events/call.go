package events

import "countingchain/core/types"

const (
	// TypeCallCompleted is emitted once per top-level host call.
	TypeCallCompleted = "call.completed"
)

// CallCompleted summarises one top-level call after it committed or was
// rolled back. Events is empty for failed calls since their effects were
// discarded.
type CallCompleted struct {
	CallID    string
	Height    uint64
	Operation string
	Contract  string
	Sender    string
	Events    []*types.Event
	Err       string
}

func (CallCompleted) EventType() string { return TypeCallCompleted }

// Succeeded reports whether the call committed.
func (c CallCompleted) Succeeded() bool { return c.Err == "" }
