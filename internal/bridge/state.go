package bridge

import (
	"time"

	"latksync/internal/socketio"
)

// State is a snapshot of the bridge's view of the transport session.
// It only reflects the most recent transport event.
type State struct {
	Connected bool
	HasError  bool               // LastError is set
	LastError socketio.ErrorKind // classification of the most recent error
	ChangedAt time.Time
}

func connectedState(at time.Time) *State {
	return &State{Connected: true, ChangedAt: at}
}

func failedState(kind socketio.ErrorKind, at time.Time) *State {
	return &State{Connected: false, HasError: true, LastError: kind, ChangedAt: at}
}
