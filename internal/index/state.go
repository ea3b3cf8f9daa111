package index

import "fmt"

// State is the manager's lifecycle state.
type State int32

const (
	// StateIdle means no operation is running.
	StateIdle State = iota
	// StateLoading means the snapshot is being read.
	StateLoading
	// StateMutating means chunks are being appended or excised.
	StateMutating
	// StateRebuilding means the vector or keyword index is being rebuilt.
	StateRebuilding
	// StatePersisting means the snapshot is being written.
	StatePersisting
	// StateFailed means the last operation failed and the manager fell back
	// to the last persisted snapshot. It clears on the next successful
	// operation.
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateLoading:    "loading",
	StateMutating:   "mutating",
	StateRebuilding: "rebuilding",
	StatePersisting: "persisting",
	StateFailed:     "failed",
}

// String returns the state's name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
