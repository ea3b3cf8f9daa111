// Package watcher watches the inbox directory and reports documents dropped
// into it. Events come from fsnotify, or from periodic directory scans when
// fsnotify is unavailable, and are debounced so a file still being copied
// yields one event.
package watcher

import (
	"time"
)

// Operation is a file system change.
type Operation int

const (
	// OpCreate means a new file appeared.
	OpCreate Operation = iota
	// OpModify means an existing file changed.
	OpModify
	// OpDelete means a file disappeared.
	OpDelete
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced change of a file in the inbox.
type FileEvent struct {
	// Path is the absolute file path.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures an InboxWatcher.
type Options struct {
	// Debounce is how long a file must be quiet before its event is emitted.
	Debounce time.Duration
	// PollInterval is the scan interval when fsnotify is unavailable.
	PollInterval time.Duration
	// ForcePolling skips fsnotify.
	ForcePolling bool
	// Filter reports whether a file name is of interest. Nil accepts all.
	Filter func(name string) bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Debounce:     500 * time.Millisecond,
		PollInterval: 2 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}
