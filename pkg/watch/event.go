package watch

import "fmt"

// EventKind is the kind of filesystem change.
type EventKind string

// Event kinds.
const (
	Add       EventKind = "add"
	Change    EventKind = "change"
	Unlink    EventKind = "unlink"
	AddDir    EventKind = "addDir"
	UnlinkDir EventKind = "unlinkDir"
)

// Event is one filesystem change below the watched root.
type Event struct {
	Kind EventKind
	Path string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

// Source delivers filesystem events. Events is closed when the source stops.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}
