// Package command defines the lifecycle commands fed to the progress worker and
// the unbounded FIFO channel that carries them from hook callbacks to the worker.
package command

import "fmt"

// Kind tags the variant held by a Command.
type Kind string

// Supported command kinds.
const (
	KindStart    Kind = "start"
	KindStop     Kind = "stop"
	KindShutdown Kind = "shutdown"
)

// Handle is an opaque reference to a work item's metadata (a path, an object
// name, a database key). The worker never interprets it.
type Handle string

// Command is an immutable lifecycle instruction for the progress worker.
type Command struct {
	// Kind selects the transition requested.
	Kind Kind
	// Handle is set for Start and, when the host supplies it, for Stop.
	Handle Handle
}

// Start requests tracking of the work item referenced by h.
func Start(h Handle) Command {
	return Command{Kind: KindStart, Handle: h}
}

// Stop reports that the current work item ended.
func Stop(h Handle) Command {
	return Command{Kind: KindStop, Handle: h}
}

// Shutdown asks the worker loop to exit.
func Shutdown() Command {
	return Command{Kind: KindShutdown}
}

func (c Command) String() string {
	if c.Handle == "" {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s(%s)", c.Kind, c.Handle)
}
