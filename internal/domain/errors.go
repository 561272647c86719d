package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset means the input had no usable records. Fatal, raised before the run.
	ErrEmptyDataset = errors.New("iovsim: dataset has no usable records")
	// ErrAdapterStartup means the simulation or its control channel could not be established.
	ErrAdapterStartup = errors.New("iovsim: simulation adapter startup failed")
	// ErrAdapterFatal means the control channel was lost mid-run.
	ErrAdapterFatal = errors.New("iovsim: simulation adapter failed")
	// ErrActorCreation marks a single rejected injection; the run continues.
	ErrActorCreation = errors.New("iovsim: actor creation rejected")
	// ErrActorQuery marks a single actor whose state could not be read during sampling.
	ErrActorQuery = errors.New("iovsim: actor query failed")
	// ErrActorNotFound is returned when an actor departed before it was queried.
	ErrActorNotFound = errors.New("iovsim: actor not found")
)

// CommandError is a simulation command the simulator answered with an error
// status. The connection is still usable.
type CommandError struct {
	Command     string
	Description string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Description)
}

// IsFatal reports whether err means the simulation can no longer be driven.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAdapterFatal)
}

// Fatal wraps err as ErrAdapterFatal unless it already is one.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrAdapterFatal, op, err)
}
