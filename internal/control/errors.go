package control

import "fmt"

// PreconditionError rejects an operation before any remote call: the record
// does not have the shape the operation needs.
type PreconditionError struct {
	Record string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("record %s: %s", e.Record, e.Reason)
}

// CommandError reports a lifecycle command that ran but exited non-zero. The
// registry is left unchanged. Raw remote output is deliberately not included.
type CommandError struct {
	Record   string
	Action   string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed with exit code %d", e.Action, e.Record, e.ExitCode)
}
