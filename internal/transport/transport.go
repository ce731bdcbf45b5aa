// Package transport runs shell commands on fleet hosts and delivers their
// output as an ordered stream of discriminated events.
//
// Every Execute call produces zero or more chunk events followed by exactly
// one terminal event: an exit code, or a connection-level failure. A non-zero
// exit code is a normal terminal event; only connection setup and teardown
// problems surface as ConnError.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pvefleet/internal/registry"
)

// EventKind discriminates stream events.
type EventKind int

const (
	// EventStdout carries a chunk of standard output.
	EventStdout EventKind = iota
	// EventStderr carries a chunk of standard error.
	EventStderr
	// EventExit terminates the stream with the command's exit code.
	EventExit
	// EventConnError terminates the stream with a connection-level failure.
	EventConnError
)

// Event is one element of a command's result stream.
type Event struct {
	Kind     EventKind
	Data     []byte
	ExitCode int
	Err      error
}

// Target identifies where a command runs. An empty Address means the local
// shell.
type Target struct {
	Name            string
	Address         string
	User            string
	Port            int
	KeyPath         string
	KnownHostsPath  string
	InsecureHostKey bool
	Timeout         time.Duration
}

// Local reports whether the target is the local machine.
func (t Target) Local() bool {
	return strings.TrimSpace(t.Address) == ""
}

func (t Target) label() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Local() {
		return "local"
	}
	return t.Address
}

// TargetFor builds a Target from a registry host.
func TargetFor(h registry.Host) Target {
	return Target{
		Name:    h.Name,
		Address: h.Address,
		User:    h.User,
		Port:    h.Port,
		KeyPath: h.KeyPath,
	}
}

// Transport executes one command per call on a named target.
// Production: *Shell
// Testing: adapter/fake.Transport
type Transport interface {
	Execute(ctx context.Context, target Target, command string) <-chan Event
	TestConnectivity(ctx context.Context, target Target) error
}

// ConnError marks a host as unreachable (dial, auth, session setup, or
// deadline). Batch operations treat it as "no data", never as fatal.
type ConnError struct {
	Target string
	Err    error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("host %s unreachable: %v", e.Target, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err is a connection-level failure.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}

// Output is the drained form of an event stream.
type Output struct {
	Stdout   strings.Builder
	Stderr   strings.Builder
	ExitCode int
}

// Collect drains a stream into buffered output. The returned error is non-nil
// only for a connection-level failure; a non-zero exit code is reported
// through Output.ExitCode.
func Collect(events <-chan Event) (Output, error) {
	var out Output
	for ev := range events {
		switch ev.Kind {
		case EventStdout:
			out.Stdout.Write(ev.Data)
		case EventStderr:
			out.Stderr.Write(ev.Data)
		case EventExit:
			out.ExitCode = ev.ExitCode
			return out, nil
		case EventConnError:
			return out, ev.Err
		}
	}
	return out, &ConnError{Target: "unknown", Err: errors.New("stream closed without terminal event")}
}
