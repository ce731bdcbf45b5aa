package fake

import (
	"context"
	"strings"
	"sync"

	"pvefleet/internal/transport"
)

var _ transport.Transport = (*Transport)(nil)

// Response is one scripted command result.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type scriptedPrefix struct {
	prefix string
	resp   Response
}

// Transport replays scripted command output per target. Commands are matched
// exactly first, then by registered prefix; unmatched commands succeed with
// empty output.
type Transport struct {
	CallRecorder

	mu       sync.Mutex
	exact    map[string]map[string]Response
	prefixes map[string][]scriptedPrefix
	down     map[string]error
}

func NewTransport() *Transport {
	return &Transport{
		exact:    make(map[string]map[string]Response),
		prefixes: make(map[string][]scriptedPrefix),
		down:     make(map[string]error),
	}
}

// Script registers an exact-match response for one target.
func (t *Transport) Script(targetName, command string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exact[targetName] == nil {
		t.exact[targetName] = make(map[string]Response)
	}
	t.exact[targetName][command] = resp
}

// ScriptPrefix registers a prefix-match response for one target.
func (t *Transport) ScriptPrefix(targetName, prefix string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prefixes[targetName] = append(t.prefixes[targetName], scriptedPrefix{prefix: prefix, resp: resp})
}

// SetDown marks a target as unreachable. A nil err restores reachability.
func (t *Transport) SetDown(targetName string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.down, targetName)
		return
	}
	t.down[targetName] = err
}

func (t *Transport) lookup(targetName, command string) (Response, *transport.ConnError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cause, isDown := t.down[targetName]; isDown {
		return Response{}, &transport.ConnError{Target: targetName, Err: cause}
	}
	if resp, ok := t.exact[targetName][command]; ok {
		return resp, nil
	}
	for _, p := range t.prefixes[targetName] {
		if strings.HasPrefix(command, p.prefix) {
			return p.resp, nil
		}
	}
	return Response{}, nil
}

func (t *Transport) Execute(ctx context.Context, target transport.Target, command string) <-chan transport.Event {
	t.record("Execute", target.Name, command)
	events := make(chan transport.Event, 4)

	resp, connErr := t.lookup(target.Name, command)
	go func() {
		defer close(events)
		if connErr != nil {
			events <- transport.Event{Kind: transport.EventConnError, Err: connErr}
			return
		}
		if resp.Stdout != "" {
			events <- transport.Event{Kind: transport.EventStdout, Data: []byte(resp.Stdout)}
		}
		if resp.Stderr != "" {
			events <- transport.Event{Kind: transport.EventStderr, Data: []byte(resp.Stderr)}
		}
		events <- transport.Event{Kind: transport.EventExit, ExitCode: resp.ExitCode}
	}()
	return events
}

func (t *Transport) TestConnectivity(ctx context.Context, target transport.Target) error {
	t.record("TestConnectivity", target.Name)
	t.mu.Lock()
	defer t.mu.Unlock()
	if cause, isDown := t.down[target.Name]; isDown {
		return &transport.ConnError{Target: target.Name, Err: cause}
	}
	return nil
}
