// Package control issues container lifecycle commands for script records.
//
// Destroy's ordering is the one strict guarantee in the system: the remote
// destroy must confirm success before the record is deleted, so a container
// that failed to be removed never loses its last registry reference.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pvefleet/internal/check"
	"pvefleet/internal/registry"
	"pvefleet/internal/transport"
)

// Registry is the store slice the actuator needs.
type Registry interface {
	GetHost(ctx context.Context, id int64) (registry.Host, bool, error)
	DeleteRecord(ctx context.Context, id int64) error
}

type Actuator struct {
	Registry  Registry
	Transport transport.Transport
}

func (a *Actuator) Start(ctx context.Context, rec registry.ScriptRecord) error {
	return a.lifecycle(ctx, rec, "start")
}

func (a *Actuator) Stop(ctx context.Context, rec registry.ScriptRecord) error {
	return a.lifecycle(ctx, rec, "stop")
}

// Destroy removes the container and, only after the remote command confirms
// success, deletes the script record.
func (a *Actuator) Destroy(ctx context.Context, rec registry.ScriptRecord) error {
	host, err := a.resolve(ctx, rec)
	if err != nil {
		return err
	}
	if err := a.run(ctx, host, rec, "destroy"); err != nil {
		return err
	}

	if err := a.Registry.DeleteRecord(ctx, rec.ID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// Deleted by another actor after our remote destroy; done.
			return nil
		}
		return fmt.Errorf("delete record %s: %w", rec.Name, err)
	}
	slog.Info("container destroyed", "record", rec.Name, "container", rec.ContainerID)
	return nil
}

func (a *Actuator) lifecycle(ctx context.Context, rec registry.ScriptRecord, action string) error {
	host, err := a.resolve(ctx, rec)
	if err != nil {
		return err
	}
	return a.run(ctx, host, rec, action)
}

// resolve enforces the precondition boundary: no remote call is attempted
// for a record that is not a container-bound remote record.
func (a *Actuator) resolve(ctx context.Context, rec registry.ScriptRecord) (registry.Host, error) {
	check.Assert(a.Registry != nil, "Actuator: Registry must not be nil")
	check.Assert(a.Transport != nil, "Actuator: Transport must not be nil")

	if rec.ExecutionMode != registry.ModeRemote {
		return registry.Host{}, &PreconditionError{Record: rec.Name, Reason: "execution mode is not remote"}
	}
	if rec.ContainerID == "" {
		return registry.Host{}, &PreconditionError{Record: rec.Name, Reason: "no container bound"}
	}
	host, found, err := a.Registry.GetHost(ctx, rec.HostID)
	if err != nil {
		return registry.Host{}, fmt.Errorf("resolve host for record %s: %w", rec.Name, err)
	}
	if !found {
		return registry.Host{}, &PreconditionError{Record: rec.Name, Reason: "host no longer registered"}
	}
	return host, nil
}

func (a *Actuator) run(ctx context.Context, host registry.Host, rec registry.ScriptRecord, action string) error {
	target := transport.TargetFor(host)
	if err := a.Transport.TestConnectivity(ctx, target); err != nil {
		return err
	}

	command := fmt.Sprintf("pct %s %s", action, rec.ContainerID)
	out, err := transport.Collect(a.Transport.Execute(ctx, target, command))
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		slog.Debug("lifecycle command failed", "record", rec.Name, "action", action, "exit", out.ExitCode)
		return &CommandError{Record: rec.Name, Action: action, ExitCode: out.ExitCode}
	}
	return nil
}
