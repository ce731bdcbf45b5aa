// Package cmdutil wires shared dependencies for pvefleet subcommands:
// config loading, registry database access, and the SSH transport.
package cmdutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pvefleet/config"
	"pvefleet/internal/control"
	"pvefleet/internal/doctor"
	"pvefleet/internal/probe"
	"pvefleet/internal/reconcile"
	"pvefleet/internal/registry"
	"pvefleet/internal/registry/sqlite"
	"pvefleet/internal/scan"
	"pvefleet/internal/transport"
)

// Env bundles everything a subcommand needs. Close it when done.
type Env struct {
	Config    *config.Config
	Store     *sqlite.Store
	Transport *transport.Shell
}

// OpenEnv loads the config file and opens the registry database.
func OpenEnv() (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	sh := transport.NewShell()
	sh.KnownHostsPath = cfg.SSH.KnownHostsPath
	sh.InsecureHostKey = cfg.SSH.InsecureHostKey
	if t := cfg.SSH.Timeout(); t > 0 {
		sh.Timeout = t
	}

	return &Env{Config: cfg, Store: store, Transport: sh}, nil
}

func (e *Env) Close() error {
	return e.Store.Close()
}

// Scanner builds a container scanner with the configured overrides applied.
func (e *Env) Scanner() *scan.Scanner {
	s := scan.NewScanner(e.Transport)
	if e.Config.Scan.ConfigDir != "" {
		s.ConfigDir = e.Config.Scan.ConfigDir
	}
	if e.Config.Scan.Marker != "" {
		s.Marker = e.Config.Scan.Marker
	}
	return s
}

func (e *Env) Engine() *reconcile.Engine {
	return &reconcile.Engine{
		Registry:  e.Store,
		Scanner:   e.Scanner(),
		Transport: e.Transport,
	}
}

func (e *Env) Actuator() *control.Actuator {
	return &control.Actuator{Registry: e.Store, Transport: e.Transport}
}

func (e *Env) Prober() *probe.Prober {
	return &probe.Prober{Transport: e.Transport}
}

func (e *Env) Doctor() *doctor.Doctor {
	return doctor.New(e.Transport)
}

// ResolveHost finds a host by numeric id or by name.
func ResolveHost(ctx context.Context, store registry.Store, ref string) (registry.Host, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return registry.Host{}, fmt.Errorf("host is required")
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		h, ok, err := store.GetHost(ctx, id)
		if err != nil {
			return registry.Host{}, err
		}
		if ok {
			return h, nil
		}
	}

	hosts, err := store.ListHosts(ctx)
	if err != nil {
		return registry.Host{}, err
	}
	for _, h := range hosts {
		if h.Name == ref {
			return h, nil
		}
	}
	return registry.Host{}, fmt.Errorf("host %q not found", ref)
}

// ResolveRecord finds the record bound to a container on a host.
func ResolveRecord(ctx context.Context, store registry.Store, host registry.Host, containerID string) (registry.ScriptRecord, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return registry.ScriptRecord{}, fmt.Errorf("container id is required")
	}

	rec, ok, err := store.GetRecordByKey(ctx, host.ID, containerID)
	if err != nil {
		return registry.ScriptRecord{}, err
	}
	if !ok {
		return registry.ScriptRecord{}, fmt.Errorf("no record for container %s on host %s", containerID, host.Name)
	}
	return rec, nil
}
