// Package probe resolves live container status with one batched list command
// per host.
package probe

import (
	"context"
	"log/slog"
	"strings"

	"pvefleet/internal/registry"
	"pvefleet/internal/transport"
)

// Status is the transient runtime state of one container. It is reported,
// never persisted.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
)

// listCommand emits one row per container: id first, status token second.
const listCommand = "pct list"

type Prober struct {
	Transport transport.Transport
}

// Status returns a map covering exactly the requested ids. Hosts that fail
// connectivity, exit non-zero, or omit an id from their listing resolve those
// ids to StatusUnknown; the probe never returns an error.
func (p *Prober) Status(ctx context.Context, host registry.Host, ids []string) map[string]Status {
	out := make(map[string]Status, len(ids))
	for _, id := range ids {
		out[id] = StatusUnknown
	}
	if len(ids) == 0 {
		return out
	}

	result, err := transport.Collect(p.Transport.Execute(ctx, transport.TargetFor(host), listCommand))
	if err != nil {
		slog.Debug("status listing unreachable", "host", host.Name, "err", err)
		return out
	}
	if result.ExitCode != 0 {
		slog.Debug("status listing failed", "host", host.Name, "exit", result.ExitCode)
		return out
	}

	listed := parseStatusTable(result.Stdout.String())
	for _, id := range ids {
		if status, ok := listed[id]; ok {
			out[id] = status
		}
	}
	return out
}

// parseStatusTable reads the listing's whitespace-separated rows. Header and
// malformed lines are skipped; any token other than "running" means stopped.
func parseStatusTable(table string) map[string]Status {
	out := make(map[string]Status)
	for _, line := range strings.Split(table, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		id := fields[0]
		if !allDigits(id) {
			continue
		}
		if strings.EqualFold(fields[1], "running") {
			out[id] = StatusRunning
		} else {
			out[id] = StatusStopped
		}
	}
	return out
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
