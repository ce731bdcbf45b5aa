// Package reconcile aligns the script registry with live host-observed
// container state.
//
// DetectAndRegister turns scan results into new records, de-duplicated
// against the (host, container) natural key. CleanupOrphans removes records
// whose backing container no longer exists. Both operations are idempotent:
// a second pass with no intervening state change is a no-op.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pvefleet/internal/check"
	"pvefleet/internal/registry"
	"pvefleet/internal/scan"
	"pvefleet/internal/transport"
)

type Engine struct {
	Registry  Registry
	Scanner   *scan.Scanner
	Transport transport.Transport

	// OnEvent, when set, receives progress notifications. Optional.
	OnEvent func(eventType, message string)
}

func (e *Engine) emit(eventType, message string) {
	if e.OnEvent != nil {
		e.OnEvent(eventType, message)
	}
	slog.Debug("reconcile event", "event", eventType, "message", message)
}

// DetectResult summarizes one host's detection pass. Created, Duplicates and
// Failures are disjoint; Dropped holds containers without a hostname.
type DetectResult struct {
	HostID     int64
	HostName   string
	Created    []registry.ScriptRecord
	Duplicates []string
	Dropped    []string
	Failures   []scan.ItemFailure
}

// DetectAndRegister scans one host and registers every discovered container
// that has no existing record for its (host, container) pair. Per-container
// failures never abort the remaining containers; the returned error is
// non-nil only when the host itself could not be scanned.
func (e *Engine) DetectAndRegister(ctx context.Context, host registry.Host) (DetectResult, error) {
	check.Assert(e.Registry != nil, "Engine.DetectAndRegister: Registry must not be nil")
	check.Assert(e.Scanner != nil, "Engine.DetectAndRegister: Scanner must not be nil")

	result := DetectResult{HostID: host.ID, HostName: host.Name}

	scanned := e.Scanner.Scan(ctx, host)
	if scanned.Err != nil {
		return result, fmt.Errorf("scan host %s: %w", host.Name, scanned.Err)
	}
	result.Dropped = scanned.Dropped
	result.Failures = append(result.Failures, scanned.Failures...)

	for _, c := range scanned.Containers {
		_, exists, err := e.Registry.GetRecordByKey(ctx, c.HostID, c.ContainerID)
		if err != nil {
			result.Failures = append(result.Failures, scan.ItemFailure{
				ContainerID: c.ContainerID, Reason: "registry lookup failed",
			})
			continue
		}
		if exists {
			result.Duplicates = append(result.Duplicates, c.ContainerID)
			e.emit("detect.duplicate", c.ContainerID)
			continue
		}

		created, err := e.Registry.CreateRecord(ctx, registry.ScriptRecord{
			Name:          c.Hostname,
			SourcePath:    c.ConfigPath,
			ContainerID:   c.ContainerID,
			HostID:        c.HostID,
			ExecutionMode: registry.ModeRemote,
			Status:        registry.InstallSuccess,
			OutputLog:     "auto-detected from " + c.ConfigPath,
		})
		if errors.Is(err, registry.ErrDuplicateRecord) {
			// Another actor registered it between lookup and insert.
			result.Duplicates = append(result.Duplicates, c.ContainerID)
			continue
		}
		if err != nil {
			result.Failures = append(result.Failures, scan.ItemFailure{
				ContainerID: c.ContainerID, Reason: "registry create failed",
			})
			continue
		}
		result.Created = append(result.Created, created)
		e.emit("detect.created", created.Name)
	}
	return result, nil
}

// CleanupResult summarizes an orphan-cleanup pass.
type CleanupResult struct {
	// Deleted holds the names of removed records.
	Deleted []string
	// Skipped holds container ids whose host could not be reached this
	// pass. Absence of confirmation is not proof of absence.
	Skipped []string
	// Retained counts records whose container still exists.
	Retained int
}

// CleanupOrphans walks every container-bound remote record and deletes the
// ones whose backing container is confirmed gone. A record whose host was
// removed from the registry is deleted without any remote check.
func (e *Engine) CleanupOrphans(ctx context.Context) (CleanupResult, error) {
	check.Assert(e.Registry != nil, "Engine.CleanupOrphans: Registry must not be nil")
	check.Assert(e.Transport != nil, "Engine.CleanupOrphans: Transport must not be nil")

	var result CleanupResult

	records, err := e.Registry.ListRemoteRecords(ctx)
	if err != nil {
		return result, fmt.Errorf("list remote records: %w", err)
	}

	// One connectivity probe per host per pass, not per record.
	reachable := make(map[int64]error)
	for _, rec := range records {
		if !rec.Bound() {
			continue
		}

		host, hostExists, err := e.Registry.GetHost(ctx, rec.HostID)
		if err != nil {
			result.Skipped = append(result.Skipped, rec.ContainerID)
			continue
		}
		if !hostExists {
			if e.deleteRecord(ctx, rec, &result) {
				e.emit("cleanup.deleted", rec.Name+" (host removed)")
			}
			continue
		}

		target := transport.TargetFor(host)
		connErr, probed := reachable[host.ID]
		if !probed {
			connErr = e.Transport.TestConnectivity(ctx, target)
			reachable[host.ID] = connErr
		}
		if connErr != nil {
			result.Skipped = append(result.Skipped, rec.ContainerID)
			e.emit("cleanup.skipped", rec.ContainerID)
			continue
		}

		switch e.containerExists(ctx, target, rec.ContainerID) {
		case existenceGone:
			if e.deleteRecord(ctx, rec, &result) {
				e.emit("cleanup.deleted", rec.Name)
			}
		case existencePresent:
			result.Retained++
		case existenceUnknown:
			result.Skipped = append(result.Skipped, rec.ContainerID)
		}
	}
	return result, nil
}

// deleteRecord removes a record, treating an already-deleted row as done.
func (e *Engine) deleteRecord(ctx context.Context, rec registry.ScriptRecord, result *CleanupResult) bool {
	err := e.Registry.DeleteRecord(ctx, rec.ID)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		result.Skipped = append(result.Skipped, rec.ContainerID)
		return false
	}
	result.Deleted = append(result.Deleted, rec.Name)
	return true
}

type existence int

const (
	existenceUnknown existence = iota
	existencePresent
	existenceGone
)

// ExistenceCommand tests one container's config file and emits a
// boolean-like marker.
func (e *Engine) ExistenceCommand(containerID string) string {
	dir := scan.DefaultConfigDir
	if e.Scanner != nil && e.Scanner.ConfigDir != "" {
		dir = e.Scanner.ConfigDir
	}
	return fmt.Sprintf("test -f %s/%s.conf && echo exists || echo not_found", dir, containerID)
}

func (e *Engine) containerExists(ctx context.Context, target transport.Target, containerID string) existence {
	out, err := transport.Collect(e.Transport.Execute(ctx, target, e.ExistenceCommand(containerID)))
	if err != nil || out.ExitCode != 0 {
		return existenceUnknown
	}
	switch {
	case containsToken(out.Stdout.String(), "not_found"):
		return existenceGone
	case containsToken(out.Stdout.String(), "exists"):
		return existencePresent
	default:
		return existenceUnknown
	}
}

func containsToken(out, token string) bool {
	for _, field := range strings.Fields(out) {
		if field == token {
			return true
		}
	}
	return false
}
