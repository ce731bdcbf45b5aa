// Package registry defines the persistent data model for managed hosts and
// installed-script records, plus the Store port the rest of the system talks
// through.
//
// The (HostID, ContainerID) pair is the natural key for records bound to a
// container: no two records may share it, and stores enforce that with
// ErrDuplicateRecord.
package registry

import (
	"context"
	"errors"
	"strings"
)

// ExecutionMode says where a script's workload runs.
type ExecutionMode string

const (
	ModeLocal  ExecutionMode = "local"
	ModeRemote ExecutionMode = "remote"
)

// InstallStatus is the persisted outcome of a script installation. Runtime
// container status (running/stopped) is never persisted; it is probed live.
type InstallStatus string

const (
	InstallInProgress InstallStatus = "in_progress"
	InstallSuccess    InstallStatus = "success"
	InstallFailed     InstallStatus = "failed"
)

// Host is a hypervisor reachable over SSH. An empty Address marks the local
// machine: commands run through the local shell instead of a remote session.
type Host struct {
	ID      int64
	Name    string
	Address string
	User    string
	Port    int
	KeyPath string
}

// Local reports whether commands for this host run without a remote session.
func (h Host) Local() bool {
	return strings.TrimSpace(h.Address) == ""
}

// ScriptRecord is one installed script. When bound to a container both
// ContainerID and HostID are set and ExecutionMode is ModeRemote.
type ScriptRecord struct {
	ID            int64
	Name          string
	SourcePath    string
	ContainerID   string
	HostID        int64
	ExecutionMode ExecutionMode
	Status        InstallStatus
	OutputLog     string
	UpdatedAt     string
}

// Bound reports whether the record references a container on a host.
func (r ScriptRecord) Bound() bool {
	return r.ContainerID != "" && r.HostID != 0
}

var (
	// ErrDuplicateRecord is returned by CreateRecord when another record
	// already holds the same (HostID, ContainerID) pair.
	ErrDuplicateRecord = errors.New("record exists for host/container pair")

	// ErrNotFound is returned by delete operations when the row is already
	// gone. Callers treat it as a no-op outcome, not a crash.
	ErrNotFound = errors.New("not found")
)

// Store abstracts registry persistence.
// Production: registry/sqlite.Store
// Testing: adapter/fake.Store
type Store interface {
	CreateHost(ctx context.Context, h Host) (Host, error)
	GetHost(ctx context.Context, id int64) (Host, bool, error)
	ListHosts(ctx context.Context) ([]Host, error)
	DeleteHost(ctx context.Context, id int64) error

	CreateRecord(ctx context.Context, r ScriptRecord) (ScriptRecord, error)
	GetRecordByKey(ctx context.Context, hostID int64, containerID string) (ScriptRecord, bool, error)
	ListRecords(ctx context.Context) ([]ScriptRecord, error)
	ListRemoteRecords(ctx context.Context) ([]ScriptRecord, error)
	UpdateRecordStatus(ctx context.Context, id int64, status InstallStatus, outputLog string) error
	DeleteRecord(ctx context.Context, id int64) error
}
