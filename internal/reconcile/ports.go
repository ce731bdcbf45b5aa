package reconcile

import (
	"context"

	"pvefleet/internal/registry"
)

// Registry is the slice of the registry store the engine reads and mutates.
// Production: registry/sqlite.Store
// Testing: adapter/fake.Store
type Registry interface {
	GetHost(ctx context.Context, id int64) (registry.Host, bool, error)
	GetRecordByKey(ctx context.Context, hostID int64, containerID string) (registry.ScriptRecord, bool, error)
	CreateRecord(ctx context.Context, r registry.ScriptRecord) (registry.ScriptRecord, error)
	DeleteRecord(ctx context.Context, id int64) error
	ListRemoteRecords(ctx context.Context) ([]registry.ScriptRecord, error)
}
