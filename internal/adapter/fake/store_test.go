package fake

import (
	"context"
	"errors"
	"testing"

	"pvefleet/internal/registry"
)

func TestStore_DuplicateKeyMatchesSQLiteSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	h, err := store.CreateHost(ctx, registry.Host{Name: "pve1"})
	if err != nil {
		t.Fatal(err)
	}
	rec := registry.ScriptRecord{Name: "web01", HostID: h.ID, ContainerID: "105", ExecutionMode: registry.ModeRemote}
	if _, err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateRecord(ctx, rec); !errors.Is(err, registry.ErrDuplicateRecord) {
		t.Errorf("duplicate CreateRecord: got %v, want ErrDuplicateRecord", err)
	}
}

func TestStore_DeleteMissingRecord(t *testing.T) {
	store := NewStore()
	if err := store.DeleteRecord(context.Background(), 42); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("DeleteRecord: got %v, want ErrNotFound", err)
	}
}

func TestStore_ErrorInjection(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	injected := errors.New("registry unavailable")
	store.ListRemoteErr = func() error { return injected }

	if _, err := store.ListRemoteRecords(ctx); !errors.Is(err, injected) {
		t.Errorf("ListRemoteRecords: got %v, want injected error", err)
	}
}
