package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pvefleet/internal/registry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_HostRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	created, err := store.CreateHost(ctx, registry.Host{
		Name:    "pve1",
		Address: "10.0.0.10",
		User:    "root",
		Port:    22,
		KeyPath: "/root/.ssh/id_ed25519",
	})
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateHost returned zero ID")
	}

	got, found, err := store.GetHost(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetHost: %v", err)
	}
	if !found {
		t.Fatal("GetHost returned found=false for created host")
	}
	if got != created {
		t.Errorf("GetHost: got %+v, want %+v", got, created)
	}

	hosts, err := store.ListHosts(ctx)
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 1 {
		t.Fatalf("ListHosts: got %d hosts, want 1", len(hosts))
	}
}

func TestStore_DeleteHostTwice(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	h, err := store.CreateHost(ctx, registry.Host{Name: "pve1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteHost(ctx, h.ID); err != nil {
		t.Fatalf("first DeleteHost: %v", err)
	}
	if err := store.DeleteHost(ctx, h.ID); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("second DeleteHost: got %v, want ErrNotFound", err)
	}
}

func TestStore_RecordDuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	h, err := store.CreateHost(ctx, registry.Host{Name: "pve1", Address: "10.0.0.10"})
	if err != nil {
		t.Fatal(err)
	}

	rec := registry.ScriptRecord{
		Name:          "web01",
		SourcePath:    "/etc/pve/lxc/105.conf",
		ContainerID:   "105",
		HostID:        h.ID,
		ExecutionMode: registry.ModeRemote,
		Status:        registry.InstallSuccess,
	}
	if _, err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	_, err = store.CreateRecord(ctx, rec)
	if !errors.Is(err, registry.ErrDuplicateRecord) {
		t.Errorf("duplicate CreateRecord: got %v, want ErrDuplicateRecord", err)
	}
}

func TestStore_UnboundRecordsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, name := range []string{"backup-job", "monitoring"} {
		if _, err := store.CreateRecord(ctx, registry.ScriptRecord{Name: name}); err != nil {
			t.Fatalf("CreateRecord(%s): %v", name, err)
		}
	}

	records, err := store.ListRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("ListRecords: got %d, want 2", len(records))
	}
	for _, r := range records {
		if r.ExecutionMode != registry.ModeLocal {
			t.Errorf("record %s: mode %q, want local default", r.Name, r.ExecutionMode)
		}
		if r.Status != registry.InstallInProgress {
			t.Errorf("record %s: status %q, want in_progress default", r.Name, r.Status)
		}
	}
}

func TestStore_ListRemoteRecordsFiltersUnbound(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	h, err := store.CreateHost(ctx, registry.Host{Name: "pve1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateRecord(ctx, registry.ScriptRecord{Name: "local-script"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateRecord(ctx, registry.ScriptRecord{
		Name:          "web01",
		ContainerID:   "105",
		HostID:        h.ID,
		ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}

	remote, err := store.ListRemoteRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(remote) != 1 {
		t.Fatalf("ListRemoteRecords: got %d, want 1", len(remote))
	}
	if remote[0].ContainerID != "105" || remote[0].HostID != h.ID {
		t.Errorf("ListRemoteRecords: got %+v", remote[0])
	}
}

func TestStore_GetRecordByKey(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	h, err := store.CreateHost(ctx, registry.Host{Name: "pve1"})
	if err != nil {
		t.Fatal(err)
	}
	created, err := store.CreateRecord(ctx, registry.ScriptRecord{
		Name:          "web01",
		ContainerID:   "105",
		HostID:        h.ID,
		ExecutionMode: registry.ModeRemote,
		Status:        registry.InstallSuccess,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, found, err := store.GetRecordByKey(ctx, h.ID, "105")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("GetRecordByKey returned found=false")
	}
	if got.ID != created.ID || got.Name != "web01" {
		t.Errorf("GetRecordByKey: got %+v", got)
	}

	_, found, err = store.GetRecordByKey(ctx, h.ID, "999")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("GetRecordByKey returned found=true for missing key")
	}
}

func TestStore_UpdateRecordStatus(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	rec, err := store.CreateRecord(ctx, registry.ScriptRecord{Name: "backup-job"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateRecordStatus(ctx, rec.ID, registry.InstallFailed, "exit status 1"); err != nil {
		t.Fatalf("UpdateRecordStatus: %v", err)
	}

	records, err := store.ListRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Status != registry.InstallFailed || records[0].OutputLog != "exit status 1" {
		t.Errorf("after update: got %+v", records[0])
	}

	if err := store.UpdateRecordStatus(ctx, rec.ID+99, registry.InstallSuccess, ""); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("update of missing record: got %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteRecordIdempotentOutcome(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	rec, err := store.CreateRecord(ctx, registry.ScriptRecord{Name: "web01"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("first DeleteRecord: %v", err)
	}
	if err := store.DeleteRecord(ctx, rec.ID); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("second DeleteRecord: got %v, want ErrNotFound", err)
	}
}
