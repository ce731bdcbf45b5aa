package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pvefleet/internal/adapter/fake"
	"pvefleet/internal/registry"
	"pvefleet/internal/scan"
)

type harness struct {
	store     *fake.Store
	transport *fake.Transport
	scanner   *scan.Scanner
	engine    *Engine
}

func newHarness() *harness {
	store := fake.NewStore()
	tr := fake.NewTransport()
	scanner := scan.NewScanner(tr)
	return &harness{
		store:     store,
		transport: tr,
		scanner:   scanner,
		engine:    &Engine{Registry: store, Scanner: scanner, Transport: tr},
	}
}

func (h *harness) addHost(t *testing.T, name string) registry.Host {
	t.Helper()
	host, err := h.store.CreateHost(context.Background(), registry.Host{Name: name, Address: "10.0.0.10"})
	if err != nil {
		t.Fatal(err)
	}
	return host
}

// scriptContainers makes the host report the given containers, each with a
// hostname derived from its id.
func (h *harness) scriptContainers(hostName string, ids ...string) {
	var paths string
	for _, id := range ids {
		path := fmt.Sprintf("%s/%s.conf", scan.DefaultConfigDir, id)
		paths += path + "\n"
		h.transport.Script(hostName, "cat "+path, fake.Response{
			Stdout: fmt.Sprintf("hostname: ct%s\n", id),
		})
	}
	h.transport.Script(hostName, h.scanner.DiscoveryCommand(), fake.Response{Stdout: paths})
}

func TestDetectAndRegister_CreatesRecords(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	h.scriptContainers("pve1", "105", "106")

	result, err := h.engine.DetectAndRegister(context.Background(), host)
	if err != nil {
		t.Fatalf("DetectAndRegister: %v", err)
	}
	if len(result.Created) != 2 || len(result.Duplicates) != 0 || len(result.Failures) != 0 {
		t.Fatalf("result = %+v", result)
	}

	rec, found, err := h.store.GetRecordByKey(context.Background(), host.ID, "105")
	if err != nil || !found {
		t.Fatalf("record not persisted: found=%v err=%v", found, err)
	}
	if rec.ExecutionMode != registry.ModeRemote || rec.Status != registry.InstallSuccess {
		t.Errorf("record = %+v", rec)
	}
	if rec.SourcePath != "/etc/pve/lxc/105.conf" {
		t.Errorf("provenance = %q", rec.SourcePath)
	}
}

func TestDetectAndRegister_Idempotent(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	h.scriptContainers("pve1", "105", "106")

	first, err := h.engine.DetectAndRegister(context.Background(), host)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Created) != 2 {
		t.Fatalf("first pass created %d, want 2", len(first.Created))
	}

	second, err := h.engine.DetectAndRegister(context.Background(), host)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Created) != 0 {
		t.Errorf("second pass created %d records, want 0", len(second.Created))
	}
	if len(second.Duplicates) != 2 {
		t.Errorf("second pass duplicates = %v, want both containers", second.Duplicates)
	}
}

func TestDetectAndRegister_ExistingRecordIsDuplicate(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	if _, err := h.store.CreateRecord(context.Background(), registry.ScriptRecord{
		Name: "ct105", HostID: host.ID, ContainerID: "105", ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}
	h.scriptContainers("pve1", "105")

	result, err := h.engine.DetectAndRegister(context.Background(), host)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 0 || len(result.Duplicates) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestDetectAndRegister_InsertRaceClassifiedAsDuplicate(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	h.scriptContainers("pve1", "105")

	// Lookup sees nothing, insert collides: another actor registered the
	// container between the engine's read and write.
	h.store.CreateRecordErr = func(registry.ScriptRecord) error { return registry.ErrDuplicateRecord }

	result, err := h.engine.DetectAndRegister(context.Background(), host)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Duplicates) != 1 || len(result.Failures) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestDetectAndRegister_UnreachableHostPropagates(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	h.transport.SetDown("pve1", errors.New("connection refused"))

	_, err := h.engine.DetectAndRegister(context.Background(), host)
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
}

func TestDetectAndRegister_DropsNamelessContainer(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	h.transport.Script("pve1", h.scanner.DiscoveryCommand(), fake.Response{
		Stdout: "/etc/pve/lxc/105.conf\n/etc/pve/lxc/106.conf\n",
	})
	h.transport.Script("pve1", "cat /etc/pve/lxc/105.conf", fake.Response{Stdout: "hostname: web01\n"})
	h.transport.Script("pve1", "cat /etc/pve/lxc/106.conf", fake.Response{Stdout: "arch: amd64\n"})

	result, err := h.engine.DetectAndRegister(context.Background(), host)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 1 || result.Created[0].Name != "web01" {
		t.Errorf("created = %+v", result.Created)
	}
	if len(result.Dropped) != 1 || result.Dropped[0] != "106" {
		t.Errorf("dropped = %v", result.Dropped)
	}
}

func TestCleanupOrphans_DeletesConfirmedOrphanOnly(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	ctx := context.Background()

	orphan, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
		Name: "gone01", HostID: host.ID, ContainerID: "105", ExecutionMode: registry.ModeRemote,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
		Name: "alive01", HostID: host.ID, ContainerID: "106", ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}

	h.transport.Script("pve1", h.engine.ExistenceCommand("105"), fake.Response{Stdout: "not_found\n"})
	h.transport.Script("pve1", h.engine.ExistenceCommand("106"), fake.Response{Stdout: "exists\n"})

	result, err := h.engine.CleanupOrphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != "gone01" {
		t.Errorf("deleted = %v, want [gone01]", result.Deleted)
	}
	if result.Retained != 1 {
		t.Errorf("retained = %d, want 1", result.Retained)
	}

	if _, found, _ := h.store.GetRecordByKey(ctx, host.ID, "105"); found {
		t.Error("orphan record still present")
	}
	if _, found, _ := h.store.GetRecordByKey(ctx, host.ID, "106"); !found {
		t.Error("live record was deleted")
	}
	_ = orphan
}

func TestCleanupOrphans_MissingHostDeletedWithoutRemoteCheck(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// HostID 99 does not exist in the registry.
	if _, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
		Name: "stray", HostID: 99, ContainerID: "105", ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}

	result, err := h.engine.CleanupOrphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != "stray" {
		t.Errorf("deleted = %v", result.Deleted)
	}
	if calls := h.transport.Calls(""); len(calls) != 0 {
		t.Errorf("remote calls issued for missing host: %v", calls)
	}
}

func TestCleanupOrphans_UnreachableHostSkips(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	ctx := context.Background()

	if _, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
		Name: "maybe", HostID: host.ID, ContainerID: "105", ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}
	h.transport.SetDown("pve1", errors.New("timeout"))

	result, err := h.engine.CleanupOrphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deleted) != 0 {
		t.Errorf("deleted = %v, want none", result.Deleted)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "105" {
		t.Errorf("skipped = %v, want [105]", result.Skipped)
	}
	if _, found, _ := h.store.GetRecordByKey(ctx, host.ID, "105"); !found {
		t.Error("record deleted despite unreachable host")
	}
}

func TestCleanupOrphans_OneConnectivityProbePerHost(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	ctx := context.Background()

	for _, id := range []string{"105", "106", "107"} {
		if _, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
			Name: "ct" + id, HostID: host.ID, ContainerID: id, ExecutionMode: registry.ModeRemote,
		}); err != nil {
			t.Fatal(err)
		}
		h.transport.Script("pve1", h.engine.ExistenceCommand(id), fake.Response{Stdout: "exists\n"})
	}

	if _, err := h.engine.CleanupOrphans(ctx); err != nil {
		t.Fatal(err)
	}
	if probes := len(h.transport.Calls("TestConnectivity")); probes != 1 {
		t.Errorf("connectivity probes = %d, want 1", probes)
	}
}

func TestCleanupOrphans_SecondPassIsNoOp(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	ctx := context.Background()

	if _, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
		Name: "gone01", HostID: host.ID, ContainerID: "105", ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}
	h.transport.Script("pve1", h.engine.ExistenceCommand("105"), fake.Response{Stdout: "not_found\n"})

	first, err := h.engine.CleanupOrphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Deleted) != 1 {
		t.Fatalf("first pass deleted = %v", first.Deleted)
	}

	second, err := h.engine.CleanupOrphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Deleted) != 0 || len(second.Skipped) != 0 {
		t.Errorf("second pass = %+v, want no-op", second)
	}
}

func TestCleanupOrphans_AmbiguousExistenceOutputSkips(t *testing.T) {
	h := newHarness()
	host := h.addHost(t, "pve1")
	ctx := context.Background()

	if _, err := h.store.CreateRecord(ctx, registry.ScriptRecord{
		Name: "odd", HostID: host.ID, ContainerID: "105", ExecutionMode: registry.ModeRemote,
	}); err != nil {
		t.Fatal(err)
	}
	h.transport.Script("pve1", h.engine.ExistenceCommand("105"), fake.Response{Stdout: "garbled\n"})

	result, err := h.engine.CleanupOrphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deleted) != 0 {
		t.Errorf("deleted = %v on ambiguous output", result.Deleted)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("skipped = %v, want the ambiguous container", result.Skipped)
	}
}
