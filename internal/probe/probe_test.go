package probe

import (
	"context"
	"errors"
	"testing"

	"pvefleet/internal/adapter/fake"
	"pvefleet/internal/registry"
)

func TestStatus_MapsTokensAndAbsence(t *testing.T) {
	tr := fake.NewTransport()
	tr.Script("pve1", "pct list", fake.Response{Stdout: "VMID       Status     Name\n101 running web01\n102 stopped db01\n"})
	p := &Prober{Transport: tr}

	got := p.Status(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"}, []string{"101", "102", "103"})
	want := map[string]Status{"101": StatusRunning, "102": StatusStopped, "103": StatusUnknown}
	if len(got) != len(want) {
		t.Fatalf("result size = %d, want %d", len(got), len(want))
	}
	for id, status := range want {
		if got[id] != status {
			t.Errorf("status[%s] = %s, want %s", id, got[id], status)
		}
	}
}

func TestStatus_UnreachableHostYieldsAllUnknown(t *testing.T) {
	tr := fake.NewTransport()
	tr.SetDown("pve1", errors.New("connection refused"))
	p := &Prober{Transport: tr}

	ids := []string{"101", "102", "103"}
	got := p.Status(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"}, ids)
	if len(got) != len(ids) {
		t.Fatalf("result size = %d, want %d", len(got), len(ids))
	}
	for _, id := range ids {
		if got[id] != StatusUnknown {
			t.Errorf("status[%s] = %s, want unknown", id, got[id])
		}
	}
}

func TestStatus_NonZeroExitYieldsAllUnknown(t *testing.T) {
	tr := fake.NewTransport()
	tr.Script("pve1", "pct list", fake.Response{Stderr: "pct: command not found", ExitCode: 127})
	p := &Prober{Transport: tr}

	got := p.Status(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"}, []string{"101"})
	if got["101"] != StatusUnknown {
		t.Errorf("status[101] = %s, want unknown", got["101"])
	}
}

func TestStatus_EmptyRequestIsEmptyMap(t *testing.T) {
	tr := fake.NewTransport()
	p := &Prober{Transport: tr}

	got := p.Status(context.Background(), registry.Host{ID: 1, Name: "pve1"}, nil)
	if len(got) != 0 {
		t.Errorf("result size = %d, want 0", len(got))
	}
	if len(tr.Calls("Execute")) != 0 {
		t.Error("probe issued a command for an empty id set")
	}
}

func TestParseStatusTable_SkipsMalformedLines(t *testing.T) {
	table := "VMID Status Name\n\ngarbage\n105 running web01\nbadid stopped x\n106\n107 stopped db01\n"
	got := parseStatusTable(table)

	if len(got) != 2 {
		t.Fatalf("parsed %d rows, want 2: %v", len(got), got)
	}
	if got["105"] != StatusRunning || got["107"] != StatusStopped {
		t.Errorf("parsed = %v", got)
	}
}

func TestParseStatusTable_UnrecognizedTokenMeansStopped(t *testing.T) {
	got := parseStatusTable("105 paused web01\n")
	if got["105"] != StatusStopped {
		t.Errorf("status[105] = %s, want stopped", got["105"])
	}
}
