package doctor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pvefleet/internal/adapter/fake"
	"pvefleet/internal/registry"
)

func fixedReference(t time.Time) func(context.Context) time.Time {
	return func(context.Context) time.Time { return t }
}

func TestCheck_HealthyClock(t *testing.T) {
	tr := fake.NewTransport()
	reference := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tr.Script("pve1", "date +%s", fake.Response{Stdout: fmt.Sprintf("%d\n", reference.Unix())})

	d := New(tr)
	d.Reference = fixedReference(reference)

	report := d.Check(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"})
	if !report.Reachable || !report.SkewKnown || !report.Healthy {
		t.Errorf("report = %+v", report)
	}
	if report.Skew != 0 {
		t.Errorf("skew = %s, want 0", report.Skew)
	}
}

func TestCheck_SkewOverBudget(t *testing.T) {
	tr := fake.NewTransport()
	reference := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	remote := reference.Add(-10 * time.Second)
	tr.Script("pve1", "date +%s", fake.Response{Stdout: fmt.Sprintf("%d", remote.Unix())})

	d := New(tr)
	d.Reference = fixedReference(reference)

	report := d.Check(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"})
	if !report.SkewKnown || report.Healthy {
		t.Errorf("report = %+v", report)
	}
	if report.Skew != 10*time.Second {
		t.Errorf("skew = %s, want 10s", report.Skew)
	}
	if report.Summary() == "healthy" {
		t.Error("over-budget skew summarized as healthy")
	}
}

func TestCheck_UnreachableHostIsReportNotError(t *testing.T) {
	tr := fake.NewTransport()
	tr.SetDown("pve1", errors.New("connection refused"))

	d := New(tr)
	d.Reference = fixedReference(time.Now())

	report := d.Check(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"})
	if report.Reachable || report.SkewKnown {
		t.Errorf("report = %+v", report)
	}
	if report.Summary() != "unreachable" {
		t.Errorf("summary = %q", report.Summary())
	}
}

func TestCheck_GarbledClockOutput(t *testing.T) {
	tr := fake.NewTransport()
	tr.Script("pve1", "date +%s", fake.Response{Stdout: "not-a-number\n"})

	d := New(tr)
	d.Reference = fixedReference(time.Now())

	report := d.Check(context.Background(), registry.Host{ID: 1, Name: "pve1", Address: "10.0.0.10"})
	if !report.Reachable || report.SkewKnown {
		t.Errorf("report = %+v", report)
	}
}

func TestCheckAll_PreservesInputOrder(t *testing.T) {
	tr := fake.NewTransport()
	tr.SetDown("pve1", errors.New("down"))
	reference := time.Now()
	tr.Script("pve2", "date +%s", fake.Response{Stdout: fmt.Sprintf("%d", reference.Unix())})

	d := New(tr)
	d.Reference = fixedReference(reference)

	hosts := []registry.Host{
		{ID: 1, Name: "pve1", Address: "10.0.0.1"},
		{ID: 2, Name: "pve2", Address: "10.0.0.2"},
	}
	reports := d.CheckAll(context.Background(), hosts)
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports[0].HostName != "pve1" || reports[0].Reachable {
		t.Errorf("reports[0] = %+v", reports[0])
	}
	if reports[1].HostName != "pve2" || !reports[1].Reachable {
		t.Errorf("reports[1] = %+v", reports[1])
	}
}
