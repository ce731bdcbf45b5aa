// Package doctor runs per-host health checks: reachability and clock skew.
// Cluster hosts are skew-sensitive, so the remote clock is compared against
// an NTP reference.
package doctor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/ntp"
	"golang.org/x/sync/errgroup"

	"pvefleet/internal/registry"
	"pvefleet/internal/transport"
)

const (
	defaultNTPPool     = "pool.ntp.org"
	defaultSkewBudget  = 2 * time.Second
	remoteClockCommand = "date +%s"
)

// Report is one host's health snapshot.
type Report struct {
	HostID    int64
	HostName  string
	Reachable bool
	SkewKnown bool
	Skew      time.Duration
	Healthy   bool
}

type Doctor struct {
	Transport transport.Transport
	Pool      string
	Budget    time.Duration

	// Reference supplies the reference time. Defaults to an NTP query
	// with a local-clock fallback.
	Reference func(ctx context.Context) time.Time
}

func New(t transport.Transport) *Doctor {
	return &Doctor{Transport: t, Pool: defaultNTPPool, Budget: defaultSkewBudget}
}

func (d *Doctor) budget() time.Duration {
	if d.Budget > 0 {
		return d.Budget
	}
	return defaultSkewBudget
}

func (d *Doctor) referenceTime(ctx context.Context) time.Time {
	if d.Reference != nil {
		return d.Reference(ctx)
	}
	pool := d.Pool
	if pool == "" {
		pool = defaultNTPPool
	}
	if t, err := ntp.Time(pool); err == nil {
		return t
	}
	slog.Debug("ntp reference unavailable, using local clock", "pool", pool)
	return time.Now()
}

// Check probes one host. An unreachable host yields a report, not an error.
func (d *Doctor) Check(ctx context.Context, host registry.Host) Report {
	report := Report{HostID: host.ID, HostName: host.Name}
	target := transport.TargetFor(host)

	if err := d.Transport.TestConnectivity(ctx, target); err != nil {
		return report
	}
	report.Reachable = true

	out, err := transport.Collect(d.Transport.Execute(ctx, target, remoteClockCommand))
	if err != nil || out.ExitCode != 0 {
		return report
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(out.Stdout.String()), 10, 64)
	if err != nil {
		return report
	}

	skew := d.referenceTime(ctx).Sub(time.Unix(epoch, 0))
	if skew < 0 {
		skew = -skew
	}
	report.SkewKnown = true
	report.Skew = skew
	report.Healthy = skew <= d.budget()
	return report
}

// CheckAll probes every host concurrently and returns reports in input order.
func (d *Doctor) CheckAll(ctx context.Context, hosts []registry.Host) []Report {
	reports := make([]Report, len(hosts))
	var g errgroup.Group
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			reports[i] = d.Check(ctx, host)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Summary renders a one-line human state for the report.
func (r Report) Summary() string {
	if !r.Reachable {
		return "unreachable"
	}
	if !r.SkewKnown {
		return "reachable, clock unknown"
	}
	if !r.Healthy {
		return fmt.Sprintf("clock skew %s over budget", r.Skew.Round(time.Millisecond))
	}
	return "healthy"
}
