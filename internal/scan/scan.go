// Package scan discovers managed containers on fleet hosts.
//
// Discovery is two-phase: one command per host lists container config files
// carrying the managed-service marker, then each candidate's config is read
// to extract its hostname. A container without a hostname line is dropped —
// it has no actionable name.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"pvefleet/internal/registry"
	"pvefleet/internal/transport"
)

const (
	// DefaultConfigDir is where the hypervisor keeps container configs.
	DefaultConfigDir = "/etc/pve/lxc"
	// DefaultMarker tags containers managed by this system.
	DefaultMarker = "community-script"

	// defaultMaxMetadataReads caps concurrent config reads per host so a
	// large fleet host is not hammered with parallel sessions.
	defaultMaxMetadataReads = 8

	hostnamePrefix = "hostname:"
)

// ObservedContainer is one discovered managed container. Ephemeral: consumed
// by the reconciliation engine, never persisted directly.
type ObservedContainer struct {
	ContainerID string
	Hostname    string
	ConfigPath  string
	HostID      int64
}

// ItemFailure is a per-container processing failure that did not abort the
// rest of the scan.
type ItemFailure struct {
	ContainerID string
	Reason      string
}

// Result is one host's scan outcome. Err is set only for a host-level
// discovery failure; sibling hosts are unaffected.
type Result struct {
	HostID     int64
	HostName   string
	Containers []ObservedContainer
	Dropped    []string
	Failures   []ItemFailure
	Err        error
}

type Scanner struct {
	Transport        transport.Transport
	ConfigDir        string
	Marker           string
	MaxMetadataReads int
}

func NewScanner(t transport.Transport) *Scanner {
	return &Scanner{
		Transport:        t,
		ConfigDir:        DefaultConfigDir,
		Marker:           DefaultMarker,
		MaxMetadataReads: defaultMaxMetadataReads,
	}
}

func (s *Scanner) configDir() string {
	if s.ConfigDir != "" {
		return s.ConfigDir
	}
	return DefaultConfigDir
}

func (s *Scanner) marker() string {
	if s.Marker != "" {
		return s.Marker
	}
	return DefaultMarker
}

// DiscoveryCommand lists marker-tagged config paths, one per line. grep exits
// non-zero when nothing matches, so a non-zero exit is "no containers", not
// an error.
func (s *Scanner) DiscoveryCommand() string {
	return fmt.Sprintf("grep -ls '%s' %s/*.conf", s.marker(), s.configDir())
}

// Scan discovers managed containers on one host.
func (s *Scanner) Scan(ctx context.Context, host registry.Host) Result {
	result := Result{HostID: host.ID, HostName: host.Name}
	target := transport.TargetFor(host)

	out, err := transport.Collect(s.Transport.Execute(ctx, target, s.DiscoveryCommand()))
	if err != nil {
		slog.Debug("container discovery unreachable", "host", host.Name, "err", err)
		result.Err = err
		return result
	}
	if out.ExitCode != 0 {
		return result
	}

	paths := splitLines(out.Stdout.String())
	if len(paths) == 0 {
		return result
	}

	type metaOutcome struct {
		container ObservedContainer
		dropped   string
		failure   *ItemFailure
	}
	outcomes := make([]metaOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.MaxMetadataReads
	if limit <= 0 {
		limit = defaultMaxMetadataReads
	}
	if len(paths) < limit {
		limit = len(paths)
	}
	g.SetLimit(limit)

	for i, configPath := range paths {
		i, configPath := i, configPath
		g.Go(func() error {
			id := containerIDFromPath(configPath)
			meta, err := transport.Collect(s.Transport.Execute(gctx, target, "cat "+configPath))
			if err != nil {
				outcomes[i] = metaOutcome{failure: &ItemFailure{ContainerID: id, Reason: "config unreachable"}}
				return nil
			}
			if meta.ExitCode != 0 {
				outcomes[i] = metaOutcome{failure: &ItemFailure{ContainerID: id, Reason: "config unreadable"}}
				return nil
			}
			hostname, ok := extractHostname(meta.Stdout.String())
			if !ok {
				outcomes[i] = metaOutcome{dropped: id}
				return nil
			}
			outcomes[i] = metaOutcome{container: ObservedContainer{
				ContainerID: id,
				Hostname:    hostname,
				ConfigPath:  configPath,
				HostID:      host.ID,
			}}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch {
		case o.failure != nil:
			result.Failures = append(result.Failures, *o.failure)
		case o.dropped != "":
			result.Dropped = append(result.Dropped, o.dropped)
		case o.container.ContainerID != "":
			result.Containers = append(result.Containers, o.container)
		}
	}
	return result
}

// ScanAll scans every host concurrently. Host failures are isolated: each
// element carries its own outcome and no host waits on another's metadata
// extraction.
func (s *Scanner) ScanAll(ctx context.Context, hosts []registry.Host) []Result {
	results := make([]Result, len(hosts))
	var g errgroup.Group
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			results[i] = s.Scan(ctx, host)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// containerIDFromPath maps /etc/pve/lxc/105.conf to "105".
func containerIDFromPath(configPath string) string {
	return strings.TrimSuffix(path.Base(configPath), path.Ext(configPath))
}

// extractHostname finds the first hostname: line and trims the prefix.
func extractHostname(config string) (string, bool) {
	for _, line := range strings.Split(config, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, hostnamePrefix) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, hostnamePrefix))
		if name == "" {
			return "", false
		}
		return name, true
	}
	return "", false
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
