package fake

import (
	"context"
	"sort"
	"sync"

	"pvefleet/internal/registry"
)

var _ registry.Store = (*Store)(nil)

// Store is an in-memory registry with the same duplicate-key and missing-row
// semantics as the sqlite implementation. Per-method error funcs inject
// failures.
type Store struct {
	CallRecorder

	mu      sync.Mutex
	nextID  int64
	hosts   map[int64]registry.Host
	records map[int64]registry.ScriptRecord

	CreateRecordErr func(r registry.ScriptRecord) error
	DeleteRecordErr func(id int64) error
	ListRemoteErr   func() error
	GetRecordErr    func(hostID int64, containerID string) error
}

func NewStore() *Store {
	return &Store{
		nextID:  1,
		hosts:   make(map[int64]registry.Host),
		records: make(map[int64]registry.ScriptRecord),
	}
}

func (s *Store) CreateHost(ctx context.Context, h registry.Host) (registry.Host, error) {
	s.record("CreateHost", h.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = s.nextID
	s.nextID++
	s.hosts[h.ID] = h
	return h, nil
}

func (s *Store) GetHost(ctx context.Context, id int64) (registry.Host, bool, error) {
	s.record("GetHost", id)
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	return h, ok, nil
}

func (s *Store) ListHosts(ctx context.Context) ([]registry.Host, error) {
	s.record("ListHosts")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]registry.Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteHost(ctx context.Context, id int64) error {
	s.record("DeleteHost", id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hosts[id]; !ok {
		return registry.ErrNotFound
	}
	delete(s.hosts, id)
	return nil
}

func (s *Store) CreateRecord(ctx context.Context, r registry.ScriptRecord) (registry.ScriptRecord, error) {
	s.record("CreateRecord", r.Name, r.HostID, r.ContainerID)
	if s.CreateRecordErr != nil {
		if err := s.CreateRecordErr(r); err != nil {
			return registry.ScriptRecord{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Bound() {
		for _, existing := range s.records {
			if existing.HostID == r.HostID && existing.ContainerID == r.ContainerID {
				return registry.ScriptRecord{}, registry.ErrDuplicateRecord
			}
		}
	}
	r.ID = s.nextID
	s.nextID++
	s.records[r.ID] = r
	return r, nil
}

func (s *Store) GetRecordByKey(ctx context.Context, hostID int64, containerID string) (registry.ScriptRecord, bool, error) {
	s.record("GetRecordByKey", hostID, containerID)
	if s.GetRecordErr != nil {
		if err := s.GetRecordErr(hostID, containerID); err != nil {
			return registry.ScriptRecord{}, false, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.HostID == hostID && r.ContainerID == containerID {
			return r, true, nil
		}
	}
	return registry.ScriptRecord{}, false, nil
}

func (s *Store) ListRecords(ctx context.Context) ([]registry.ScriptRecord, error) {
	s.record("ListRecords")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(registry.ScriptRecord) bool { return true }), nil
}

func (s *Store) ListRemoteRecords(ctx context.Context) ([]registry.ScriptRecord, error) {
	s.record("ListRemoteRecords")
	if s.ListRemoteErr != nil {
		if err := s.ListRemoteErr(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(r registry.ScriptRecord) bool {
		return r.ExecutionMode == registry.ModeRemote && r.Bound()
	}), nil
}

func (s *Store) sortedLocked(keep func(registry.ScriptRecord) bool) []registry.ScriptRecord {
	out := make([]registry.ScriptRecord, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdateRecordStatus(ctx context.Context, id int64, status registry.InstallStatus, outputLog string) error {
	s.record("UpdateRecordStatus", id, status)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return registry.ErrNotFound
	}
	r.Status = status
	r.OutputLog = outputLog
	s.records[id] = r
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, id int64) error {
	s.record("DeleteRecord", id)
	if s.DeleteRecordErr != nil {
		if err := s.DeleteRecordErr(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return registry.ErrNotFound
	}
	delete(s.records, id)
	return nil
}
