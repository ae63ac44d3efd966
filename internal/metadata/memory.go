package metadata

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and
// the standalone mode used when no database URL is configured.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  uint64
	records map[uint64]*AudioRecord

	nextJobID int64
	jobs      map[int64]*ArtworkJob
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uint64]*AudioRecord),
		jobs:    make(map[int64]*ArtworkJob),
	}
}

func (m *MemoryStore) NextID(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID, nil
}

func (m *MemoryStore) Create(ctx context.Context, rec *AudioRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return ErrDuplicate
	}
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uint64) (*AudioRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Update(ctx context.Context, id uint64, patch UpdatePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Name != "" {
		rec.Name = patch.Name
	}
	rec.Creator = patch.Creator
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok, nil
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]*AudioRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]*AudioRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, cloneRecord(rec))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (m *MemoryStore) EnqueueArtworkJob(ctx context.Context, audioID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextJobID++
	now := time.Now()
	m.jobs[m.nextJobID] = &ArtworkJob{
		ID:        m.nextJobID,
		AudioID:   audioID,
		Status:    JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.nextJobID, nil
}

func (m *MemoryStore) NextPendingArtworkJob(ctx context.Context) (*ArtworkJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *ArtworkJob
	for _, job := range m.jobs {
		if job.Status != JobPending {
			continue
		}
		if oldest == nil || job.ID < oldest.ID {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = JobProcessing
	oldest.Attempts++
	oldest.UpdatedAt = time.Now()

	claimed := *oldest
	return &claimed, nil
}

func (m *MemoryStore) CompleteArtworkJob(ctx context.Context, jobID int64, thumbnails []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = JobCompleted
	job.Thumbnails = append([]string(nil), thumbnails...)
	job.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) FailArtworkJob(ctx context.Context, jobID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = JobFailed
	job.ErrorMessage = reason
	job.UpdatedAt = time.Now()
	return nil
}

// Job returns a copy of the job for inspection in tests.
func (m *MemoryStore) Job(jobID int64) (*ArtworkJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

func cloneRecord(rec *AudioRecord) *AudioRecord {
	copied := *rec
	if rec.Technical != nil {
		tech := *rec.Technical
		copied.Technical = &tech
	}
	return &copied
}
