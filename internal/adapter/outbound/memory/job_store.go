package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/uniedit/videogen/internal/domain/video"
)

// JobStore keeps tracked jobs in process memory. Finished jobs are dropped
// once they are older than the ttl, as are unfinished jobs whose deadline
// passed more than a ttl ago.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]video.GenerationJob
	ttl   time.Duration
	clock clockwork.Clock
}

// JobStoreOption configures a JobStore.
type JobStoreOption func(*JobStore)

// WithJobStoreClock sets the clock used for expiry.
func WithJobStoreClock(c clockwork.Clock) JobStoreOption {
	return func(s *JobStore) { s.clock = c }
}

// NewJobStore creates an empty in-memory job store. A ttl of zero keeps jobs
// until they are deleted.
func NewJobStore(ttl time.Duration, opts ...JobStoreOption) *JobStore {
	s := &JobStore{
		jobs:  make(map[string]video.GenerationJob),
		ttl:   ttl,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JobStore) Save(_ context.Context, job video.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID()] = job
	s.sweep(s.clock.Now())
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (video.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok || s.expired(job, s.clock.Now()) {
		return video.GenerationJob{}, video.ErrJobNotFound
	}
	return job, nil
}

func (s *JobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Len returns the number of stored jobs, expired ones included until the
// next Save.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// sweep must be called with mu held.
func (s *JobStore) sweep(now time.Time) {
	for id, job := range s.jobs {
		if s.expired(job, now) {
			delete(s.jobs, id)
		}
	}
}

func (s *JobStore) expired(job video.GenerationJob, now time.Time) bool {
	if s.ttl <= 0 {
		return false
	}
	since := job.DeadlineAt()
	if job.IsTerminal() {
		since = job.UpdatedAt()
	}
	return now.Sub(since) > s.ttl
}

var _ video.JobStore = (*JobStore)(nil)
