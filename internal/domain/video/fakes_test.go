package video

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
)

// ===== Test Doubles =====

// fakeMP4 is a minimal ISO base media header; enough to not look like text.
var fakeMP4 = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2',
	0x00, 0x00, 0x00, 0x00, 'm', 'p', '4', '2', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x00, 0x08, 'f', 'r', 'e', 'e',
}

// pngHeader is the PNG signature followed by an IHDR chunk header.
var pngHeader = []byte{
	0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x02, 0x00, 0x00, 0x00,
}

type staticCreds struct {
	key string
	err error
}

func (c staticCreds) Credential() (string, error) {
	return c.key, c.err
}

var validCreds = staticCreds{key: "test-key"}

type MockJobCreator struct {
	mock.Mock
}

func (m *MockJobCreator) CreateJob(ctx context.Context, req *ProviderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

var _ JobCreator = (*MockJobCreator)(nil)

// statusReply is one scripted answer of fakeProvider.CheckStatus.
type statusReply struct {
	status *ProviderStatus
	err    error
}

func notDone() statusReply {
	return statusReply{status: &ProviderStatus{}}
}

func doneWith(uri string) statusReply {
	return statusReply{status: &ProviderStatus{Done: true, VideoURI: uri}}
}

func doneWithError(code, msg string) statusReply {
	return statusReply{status: &ProviderStatus{Done: true, ErrorCode: code, ErrorMessage: msg}}
}

// fakeProvider scripts status answers and artifact downloads. The last status
// reply repeats once the script is exhausted.
type fakeProvider struct {
	mu    sync.Mutex
	clock clockwork.Clock

	jobID     string
	createErr error
	created   []*ProviderRequest

	replies    []statusReply
	queryTimes []time.Time

	artifact  []byte
	fetchErr  error
	fetches   int
	fetchGate chan struct{}
}

func newFakeProvider(clock clockwork.Clock, replies ...statusReply) *fakeProvider {
	return &fakeProvider{
		clock:    clock,
		jobID:    "models/veo/operations/op-1",
		replies:  replies,
		artifact: fakeMP4,
	}
}

func (f *fakeProvider) CreateJob(_ context.Context, req *ProviderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.jobID, nil
}

func (f *fakeProvider) CheckStatus(_ context.Context, _ string) (*ProviderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryTimes = append(f.queryTimes, f.clock.Now())
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted status")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply.status, reply.err
}

func (f *fakeProvider) FetchArtifact(ctx context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.fetchGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artifact, f.fetchErr
}

func (f *fakeProvider) queries() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.queryTimes...)
}

func (f *fakeProvider) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeProvider) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

var _ Provider = (*fakeProvider)(nil)

type transition struct {
	from, to Status
}

// recordingObserver records lifecycle notifications.
type recordingObserver struct {
	mu          sync.Mutex
	submitted   []Mode
	rejected    []Kind
	transitions []transition
	finished    []OutcomeState
	fetched     int
}

func (o *recordingObserver) JobSubmitted(mode Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted = append(o.submitted, mode)
}

func (o *recordingObserver) JobRejected(kind Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, kind)
}

func (o *recordingObserver) JobTransitioned(job GenerationJob, from Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{from: from, to: job.Status()})
}

func (o *recordingObserver) JobFinished(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, outcome.State)
}

func (o *recordingObserver) ArtifactFetched(int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetched++
}

func (o *recordingObserver) snapshot() ([]transition, []OutcomeState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]transition(nil), o.transitions...), append([]OutcomeState(nil), o.finished...)
}

var _ Observer = (*recordingObserver)(nil)

// mapStore is an in-memory JobStore.
type mapStore struct {
	mu   sync.Mutex
	jobs map[string]GenerationJob
}

func newMapStore() *mapStore {
	return &mapStore{jobs: make(map[string]GenerationJob)}
}

func (s *mapStore) Save(_ context.Context, job GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID()] = job
	return nil
}

func (s *mapStore) Get(_ context.Context, id string) (GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return GenerationJob{}, ErrJobNotFound
	}
	return job, nil
}

func (s *mapStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *mapStore) peek(id string) (GenerationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

var _ JobStore = (*mapStore)(nil)

func textRequest(prompt string) *GenerationRequest {
	return &GenerationRequest{Mode: ModeTextToVideo, Prompt: prompt}
}

func testSettings() *Settings {
	return &Settings{
		PollInterval: 10 * time.Second,
		Timeout:      10 * time.Minute,
		QueryTimeout: time.Second,
	}
}
