package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// JobStatus is the externally visible state of a tracked job.
type JobStatus struct {
	JobID    string
	State    string
	Message  string
	VideoURI string
	Error    string
	Job      GenerationJob
}

// Terminal reports whether the job will not change any more.
func (s *JobStatus) Terminal() bool {
	return s.State != string(StatusPending) && s.State != string(StatusProcessing)
}

// Service runs generation requests end to end.
type Service struct {
	submitter    *Submitter
	poller       *Poller
	materializer *Materializer
	store        JobStore
	archiver     Archiver
	logger       *zap.Logger

	mu       sync.Mutex
	tracking map[string]struct{}
	wg       sync.WaitGroup
}

// NewService creates a new generation service. store and archiver may be nil.
func NewService(submitter *Submitter, poller *Poller, materializer *Materializer, store JobStore, archiver Archiver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		submitter:    submitter,
		poller:       poller,
		materializer: materializer,
		store:        store,
		archiver:     archiver,
		logger:       logger.Named("video-service"),
		tracking:     make(map[string]struct{}),
	}
}

// Run submits req, waits for the job and returns the materialized artifact.
// Errors from each stage are returned unchanged.
func (s *Service) Run(ctx context.Context, req *GenerationRequest) (*EncodedArtifact, error) {
	job, err := s.submitter.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome, err := s.poller.Await(ctx, *job)
	if err != nil {
		return nil, err
	}
	if err := outcome.Err(); err != nil {
		return nil, err
	}

	artifact, err := s.materializer.Materialize(ctx, *outcome.Artifact)
	if err != nil {
		return nil, err
	}
	s.archive(ctx, artifactName(job.ID()), artifact)
	return artifact, nil
}

// Submit starts a job and tracks it in the background. Its progress is read
// back with Status.
func (s *Service) Submit(ctx context.Context, req *GenerationRequest) (*GenerationJob, error) {
	if s.store == nil {
		return nil, errors.New("job tracking is not configured")
	}
	job, err := s.submitter.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, *job); err != nil {
		return nil, err
	}

	s.startTracking(*job)
	return job, nil
}

// startTracking starts a background tracker unless one is already running
// for the job. It reports whether a tracker was started.
func (s *Service) startTracking(job GenerationJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracking[job.ID()]; ok {
		return false
	}
	s.tracking[job.ID()] = struct{}{}
	s.wg.Add(1)
	go s.track(job)
	return true
}

func (s *Service) track(job GenerationJob) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.tracking, job.ID())
		s.mu.Unlock()
	}()

	outcome, err := s.poller.Await(context.Background(), job)
	if err != nil {
		s.logger.Debug("stopped tracking job", zap.String("job_id", job.ID()), zap.Error(err))
		return
	}
	if outcome.State == OutcomeTimedOut {
		return
	}
	ctx := context.Background()
	if _, err := s.store.Get(ctx, job.ID()); err != nil {
		// Already released.
		return
	}
	if err := s.store.Save(ctx, outcome.Job); err != nil {
		s.logger.Error("failed to record job outcome", zap.String("job_id", job.ID()), zap.Error(err))
	}
}

// Status returns the state of a tracked job. A terminal answer releases the
// job, so later queries report ErrJobNotFound.
func (s *Service) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	if s.store == nil {
		return nil, ErrJobNotFound
	}
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	st := &JobStatus{JobID: job.ID(), State: job.Status().String(), Job: job}
	switch {
	case job.Status() == StatusCompleted:
		st.VideoURI = job.Artifact().RemoteURI
	case job.Status() == StatusFailed:
		st.Error = job.Failure().Message
	case !s.poller.Clock().Now().Before(job.DeadlineAt()):
		st.State = string(OutcomeTimedOut)
		st.Error = ErrTimedOut.Message
	default:
		// Jobs loaded from a shared store after a restart have no tracker.
		if s.startTracking(job) {
			s.logger.Info("resuming job tracking", zap.String("job_id", job.ID()))
		}
	}
	st.Message = StatusMessage(st.State)

	if st.Terminal() {
		if err := s.store.Delete(ctx, jobID); err != nil {
			s.logger.Warn("failed to release job", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return st, nil
}

// Download materializes an artifact by its remote location.
func (s *Service) Download(ctx context.Context, videoURI string) (*EncodedArtifact, error) {
	artifact, err := s.materializer.Materialize(ctx, ArtifactRef{RemoteURI: videoURI})
	if err != nil {
		return nil, err
	}
	s.archive(ctx, artifactName(videoURI), artifact)
	return artifact, nil
}

// Stop stops polling and waits for background tracking to end.
func (s *Service) Stop() {
	s.poller.Stop()
	s.wg.Wait()
}

func (s *Service) archive(ctx context.Context, name string, artifact *EncodedArtifact) {
	if s.archiver == nil {
		return
	}
	location, err := s.archiver.Archive(ctx, name, artifact)
	if err != nil {
		s.logger.Warn("failed to archive artifact", zap.String("name", name), zap.Error(err))
		return
	}
	artifact.ArchiveURL = location
	s.logger.Info("artifact archived", zap.String("name", name), zap.String("location", location))
}

// artifactName derives a stable name from an artifact location. The hash of
// the full location keeps artifacts with the same file name apart.
func artifactName(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:6]) + "-" + baseName(uri)
}

func baseName(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if i := strings.IndexByte(name, ':'); i > 0 {
		name = name[:i]
	}
	if name == "" || name == "." || name == "/" {
		return "artifact"
	}
	return name
}
