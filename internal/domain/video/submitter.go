package video

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Submitter validates generation requests and starts provider jobs.
type Submitter struct {
	creator  JobCreator
	creds    CredentialSource
	clock    clockwork.Clock
	settings *Settings
	observer Observer
	model    string
	logger   *zap.Logger
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSubmitterClock sets the clock used for job timestamps.
func WithSubmitterClock(c clockwork.Clock) SubmitterOption {
	return func(s *Submitter) { s.clock = c }
}

// WithSubmitterObserver sets the lifecycle observer.
func WithSubmitterObserver(o Observer) SubmitterOption {
	return func(s *Submitter) { s.observer = o }
}

// WithSubmitterModel sets the model used when a request names none.
func WithSubmitterModel(model string) SubmitterOption {
	return func(s *Submitter) { s.model = model }
}

// NewSubmitter creates a new submitter.
func NewSubmitter(creator JobCreator, creds CredentialSource, settings *Settings, logger *zap.Logger, opts ...SubmitterOption) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Submitter{
		creator:  creator,
		creds:    creds,
		clock:    clockwork.NewRealClock(),
		settings: settings.withDefaults(),
		observer: nopObserver{},
		logger:   logger.Named("video-submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req and starts a provider job. Validation failures never
// reach the provider.
func (s *Submitter) Submit(ctx context.Context, req *GenerationRequest) (*GenerationJob, error) {
	preq, normalized, err := s.prepare(req)
	if err != nil {
		s.observer.JobRejected(KindOf(err))
		return nil, err
	}

	id, err := s.creator.CreateJob(ctx, preq)
	if err == nil && id == "" {
		err = errors.New("provider returned no job identifier")
	}
	if err != nil {
		s.logger.Warn("submission rejected",
			zap.String("mode", normalized.Mode.String()),
			zap.String("model", normalized.Model),
			zap.Error(err))
		s.observer.JobRejected(KindSubmission)
		return nil, newError(KindSubmission, ErrSubmission.Message, err)
	}

	job := NewJob(id, *normalized, s.clock.Now(), s.settings.Timeout)
	s.observer.JobSubmitted(job.Mode())
	s.logger.Info("job submitted",
		zap.String("job_id", job.ID()),
		zap.String("mode", job.Mode().String()),
		zap.String("model", normalized.Model),
		zap.Stringer("config", normalized.Config),
		zap.Time("deadline", job.DeadlineAt()))
	return &job, nil
}

// prepare runs every check in order and returns the provider request along
// with the normalized generation request.
func (s *Submitter) prepare(req *GenerationRequest) (*ProviderRequest, *GenerationRequest, error) {
	key, err := s.creds.Credential()
	if err == nil && strings.TrimSpace(key) == "" {
		err = errors.New("empty credential")
	}
	if err != nil {
		return nil, nil, newError(KindConfiguration, ErrConfiguration.Message, err)
	}

	if err := ValidateRequest(req); err != nil {
		return nil, nil, err
	}
	if err := CheckEnums(req.Config); err != nil {
		return nil, nil, err
	}
	cfg := Normalize(req.Mode, req.Config)
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	requested := req.Model
	if strings.TrimSpace(requested) == "" {
		requested = s.model
	}
	model, err := CheckModel(requested)
	if err != nil {
		return nil, nil, err
	}

	normalized := *req
	normalized.Prompt = strings.TrimSpace(req.Prompt)
	normalized.Model = model
	normalized.Config = cfg

	preq := &ProviderRequest{
		Model:  model,
		Prompt: normalized.Prompt,
		Config: cfg,
	}
	if err := s.mapMedia(req, preq); err != nil {
		return nil, nil, err
	}
	return preq, &normalized, nil
}

func (s *Submitter) mapMedia(req *GenerationRequest, preq *ProviderRequest) error {
	decode := func(role Role) (*ProviderMedia, error) {
		m, err := DecodeMedia(role, req.Media[role])
		if err != nil {
			return nil, err
		}
		return &m, nil
	}

	var err error
	switch req.Mode {
	case ModeImageToVideo:
		preq.Image, err = decode(RolePrimary)
	case ModeInterpolation:
		if preq.Image, err = decode(RoleFirstFrame); err != nil {
			return err
		}
		preq.LastFrame, err = decode(RoleLastFrame)
	case ModeReferenceGuided:
		for _, role := range req.referenceRoles() {
			m, derr := decode(role)
			if derr != nil {
				return derr
			}
			preq.References = append(preq.References, *m)
		}
	case ModeExtension:
		if preq.Video, err = decode(RoleSourceVideo); err != nil {
			return err
		}
		seconds, derr := SourceDuration(req.Media[RoleSourceVideo], *preq.Video)
		if derr != nil {
			return derr
		}
		if derr := CheckSourceDuration(seconds); derr != nil {
			return derr
		}
	}
	if err != nil {
		return fmt.Errorf("map media: %w", err)
	}
	return nil
}
