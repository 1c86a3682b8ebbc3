package video

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// flight is one observation loop shared by every caller awaiting a job.
type flight struct {
	done    chan struct{}
	outcome Outcome
	err     error
	waiters int
}

// Poller observes submitted jobs until they finish or their deadline passes.
// At most one loop runs per job ID.
type Poller struct {
	mu      sync.Mutex
	flights map[string]*flight
	stopped bool

	checker  StatusChecker
	clock    clockwork.Clock
	settings *Settings
	observer Observer
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerClock sets the clock used for intervals and deadlines.
func WithPollerClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithPollerObserver sets the lifecycle observer.
func WithPollerObserver(o Observer) PollerOption {
	return func(p *Poller) { p.observer = o }
}

// NewPoller creates a new poller.
func NewPoller(checker StatusChecker, settings *Settings, logger *zap.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		flights:  make(map[string]*flight),
		checker:  checker,
		clock:    clockwork.NewRealClock(),
		settings: settings.withDefaults(),
		observer: nopObserver{},
		logger:   logger.Named("video-poller"),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Clock returns the poller's clock.
func (p *Poller) Clock() clockwork.Clock {
	return p.clock
}

// Await blocks until the job reaches a terminal outcome. Concurrent calls for
// the same job share one loop. Cancelling ctx detaches the caller without
// stopping the loop.
func (p *Poller) Await(ctx context.Context, job GenerationJob) (Outcome, error) {
	if job.IsTerminal() {
		return terminalOutcome(job), nil
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return Outcome{}, ErrPollerStopped
	}
	f, ok := p.flights[job.ID()]
	if !ok {
		f = &flight{done: make(chan struct{})}
		p.flights[job.ID()] = f
		p.wg.Add(1)
		go p.run(f, job)
	}
	f.waiters++
	p.mu.Unlock()

	select {
	case <-f.done:
		p.detach(f)
		return f.outcome, f.err
	case <-ctx.Done():
		p.detach(f)
		return Outcome{}, ctx.Err()
	}
}

// Waiters returns the number of callers attached to a job's loop.
func (p *Poller) Waiters(jobID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.flights[jobID]; ok {
		return f.waiters
	}
	return 0
}

// Active returns the number of running loops.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.flights)
}

// Stop terminates every loop. Callers still waiting receive ErrPollerStopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("stopping poller")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("poller stopped")
}

func (p *Poller) detach(f *flight) {
	p.mu.Lock()
	f.waiters--
	p.mu.Unlock()
}

func (p *Poller) run(f *flight, job GenerationJob) {
	defer p.wg.Done()

	outcome, err := p.observe(job)

	p.mu.Lock()
	delete(p.flights, job.ID())
	f.outcome, f.err = outcome, err
	p.mu.Unlock()
	close(f.done)

	if err == nil {
		p.observer.JobFinished(outcome, p.clock.Since(job.SubmittedAt()))
	}
}

func (p *Poller) observe(job GenerationJob) (Outcome, error) {
	log := p.logger.With(zap.String("job_id", job.ID()), zap.String("mode", job.Mode().String()))

	for {
		if p.ctx.Err() != nil {
			return Outcome{}, ErrPollerStopped
		}

		now := p.clock.Now()
		if !now.Before(job.DeadlineAt()) {
			log.Warn("job timed out",
				zap.String("status", job.Status().String()),
				zap.Duration("elapsed", now.Sub(job.SubmittedAt())))
			return Outcome{State: OutcomeTimedOut, Job: job}, nil
		}

		status, err := p.query(job.ID())
		if err != nil {
			if p.ctx.Err() != nil {
				return Outcome{}, ErrPollerStopped
			}
			log.Error("status query failed", zap.Error(err))
			return p.fail(job, FailureReason{Code: FailurePoll, Message: err.Error()}), nil
		}

		if status.Done {
			return p.finish(log, job, status), nil
		}

		if job.Status() == StatusPending {
			next, err := job.Advance(p.clock.Now())
			if err != nil {
				return Outcome{}, err
			}
			log.Info("job processing")
			p.observer.JobTransitioned(next, StatusPending)
			job = next
		} else {
			log.Debug("job still processing")
		}

		wait := p.settings.PollInterval
		if remaining := job.DeadlineAt().Sub(p.clock.Now()); remaining < wait {
			wait = remaining
		}
		select {
		case <-p.ctx.Done():
			return Outcome{}, ErrPollerStopped
		case <-p.clock.After(wait):
		}
	}
}

func (p *Poller) query(jobID string) (*ProviderStatus, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.settings.QueryTimeout)
	defer cancel()
	return p.checker.CheckStatus(ctx, jobID)
}

func (p *Poller) finish(log *zap.Logger, job GenerationJob, status *ProviderStatus) Outcome {
	if status.Failed() {
		log.Warn("job failed",
			zap.String("code", status.ErrorCode),
			zap.String("error", status.ErrorMessage))
		msg := status.ErrorMessage
		if msg == "" {
			msg = ErrJobFailed.Message
		}
		return p.fail(job, FailureReason{Code: FailureProvider, Message: msg})
	}
	if status.VideoURI == "" {
		log.Warn("job finished without an artifact")
		return p.fail(job, FailureReason{Code: FailureNoArtifact, Message: "provider returned no video"})
	}

	mime := status.MimeType
	if mime == "" {
		mime = defaultVideoMime
	}
	from := job.Status()
	completed, err := job.Complete(ArtifactRef{RemoteURI: status.VideoURI, MimeType: mime}, p.clock.Now())
	if err != nil {
		return p.fail(job, FailureReason{Code: FailureProvider, Message: err.Error()})
	}
	log.Info("job completed", zap.String("video_uri", status.VideoURI))
	p.observer.JobTransitioned(completed, from)
	return terminalOutcome(completed)
}

func (p *Poller) fail(job GenerationJob, reason FailureReason) Outcome {
	from := job.Status()
	failed, err := job.Fail(reason, p.clock.Now())
	if err != nil {
		return Outcome{State: OutcomeFailed, Job: job, Failure: &reason}
	}
	p.observer.JobTransitioned(failed, from)
	return terminalOutcome(failed)
}

func terminalOutcome(job GenerationJob) Outcome {
	if job.Status() == StatusCompleted {
		return Outcome{State: OutcomeCompleted, Job: job, Artifact: job.Artifact()}
	}
	return Outcome{State: OutcomeFailed, Job: job, Failure: job.Failure()}
}

