package video

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a generation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns whether the status is terminal.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InFlight reports whether callers should treat the job as still running.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

// ArtifactRef points at a generated artifact in the provider's store.
type ArtifactRef struct {
	RemoteURI string `json:"remote_uri"`
	MimeType  string `json:"mime_type"`
}

// FailureReason describes why a job failed.
type FailureReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Failure codes.
const (
	FailureProvider   = "provider_error"
	FailurePoll       = "poll_error"
	FailureNoArtifact = "no_artifact"
)

// GenerationJob is an immutable snapshot of a submitted job. Transitions
// return a new value and never modify the receiver.
type GenerationJob struct {
	id          string
	mode        Mode
	request     GenerationRequest
	status      Status
	submittedAt time.Time
	deadlineAt  time.Time
	updatedAt   time.Time
	artifact    *ArtifactRef
	failure     *FailureReason
}

// NewJob creates a pending job for a request the provider accepted.
func NewJob(id string, req GenerationRequest, submittedAt time.Time, timeout time.Duration) GenerationJob {
	return GenerationJob{
		id:          id,
		mode:        req.Mode,
		request:     req,
		status:      StatusPending,
		submittedAt: submittedAt,
		deadlineAt:  submittedAt.Add(timeout),
		updatedAt:   submittedAt,
	}
}

// ID returns the provider-assigned job identifier.
func (j GenerationJob) ID() string { return j.id }

// Mode returns the generation mode.
func (j GenerationJob) Mode() Mode { return j.mode }

// Request returns the request the job was created from.
func (j GenerationJob) Request() GenerationRequest { return j.request }

// Status returns the current status.
func (j GenerationJob) Status() Status { return j.status }

// SubmittedAt returns the submission time.
func (j GenerationJob) SubmittedAt() time.Time { return j.submittedAt }

// DeadlineAt returns the time after which the job is no longer observed.
func (j GenerationJob) DeadlineAt() time.Time { return j.deadlineAt }

// UpdatedAt returns the time of the last transition.
func (j GenerationJob) UpdatedAt() time.Time { return j.updatedAt }

// Artifact returns the artifact of a completed job.
func (j GenerationJob) Artifact() *ArtifactRef { return j.artifact }

// Failure returns the failure reason of a failed job.
func (j GenerationJob) Failure() *FailureReason { return j.failure }

// IsTerminal returns whether the job has reached a terminal state.
func (j GenerationJob) IsTerminal() bool { return j.status.IsTerminal() }

// Advance moves a pending job to processing. Already processing jobs
// are returned unchanged.
func (j GenerationJob) Advance(at time.Time) (GenerationJob, error) {
	switch j.status {
	case StatusProcessing:
		return j, nil
	case StatusPending:
		j.status = StatusProcessing
		j.updatedAt = at
		return j, nil
	default:
		return j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, StatusProcessing)
	}
}

// Complete moves the job to completed with its artifact.
func (j GenerationJob) Complete(ref ArtifactRef, at time.Time) (GenerationJob, error) {
	if err := j.checkTerminal(StatusCompleted); err != nil {
		return j, err
	}
	j.status = StatusCompleted
	j.artifact = &ref
	j.failure = nil
	j.updatedAt = at
	return j, nil
}

// Fail moves the job to failed.
func (j GenerationJob) Fail(reason FailureReason, at time.Time) (GenerationJob, error) {
	if err := j.checkTerminal(StatusFailed); err != nil {
		return j, err
	}
	j.status = StatusFailed
	j.failure = &reason
	j.artifact = nil
	j.updatedAt = at
	return j, nil
}

func (j GenerationJob) checkTerminal(next Status) error {
	if next.rank() <= j.status.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, next)
	}
	return nil
}

// JobRecord is the serializable form of a GenerationJob. Media payloads are
// not recorded.
type JobRecord struct {
	ID          string         `json:"id"`
	Mode        Mode           `json:"mode"`
	Prompt      string         `json:"prompt"`
	Model       string         `json:"model"`
	Config      Config         `json:"config"`
	Status      Status         `json:"status"`
	SubmittedAt time.Time      `json:"submitted_at"`
	DeadlineAt  time.Time      `json:"deadline_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Artifact    *ArtifactRef   `json:"artifact,omitempty"`
	Failure     *FailureReason `json:"failure,omitempty"`
}

// Record returns the serializable form of the job.
func (j GenerationJob) Record() JobRecord {
	return JobRecord{
		ID:          j.id,
		Mode:        j.mode,
		Prompt:      j.request.Prompt,
		Model:       j.request.Model,
		Config:      j.request.Config,
		Status:      j.status,
		SubmittedAt: j.submittedAt,
		DeadlineAt:  j.deadlineAt,
		UpdatedAt:   j.updatedAt,
		Artifact:    j.artifact,
		Failure:     j.failure,
	}
}

// RestoreJob rebuilds a job from its record.
func RestoreJob(r JobRecord) (GenerationJob, error) {
	if r.ID == "" {
		return GenerationJob{}, fmt.Errorf("restore job: missing id")
	}
	switch r.Status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return GenerationJob{}, fmt.Errorf("restore job %s: unknown status %q", r.ID, r.Status)
	}
	return GenerationJob{
		id:          r.ID,
		mode:        r.Mode,
		request:     GenerationRequest{Mode: r.Mode, Prompt: r.Prompt, Model: r.Model, Config: r.Config},
		status:      r.Status,
		submittedAt: r.SubmittedAt,
		deadlineAt:  r.DeadlineAt,
		updatedAt:   r.UpdatedAt,
		artifact:    r.Artifact,
		failure:     r.Failure,
	}, nil
}
