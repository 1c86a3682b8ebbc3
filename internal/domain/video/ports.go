package video

import (
	"context"
	"time"
)

// ProviderMedia is a decoded media payload ready for submission.
type ProviderMedia struct {
	Data     []byte
	MimeType string
	Kind     ReferenceKind
}

// ProviderRequest is a validated request mapped onto provider fields.
type ProviderRequest struct {
	Model      string
	Prompt     string
	Image      *ProviderMedia
	LastFrame  *ProviderMedia
	References []ProviderMedia
	Video      *ProviderMedia
	Config     Config
}

// ProviderStatus is the provider's answer to a status query.
type ProviderStatus struct {
	Done         bool
	VideoURI     string
	MimeType     string
	ErrorCode    string
	ErrorMessage string
}

// Failed reports whether the provider finished the job with an error.
func (s *ProviderStatus) Failed() bool {
	return s.Done && (s.ErrorCode != "" || s.ErrorMessage != "")
}

// JobCreator starts generation jobs at the provider.
type JobCreator interface {
	// CreateJob submits a request and returns the provider's job identifier.
	CreateJob(ctx context.Context, req *ProviderRequest) (string, error)
}

// StatusChecker queries the provider for job progress.
type StatusChecker interface {
	CheckStatus(ctx context.Context, jobID string) (*ProviderStatus, error)
}

// ArtifactFetcher downloads generated artifacts.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, uri string) ([]byte, error)
}

// Provider is the full provider surface.
type Provider interface {
	JobCreator
	StatusChecker
	ArtifactFetcher
}

// CredentialSource yields the provider credential.
type CredentialSource interface {
	Credential() (string, error)
}

// JobStore tracks jobs submitted through the asynchronous API.
type JobStore interface {
	Save(ctx context.Context, job GenerationJob) error
	Get(ctx context.Context, id string) (GenerationJob, error)
	Delete(ctx context.Context, id string) error
}

// Archiver copies materialized artifacts to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, jobID string, artifact *EncodedArtifact) (string, error)
}

// Observer receives lifecycle notifications, e.g. for metrics.
type Observer interface {
	JobSubmitted(mode Mode)
	JobRejected(kind Kind)
	JobTransitioned(job GenerationJob, from Status)
	JobFinished(outcome Outcome, elapsed time.Duration)
	ArtifactFetched(size int, err error)
}

type nopObserver struct{}

func (nopObserver) JobSubmitted(Mode) {}
func (nopObserver) JobRejected(Kind) {}
func (nopObserver) JobTransitioned(GenerationJob, Status) {}
func (nopObserver) JobFinished(Outcome, time.Duration) {}
func (nopObserver) ArtifactFetched(int, error) {}
