package video

import "errors"

// Kind identifies the stage and class of a generation error.
type Kind string

const (
	KindConfiguration   Kind = "configuration"
	KindValidation      Kind = "validation"
	KindConfigConflict  Kind = "config_conflict"
	KindReferenceCount  Kind = "reference_count"
	KindSourceTooLong   Kind = "source_too_long"
	KindSubmission      Kind = "submission"
	KindPoll            Kind = "poll"
	KindJobFailed       Kind = "job_failed"
	KindTimedOut        Kind = "timed_out"
	KindMaterialization Kind = "materialization"
	KindEmptyArtifact   Kind = "empty_artifact"
)

// Error is a typed generation error. Message is suitable for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrConfiguration   = &Error{Kind: KindConfiguration, Message: "provider credential is not configured"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "invalid generation request"}
	ErrConfigConflict  = &Error{Kind: KindConfigConflict, Message: "conflicting generation parameters"}
	ErrReferenceCount  = &Error{Kind: KindReferenceCount, Message: "between 1 and 3 reference images are required"}
	ErrSourceTooLong   = &Error{Kind: KindSourceTooLong, Message: "source video is too long to extend"}
	ErrSubmission      = &Error{Kind: KindSubmission, Message: "provider rejected the generation request"}
	ErrPoll            = &Error{Kind: KindPoll, Message: "job status query failed"}
	ErrJobFailed       = &Error{Kind: KindJobFailed, Message: "video generation failed"}
	ErrTimedOut        = &Error{Kind: KindTimedOut, Message: "generation took too long"}
	ErrMaterialization = &Error{Kind: KindMaterialization, Message: "failed to fetch generated video"}
	ErrEmptyArtifact   = &Error{Kind: KindEmptyArtifact, Message: "generated video is empty or malformed"}
)

var (
	// ErrInvalidTransition is returned when a job transition would regress its status.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrPollerStopped is returned to callers still waiting when the poller shuts down.
	ErrPollerStopped = errors.New("poller stopped")

	// ErrJobNotFound is returned when a tracked job does not exist.
	ErrJobNotFound = errors.New("generation job not found")
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func validationError(message string) *Error {
	return newError(KindValidation, message, nil)
}

// KindOf returns the kind of a generation error, or "" for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the display message of a generation error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
