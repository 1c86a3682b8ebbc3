package video

// OutcomeState is the terminal result of observing a job.
type OutcomeState string

const (
	OutcomeCompleted OutcomeState = "completed"
	OutcomeFailed    OutcomeState = "failed"
	OutcomeTimedOut  OutcomeState = "timed_out"
)

// Outcome is what the poller reports once it stops observing a job.
// Artifact is set only for completed outcomes, Failure only for failed ones.
type Outcome struct {
	State    OutcomeState
	Job      GenerationJob
	Artifact *ArtifactRef
	Failure  *FailureReason
}

// Err converts a non-completed outcome into the matching generation error.
func (o Outcome) Err() error {
	switch o.State {
	case OutcomeCompleted:
		return nil
	case OutcomeTimedOut:
		return newError(KindTimedOut, ErrTimedOut.Message, nil)
	default:
		msg := ErrJobFailed.Message
		kind := KindJobFailed
		if o.Failure != nil {
			if o.Failure.Code == FailurePoll {
				kind = KindPoll
			}
			if o.Failure.Message != "" {
				msg = o.Failure.Message
			}
		}
		return newError(kind, msg, nil)
	}
}
