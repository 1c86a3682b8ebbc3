package metrics

import (
	"time"

	"github.com/uniedit/videogen/internal/domain/video"
)

// VideoObserver records generation lifecycle events.
type VideoObserver struct {
	m *Metrics
}

// NewVideoObserver creates an observer backed by m.
func NewVideoObserver(m *Metrics) *VideoObserver {
	return &VideoObserver{m: m}
}

var _ video.Observer = (*VideoObserver)(nil)

func (o *VideoObserver) JobSubmitted(mode video.Mode) {
	o.m.JobsSubmittedTotal.WithLabelValues(mode.String()).Inc()
	o.m.JobsInFlight.Inc()
}

func (o *VideoObserver) JobRejected(kind video.Kind) {
	o.m.JobsRejectedTotal.WithLabelValues(string(kind)).Inc()
}

func (o *VideoObserver) JobTransitioned(job video.GenerationJob, from video.Status) {
	o.m.JobTransitionsTotal.WithLabelValues(from.String(), job.Status().String()).Inc()
}

func (o *VideoObserver) JobFinished(outcome video.Outcome, elapsed time.Duration) {
	mode := outcome.Job.Mode().String()
	state := string(outcome.State)
	o.m.JobOutcomesTotal.WithLabelValues(mode, state).Inc()
	o.m.JobDuration.WithLabelValues(mode, state).Observe(elapsed.Seconds())
	o.m.JobsInFlight.Dec()
}

func (o *VideoObserver) ArtifactFetched(size int, err error) {
	if err != nil {
		o.m.ArtifactFetchesTotal.WithLabelValues("error").Inc()
		return
	}
	o.m.ArtifactFetchesTotal.WithLabelValues("success").Inc()
	o.m.ArtifactBytes.Observe(float64(size))
}
