package video

import "time"

// Config defaults.
const (
	DefaultPollInterval     = 10 * time.Second
	DefaultTimeout          = 10 * time.Minute
	DefaultQueryTimeout     = 30 * time.Second
	DefaultMaxArtifactBytes = 512 << 20

	// MaxSourceSeconds is the longest source video that can be extended.
	MaxSourceSeconds = 141

	MaxReferenceImages = 3
	MaxImageBytes      = 10 << 20
	MaxVideoBytes      = 100 << 20
)

// Settings tunes job observation and artifact retrieval.
type Settings struct {
	PollInterval     time.Duration `json:"poll_interval" yaml:"poll_interval"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	QueryTimeout     time.Duration `json:"query_timeout" yaml:"query_timeout"`
	MaxArtifactBytes int64         `json:"max_artifact_bytes" yaml:"max_artifact_bytes"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		PollInterval:     DefaultPollInterval,
		Timeout:          DefaultTimeout,
		QueryTimeout:     DefaultQueryTimeout,
		MaxArtifactBytes: DefaultMaxArtifactBytes,
	}
}

func (s *Settings) withDefaults() *Settings {
	out := DefaultSettings()
	if s == nil {
		return out
	}
	if s.PollInterval > 0 {
		out.PollInterval = s.PollInterval
	}
	if s.Timeout > 0 {
		out.Timeout = s.Timeout
	}
	if s.QueryTimeout > 0 {
		out.QueryTimeout = s.QueryTimeout
	}
	if s.MaxArtifactBytes > 0 {
		out.MaxArtifactBytes = s.MaxArtifactBytes
	}
	return out
}
