package inbound

import (
	"context"

	"github.com/uniedit/videogen/internal/domain/video"
)

// VideoService is the generation surface exposed over HTTP.
type VideoService interface {
	Submit(ctx context.Context, req *video.GenerationRequest) (*video.GenerationJob, error)
	Status(ctx context.Context, jobID string) (*video.JobStatus, error)
	Download(ctx context.Context, videoURI string) (*video.EncodedArtifact, error)
}

// --- Request/Response Types ---

// VideoConfigInput carries optional generation parameters.
type VideoConfigInput struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
}

// ReferenceImageInput is one reference image of a reference-guided request.
type ReferenceImageInput struct {
	Image         string `json:"image"`
	ReferenceType string `json:"referenceType,omitempty"`
}

// VideoGenerationInput is the body of every generation route. Media fields
// are base64 strings with or without a data URI prefix; which ones are
// required depends on the route.
type VideoGenerationInput struct {
	Prompt          string                `json:"prompt"`
	Model           string                `json:"model,omitempty"`
	Config          VideoConfigInput      `json:"config"`
	Image           string                `json:"image,omitempty"`
	FirstFrame      string                `json:"firstFrame,omitempty"`
	LastFrame       string                `json:"lastFrame,omitempty"`
	ReferenceImages []ReferenceImageInput `json:"referenceImages,omitempty"`
	Video           string                `json:"video,omitempty"`
	// VideoDurationSeconds declares the source video length. When omitted
	// the length is read from the MP4 container.
	VideoDurationSeconds float64 `json:"videoDurationSeconds,omitempty"`
}

// VideoJobOutput is returned when a job is accepted.
type VideoJobOutput struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

// VideoPollInput asks for the state of a job by body instead of path.
type VideoPollInput struct {
	JobID string `json:"operationId" binding:"required"`
}

// VideoStatusOutput reports a job's state.
type VideoStatusOutput struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	VideoURI string `json:"video_uri,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VideoDownloadInput names an artifact to fetch.
type VideoDownloadInput struct {
	VideoURI string `json:"videoUri" binding:"required"`
}

// VideoDownloadOutput carries a fetched artifact.
type VideoDownloadOutput struct {
	VideoData  string `json:"video_data"`
	MimeType   string `json:"mime_type"`
	Size       int    `json:"size"`
	ArchiveURL string `json:"archive_url,omitempty"`
}
