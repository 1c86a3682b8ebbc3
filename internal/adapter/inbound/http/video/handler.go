package videohttp

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/videogen/internal/domain/video"
	"github.com/uniedit/videogen/internal/port/inbound"
)

// Handler handles video generation HTTP requests.
type Handler struct {
	service inbound.VideoService
}

// NewHandler creates a new video handler.
func NewHandler(service inbound.VideoService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers video routes. submitMiddleware guards the routes
// that start provider jobs, e.g. a rate limiter.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, submitMiddleware ...gin.HandlerFunc) {
	videos := r.Group("/videos")
	{
		submit := videos.Group("", submitMiddleware...)
		submit.POST("/text-to-video", h.generate(video.ModeTextToVideo))
		submit.POST("/image-to-video", h.generate(video.ModeImageToVideo))
		submit.POST("/interpolation", h.generate(video.ModeInterpolation))
		submit.POST("/references", h.generate(video.ModeReferenceGuided))
		submit.POST("/extend", h.generate(video.ModeExtension))

		videos.POST("/poll", h.Poll)
		videos.POST("/download", h.Download)

		// Job ids contain slashes.
		videos.GET("/*job_id", h.GetStatus)
	}
}

func (h *Handler) generate(mode video.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input inbound.VideoGenerationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, badRequest(err))
			return
		}

		req := toGenerationRequest(mode, &input)
		job, err := h.service.Submit(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set("job_id", job.ID())

		c.JSON(http.StatusAccepted, inbound.VideoJobOutput{
			JobID:            job.ID(),
			Status:           job.Status().String(),
			Message:          video.StatusMessage(job.Status().String()),
			EstimatedSeconds: video.EstimatedGenerationSeconds(job.Request().Config.DurationSeconds),
		})
	}
}

// GetStatus reports the state of a job.
func (h *Handler) GetStatus(c *gin.Context) {
	h.status(c, strings.TrimPrefix(c.Param("job_id"), "/"))
}

// Poll reports the state of a job named in the request body.
func (h *Handler) Poll(c *gin.Context) {
	var input inbound.VideoPollInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, badRequest(err))
		return
	}
	h.status(c, input.JobID)
}

func (h *Handler) status(c *gin.Context, jobID string) {
	if jobID == "" {
		respondError(c, video.ErrJobNotFound)
		return
	}
	c.Set("job_id", jobID)

	st, err := h.service.Status(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inbound.VideoStatusOutput{
		JobID:    st.JobID,
		Status:   st.State,
		Message:  st.Message,
		VideoURI: st.VideoURI,
		Error:    st.Error,
	})
}

// Download fetches a generated video and returns it as a data URI.
func (h *Handler) Download(c *gin.Context) {
	var input inbound.VideoDownloadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, badRequest(err))
		return
	}

	artifact, err := h.service.Download(c.Request.Context(), input.VideoURI)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inbound.VideoDownloadOutput{
		VideoData:  artifact.DataURI(),
		MimeType:   artifact.MimeType,
		Size:       artifact.Size(),
		ArchiveURL: artifact.ArchiveURL,
	})
}

func toGenerationRequest(mode video.Mode, in *inbound.VideoGenerationInput) *video.GenerationRequest {
	req := &video.GenerationRequest{
		Mode:   mode,
		Prompt: in.Prompt,
		Model:  in.Model,
		Media:  make(map[video.Role]video.MediaInput),
		Config: video.Config{
			AspectRatio:     video.AspectRatio(in.Config.AspectRatio),
			Resolution:      video.Resolution(in.Config.Resolution),
			DurationSeconds: in.Config.DurationSeconds,
			NegativePrompt:  in.Config.NegativePrompt,
			PersonPolicy:    video.PersonPolicy(in.Config.PersonGeneration),
		},
	}

	// Every supplied field becomes a role so that inputs the mode does not
	// take are rejected instead of silently dropped.
	add := func(role video.Role, encoded string) {
		if encoded != "" {
			req.Media[role] = video.MediaInput{Encoded: encoded}
		}
	}
	add(video.RolePrimary, in.Image)
	add(video.RoleFirstFrame, in.FirstFrame)
	add(video.RoleLastFrame, in.LastFrame)
	if in.Video != "" {
		req.Media[video.RoleSourceVideo] = video.MediaInput{Encoded: in.Video, DurationSeconds: in.VideoDurationSeconds}
	}
	for i, ref := range in.ReferenceImages {
		req.Media[video.ReferenceRole(i+1)] = video.MediaInput{
			Encoded: ref.Image,
			Kind:    video.ReferenceKind(ref.ReferenceType),
		}
	}
	return req
}
