package videohttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/videogen/internal/domain/video"
	"github.com/uniedit/videogen/internal/port/inbound"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockVideoService struct {
	mock.Mock
}

var _ inbound.VideoService = (*MockVideoService)(nil)

func (m *MockVideoService) Submit(ctx context.Context, req *video.GenerationRequest) (*video.GenerationJob, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*video.GenerationJob)
	return job, args.Error(1)
}

func (m *MockVideoService) Status(ctx context.Context, jobID string) (*video.JobStatus, error) {
	args := m.Called(ctx, jobID)
	st, _ := args.Get(0).(*video.JobStatus)
	return st, args.Error(1)
}

func (m *MockVideoService) Download(ctx context.Context, videoURI string) (*video.EncodedArtifact, error) {
	args := m.Called(ctx, videoURI)
	art, _ := args.Get(0).(*video.EncodedArtifact)
	return art, args.Error(1)
}

func newRouter(svc inbound.VideoService) *gin.Engine {
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func pendingJob(id string, req video.GenerationRequest) *video.GenerationJob {
	job := video.NewJob(id, req, time.Now(), 10*time.Minute)
	return &job
}

func TestHandler_Generate(t *testing.T) {
	t.Run("text to video", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Submit", mock.Anything, mock.MatchedBy(func(r *video.GenerationRequest) bool {
			return r.Mode == video.ModeTextToVideo && r.Prompt == "a cat" &&
				r.Config.DurationSeconds == 6 && len(r.Media) == 0
		})).Return(pendingJob("models/veo/operations/op-1", video.GenerationRequest{Config: video.Config{DurationSeconds: 6}}), nil)

		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/text-to-video", map[string]any{
			"prompt": "a cat",
			"config": map[string]any{"durationSeconds": 6},
		})

		assert.Equal(t, http.StatusAccepted, w.Code)
		out := decode[inbound.VideoJobOutput](t, w)
		assert.Equal(t, "models/veo/operations/op-1", out.JobID)
		assert.Equal(t, "pending", out.Status)
		assert.Equal(t, "waiting for processing", out.Message)
		assert.Equal(t, 150, out.EstimatedSeconds)
		svc.AssertExpectations(t)
	})

	t.Run("media fields map to roles", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Submit", mock.Anything, mock.Anything).Return(pendingJob("op-2", video.GenerationRequest{}), nil)

		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/references", map[string]any{
			"prompt": "product",
			"referenceImages": []map[string]string{
				{"image": "data:image/png;base64,AAAA", "referenceType": "style"},
				{"image": "BBBB"},
			},
		})
		require.Equal(t, http.StatusAccepted, w.Code)

		req := svc.Calls[0].Arguments.Get(1).(*video.GenerationRequest)
		assert.Equal(t, video.ModeReferenceGuided, req.Mode)
		require.Len(t, req.Media, 2)
		assert.Equal(t, video.ReferenceStyle, req.Media[video.ReferenceRole(1)].Kind)
		assert.Equal(t, "BBBB", req.Media[video.ReferenceRole(2)].Encoded)
	})

	t.Run("extension carries declared duration", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Submit", mock.Anything, mock.Anything).Return(pendingJob("op-3", video.GenerationRequest{}), nil)

		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/extend", map[string]any{
			"prompt":               "keep going",
			"video":                "AAAA",
			"videoDurationSeconds": 30,
		})
		require.Equal(t, http.StatusAccepted, w.Code)

		req := svc.Calls[0].Arguments.Get(1).(*video.GenerationRequest)
		assert.Equal(t, 30.0, req.Media[video.RoleSourceVideo].DurationSeconds)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockVideoService)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/text-to-video", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}

func TestHandler_GenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"configuration", video.ErrConfiguration, http.StatusServiceUnavailable, "CONFIGURATION"},
		{"validation", &video.Error{Kind: video.KindValidation, Message: "prompt is required"}, http.StatusUnprocessableEntity, "VALIDATION"},
		{"conflict", video.ErrConfigConflict, http.StatusUnprocessableEntity, "CONFIG_CONFLICT"},
		{"reference count", video.ErrReferenceCount, http.StatusUnprocessableEntity, "REFERENCE_COUNT"},
		{"source too long", video.ErrSourceTooLong, http.StatusUnprocessableEntity, "SOURCE_TOO_LONG"},
		{"submission", &video.Error{Kind: video.KindSubmission, Message: "rejected", Err: errors.New("quota")}, http.StatusBadGateway, "SUBMISSION"},
		{"poll", video.ErrPoll, http.StatusBadGateway, "POLL"},
		{"job failed", video.ErrJobFailed, http.StatusUnprocessableEntity, "JOB_FAILED"},
		{"timed out", video.ErrTimedOut, http.StatusGatewayTimeout, "TIMED_OUT"},
		{"unknown kind", &video.Error{Kind: "other", Message: "odd"}, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockVideoService)
			svc.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/text-to-video", map[string]any{"prompt": "x"})

			assert.Equal(t, tt.wantStatus, w.Code)
			out := decode[map[string]map[string]any](t, w)
			assert.Equal(t, tt.wantCode, out["error"]["code"])
			assert.NotEmpty(t, out["error"]["message"])
			if tt.wantStatus != http.StatusInternalServerError {
				details, _ := out["error"]["details"].(map[string]any)
				assert.Equal(t, strings.ToLower(tt.wantCode), details["kind"])
			}
		})
	}
}

func TestHandler_Status(t *testing.T) {
	t.Run("path with slashes", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Status", mock.Anything, "models/veo/operations/op-1").Return(&video.JobStatus{
			JobID:    "models/veo/operations/op-1",
			State:    "completed",
			Message:  "video generated successfully",
			VideoURI: "https://files/v.mp4",
		}, nil)

		w := doJSON(newRouter(svc), http.MethodGet, "/api/v1/videos/models/veo/operations/op-1", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		out := decode[inbound.VideoStatusOutput](t, w)
		assert.Equal(t, "completed", out.Status)
		assert.Equal(t, "https://files/v.mp4", out.VideoURI)
	})

	t.Run("poll by body", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Status", mock.Anything, "op-1").Return(&video.JobStatus{JobID: "op-1", State: "timed_out", Error: "generation took too long"}, nil)

		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/poll", map[string]string{"operationId": "op-1"})

		assert.Equal(t, http.StatusOK, w.Code)
		out := decode[inbound.VideoStatusOutput](t, w)
		assert.Equal(t, "timed_out", out.Status)
		assert.Equal(t, "generation took too long", out.Error)
	})

	t.Run("unknown job", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Status", mock.Anything, "op-9").Return(nil, video.ErrJobNotFound)

		w := doJSON(newRouter(svc), http.MethodGet, "/api/v1/videos/op-9", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("poll without id", func(t *testing.T) {
		svc := new(MockVideoService)
		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/poll", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_Download(t *testing.T) {
	t.Run("returns data uri", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Download", mock.Anything, "https://files/v.mp4").Return(&video.EncodedArtifact{
			Bytes:      []byte("abc"),
			MimeType:   "video/mp4",
			ArchiveURL: "s3://videos/v.mp4",
		}, nil)

		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/download", map[string]string{"videoUri": "https://files/v.mp4"})

		assert.Equal(t, http.StatusOK, w.Code)
		out := decode[inbound.VideoDownloadOutput](t, w)
		assert.Equal(t, "data:video/mp4;base64,YWJj", out.VideoData)
		assert.Equal(t, 3, out.Size)
		assert.Equal(t, "s3://videos/v.mp4", out.ArchiveURL)
	})

	t.Run("empty artifact", func(t *testing.T) {
		svc := new(MockVideoService)
		svc.On("Download", mock.Anything, mock.Anything).Return(nil, video.ErrEmptyArtifact)

		w := doJSON(newRouter(svc), http.MethodPost, "/api/v1/videos/download", map[string]string{"videoUri": "u"})

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "EMPTY_ARTIFACT")
	})
}

func TestHandler_SubmitMiddleware(t *testing.T) {
	svc := new(MockVideoService)
	svc.On("Status", mock.Anything, "op-1").Return(&video.JobStatus{JobID: "op-1", State: "processing"}, nil)

	r := gin.New()
	blocked := func(c *gin.Context) { c.AbortWithStatus(http.StatusTooManyRequests) }
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), blocked)

	assert.Equal(t, http.StatusTooManyRequests, doJSON(r, http.MethodPost, "/api/v1/videos/text-to-video", map[string]any{"prompt": "x"}).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/api/v1/videos/op-1", nil).Code)
}
