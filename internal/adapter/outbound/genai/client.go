package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/uniedit/videogen/internal/domain/video"
	"github.com/uniedit/videogen/internal/shared/metrics"
	"go.uber.org/zap"
)

const apiKeyHeader = "x-goog-api-key"

// FilteredCode is reported when the provider finished a job but withheld
// every sample.
const FilteredCode = "filtered"

// ErrCircuitOpen is returned while the provider breaker is open.
var ErrCircuitOpen = errors.New("provider temporarily unavailable")

// ErrForeignArtifactHost is returned when an artifact uri points outside the
// provider and its allowed artifact hosts.
var ErrForeignArtifactHost = errors.New("artifact host is not allowed")

// Config configures the client.
type Config struct {
	BaseURL          string
	FailureThreshold uint32
	BreakerInterval  time.Duration
	BreakerTimeout   time.Duration
	MaxArtifactBytes int64

	// ArtifactHosts lists extra hosts artifacts may be fetched from. The
	// base url host is always allowed.
	ArtifactHosts []string
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("provider returned %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the Gemini API video endpoints. It implements video.Provider.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	creds    video.CredentialSource
	breaker  *gobreaker.CircuitBreaker[[]byte]
	metrics  *metrics.Metrics
	maxBytes int64
	hosts    map[string]struct{}
	logger   *zap.Logger
}

// NewClient creates a provider client. m may be nil.
func NewClient(cfg Config, httpClient *http.Client, creds video.CredentialSource, m *metrics.Metrics, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid provider base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxArtifactBytes <= 0 {
		cfg.MaxArtifactBytes = video.DefaultMaxArtifactBytes
	}

	c := &Client{
		baseURL:  base,
		http:     httpClient,
		creds:    creds,
		metrics:  m,
		maxBytes: cfg.MaxArtifactBytes,
		hosts:    map[string]struct{}{strings.ToLower(base.Host): {}},
		logger:   logger.Named("genai"),
	}
	for _, h := range cfg.ArtifactHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			c.hosts[h] = struct{}{}
		}
	}

	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "genai",
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejections are the caller's problem, not the provider's health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if c.metrics != nil {
				c.metrics.SetBreakerState(name, int(to))
			}
		},
	})

	return c, nil
}

// CreateJob submits a generation request and returns the operation name.
func (c *Client) CreateJob(ctx context.Context, req *video.ProviderRequest) (string, error) {
	body, err := json.Marshal(buildPredictRequest(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("models", req.Model+":predictLongRunning").String()
	respBody, err := c.do(ctx, "create", http.MethodPost, endpoint, body, true)
	if err != nil {
		return "", err
	}

	var op operation
	if err := json.Unmarshal(respBody, &op); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if op.Name == "" {
		return "", errors.New("provider response carries no operation name")
	}
	return op.Name, nil
}

// CheckStatus fetches the operation and reports its progress.
func (c *Client) CheckStatus(ctx context.Context, jobID string) (*video.ProviderStatus, error) {
	endpoint := c.baseURL.JoinPath(jobID).String()
	respBody, err := c.do(ctx, "status", http.MethodGet, endpoint, nil, true)
	if err != nil {
		return nil, err
	}

	var op operation
	if err := json.Unmarshal(respBody, &op); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return toProviderStatus(&op), nil
}

// FetchArtifact downloads a generated artifact. Only the provider host and the
// configured artifact hosts are reachable, and the API key is only sent to the
// provider host.
func (c *Client) FetchArtifact(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid artifact uri %q", uri)
	}
	host := strings.ToLower(u.Host)
	if _, ok := c.hosts[host]; !ok {
		c.logger.Warn("rejected artifact fetch", zap.String("host", u.Host))
		return nil, fmt.Errorf("%w: %s", ErrForeignArtifactHost, u.Host)
	}
	return c.do(ctx, "fetch", http.MethodGet, uri, nil, host == strings.ToLower(c.baseURL.Host))
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, withKey bool) ([]byte, error) {
	var key string
	if withKey && c.creds != nil {
		k, err := c.creds.Credential()
		if err != nil {
			return nil, err
		}
		key = k
	}

	start := time.Now()
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, endpoint, body, key, op == "fetch")
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	if c.metrics != nil {
		c.metrics.RecordProviderRequest(op, requestStatus(err), time.Since(start))
	}
	if err != nil {
		c.logger.Debug("provider request failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return respBody, nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body []byte, key string, limited bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		httpReq.Header.Set(apiKeyHeader, key)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var src io.Reader = resp.Body
	if limited {
		src = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	respBody, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	if limited && int64(len(respBody)) > c.maxBytes {
		return nil, fmt.Errorf("artifact exceeds %d bytes", c.maxBytes)
	}
	return respBody, nil
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: http.StatusText(statusCode)}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
		apiErr.Status = env.Error.Status
	}
	return apiErr
}

func requestStatus(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &apiErr):
		return strconv.Itoa(apiErr.StatusCode)
	default:
		return "error"
	}
}

func buildPredictRequest(req *video.ProviderRequest) *predictRequest {
	inst := instance{
		Prompt:    req.Prompt,
		Image:     toInline(req.Image),
		LastFrame: toInline(req.LastFrame),
		Video:     toInline(req.Video),
	}
	for _, ref := range req.References {
		inst.ReferenceImages = append(inst.ReferenceImages, referenceImage{
			Image:         *toInline(&ref),
			ReferenceType: string(ref.Kind),
		})
	}

	return &predictRequest{
		Instances: []instance{inst},
		Parameters: parameters{
			AspectRatio:      string(req.Config.AspectRatio),
			Resolution:       string(req.Config.Resolution),
			DurationSeconds:  req.Config.DurationSeconds,
			NegativePrompt:   req.Config.NegativePrompt,
			PersonGeneration: string(req.Config.PersonPolicy),
		},
	}
}

func toInline(m *video.ProviderMedia) *inlineMedia {
	if m == nil {
		return nil
	}
	return &inlineMedia{
		BytesBase64Encoded: base64.StdEncoding.EncodeToString(m.Data),
		MimeType:           m.MimeType,
	}
}

func toProviderStatus(op *operation) *video.ProviderStatus {
	st := &video.ProviderStatus{Done: op.Done}
	if !op.Done {
		return st
	}
	if op.Error != nil {
		st.ErrorCode = strconv.Itoa(op.Error.Code)
		st.ErrorMessage = op.Error.Message
		if st.ErrorMessage == "" {
			st.ErrorMessage = "generation failed"
		}
		return st
	}
	if op.Response == nil || op.Response.GenerateVideoResponse == nil {
		return st
	}

	resp := op.Response.GenerateVideoResponse
	for _, sample := range resp.GeneratedSamples {
		if sample.Video.URI != "" {
			st.VideoURI = sample.Video.URI
			st.MimeType = sample.Video.MimeType
			return st
		}
	}
	if len(resp.RAIMediaFilteredReasons) > 0 {
		st.ErrorCode = FilteredCode
		st.ErrorMessage = strings.Join(resp.RAIMediaFilteredReasons, "; ")
	}
	return st
}

var _ video.Provider = (*Client)(nil)
