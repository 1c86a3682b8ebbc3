package video

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Materializer downloads completed artifacts. Concurrent requests for the
// same location share a single download; nothing is kept afterwards.
type Materializer struct {
	fetcher  ArtifactFetcher
	group    singleflight.Group
	settings *Settings
	observer Observer
	logger   *zap.Logger
}

// NewMaterializer creates a new materializer.
func NewMaterializer(fetcher ArtifactFetcher, settings *Settings, observer Observer, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Materializer{
		fetcher:  fetcher,
		settings: settings.withDefaults(),
		observer: observer,
		logger:   logger.Named("video-materializer"),
	}
}

// Materialize fetches the artifact behind ref exactly once. Failures are not
// retried.
func (m *Materializer) Materialize(ctx context.Context, ref ArtifactRef) (*EncodedArtifact, error) {
	if ref.RemoteURI == "" {
		return nil, newError(KindMaterialization, "artifact has no location", nil)
	}

	// The shared download outlives any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(ref.RemoteURI, func() (any, error) {
		return m.fetch(fetchCtx, ref)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		art := *res.Val.(*EncodedArtifact)
		return &art, nil
	}
}

func (m *Materializer) fetch(ctx context.Context, ref ArtifactRef) (*EncodedArtifact, error) {
	log := m.logger.With(zap.String("video_uri", ref.RemoteURI))

	data, err := m.fetcher.FetchArtifact(ctx, ref.RemoteURI)
	m.observer.ArtifactFetched(len(data), err)
	if err != nil {
		log.Error("artifact fetch failed", zap.Error(err))
		return nil, newError(KindMaterialization, ErrMaterialization.Message, err)
	}
	if len(data) == 0 {
		log.Warn("artifact is empty")
		return nil, newError(KindEmptyArtifact, "generated video is empty", nil)
	}
	if int64(len(data)) > m.settings.MaxArtifactBytes {
		return nil, newError(KindMaterialization,
			fmt.Sprintf("generated video is %d bytes, the limit is %d", len(data), m.settings.MaxArtifactBytes), nil)
	}
	if detected := mimetype.Detect(data); isTextual(detected) {
		log.Warn("artifact is not a video", zap.String("detected", detected.String()))
		return nil, newError(KindEmptyArtifact,
			fmt.Sprintf("generated video is malformed (got %s)", detected.String()), nil)
	}

	mime := ref.MimeType
	if mime == "" {
		mime = defaultVideoMime
	}
	log.Debug("artifact fetched", zap.Int("size", len(data)), zap.String("mime_type", mime))
	return &EncodedArtifact{Bytes: data, MimeType: mime}, nil
}

// isTextual reports whether a payload looks like an error page or document
// rather than media.
func isTextual(mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") || mt.Is("application/json") || mt.Is("text/html") {
			return true
		}
	}
	return false
}
