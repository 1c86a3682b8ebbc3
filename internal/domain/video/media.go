package video

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/abema/go-mp4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"
)

const (
	defaultImageMime = "image/png"
	defaultVideoMime = "video/mp4"
)

var (
	imageMimes = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true}
	videoMimes = map[string]bool{"video/mp4": true, "video/webm": true}
)

// EncodedArtifact is a materialized artifact.
type EncodedArtifact struct {
	Bytes    []byte
	MimeType string

	// ArchiveURL is set when the artifact was copied to long-term storage.
	ArchiveURL string
}

// DataURI returns the artifact as a self-describing data URI.
func (a *EncodedArtifact) DataURI() string {
	return dataurl.New(a.Bytes, a.MimeType).String()
}

// Size returns the payload size in bytes.
func (a *EncodedArtifact) Size() int {
	return len(a.Bytes)
}

// DecodeMedia turns a media input into raw bytes tagged with a MIME type.
func DecodeMedia(role Role, in MediaInput) (ProviderMedia, error) {
	data, envelopeMime, err := decodePayload(in)
	if err != nil {
		return ProviderMedia{}, validationError(fmt.Sprintf("%s media: %v", role, err))
	}
	if len(data) == 0 {
		return ProviderMedia{}, validationError(fmt.Sprintf("%s media is empty", role))
	}

	isVideo := role == RoleSourceVideo
	accepted, fallback, limit := imageMimes, defaultImageMime, MaxImageBytes
	if isVideo {
		accepted, fallback, limit = videoMimes, defaultVideoMime, MaxVideoBytes
	}

	if len(data) > limit {
		return ProviderMedia{}, validationError(
			fmt.Sprintf("%s media is %d bytes, the limit is %d", role, len(data), limit))
	}

	mime := baseMime(in.MimeType)
	if mime == "" {
		mime = baseMime(envelopeMime)
	}
	if mime != "" {
		if !accepted[mime] {
			return ProviderMedia{}, validationError(fmt.Sprintf("%s media type %s is not supported", role, mime))
		}
	} else if sniffed := baseMime(mimetype.Detect(data).String()); accepted[sniffed] {
		mime = sniffed
	} else {
		mime = fallback
	}

	kind := in.Kind
	if role.IsReference() && kind == "" {
		kind = ReferenceAsset
	}
	return ProviderMedia{Data: data, MimeType: mime, Kind: kind}, nil
}

func decodePayload(in MediaInput) ([]byte, string, error) {
	if len(in.Data) > 0 {
		return in.Data, "", nil
	}
	s := strings.TrimSpace(in.Encoded)
	if s == "" {
		return nil, "", nil
	}
	if strings.HasPrefix(s, "data:") {
		du, err := dataurl.DecodeString(s)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data URI: %w", err)
		}
		return du.Data, du.MediaType.ContentType(), nil
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("malformed base64 payload: %w", err)
	}
	return data, "", nil
}

func baseMime(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// SourceDuration returns the length of a source video in seconds, using the
// caller-supplied value when present and probing the MP4 container otherwise.
func SourceDuration(in MediaInput, media ProviderMedia) (float64, error) {
	if in.DurationSeconds > 0 {
		return in.DurationSeconds, nil
	}
	if media.MimeType != "video/mp4" {
		return 0, validationError(fmt.Sprintf("cannot determine the duration of %s source video", media.MimeType))
	}
	info, err := mp4.Probe(bytes.NewReader(media.Data))
	if err != nil {
		return 0, newError(KindValidation, "source video is not a readable MP4 file", err)
	}
	if info.Timescale == 0 {
		return 0, validationError("source video has no duration")
	}
	return float64(info.Duration) / float64(info.Timescale), nil
}
