// Package video implements asynchronous video generation: request validation,
// job submission, status polling and artifact materialization.
package video

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mode selects which inputs a generation request carries.
type Mode string

const (
	ModeTextToVideo     Mode = "text_to_video"
	ModeImageToVideo    Mode = "image_to_video"
	ModeInterpolation   Mode = "interpolation"
	ModeReferenceGuided Mode = "reference_guided"
	ModeExtension       Mode = "extension"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid reports whether m is a known generation mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeTextToVideo, ModeImageToVideo, ModeInterpolation, ModeReferenceGuided, ModeExtension:
		return true
	default:
		return false
	}
}

// Role names a media input slot.
type Role string

const (
	RolePrimary     Role = "primary"
	RoleFirstFrame  Role = "first_frame"
	RoleLastFrame   Role = "last_frame"
	RoleSourceVideo Role = "source_video"

	referenceRolePrefix = "reference_"
)

// ReferenceRole returns the role of the n-th reference image (1-based).
func ReferenceRole(n int) Role {
	return Role(referenceRolePrefix + strconv.Itoa(n))
}

// IsReference reports whether the role names a reference image slot.
func (r Role) IsReference() bool {
	return strings.HasPrefix(string(r), referenceRolePrefix)
}

// referenceIndex returns the 1-based index of a reference role, or 0.
func (r Role) referenceIndex() int {
	if !r.IsReference() {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(r), referenceRolePrefix))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// requiredRoles returns the fixed role set of a mode. Reference-guided
// requests have a variable role set and are checked separately.
func requiredRoles(mode Mode) []Role {
	switch mode {
	case ModeImageToVideo:
		return []Role{RolePrimary}
	case ModeInterpolation:
		return []Role{RoleFirstFrame, RoleLastFrame}
	case ModeExtension:
		return []Role{RoleSourceVideo}
	default:
		return nil
	}
}

// ReferenceKind tags how a reference image guides the generation.
type ReferenceKind string

const (
	ReferenceAsset ReferenceKind = "asset"
	ReferenceStyle ReferenceKind = "style"
)

// AspectRatio of the generated video.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Resolution of the generated video.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// PersonPolicy controls whether people may appear in the output.
type PersonPolicy string

const (
	PersonAllowAll   PersonPolicy = "allow_all"
	PersonAllowAdult PersonPolicy = "allow_adult"
	PersonDontAllow  PersonPolicy = "dont_allow"
)

// Models known to accept video generation requests.
const (
	ModelVeo31     = "veo-3.1-generate-preview"
	ModelVeo31Fast = "veo-3.1-fast-generate-preview"
	ModelVeo3      = "veo-3.0-generate-001"
	ModelVeo3Fast  = "veo-3.0-fast-generate-001"

	DefaultModel = ModelVeo31
)

var knownModels = map[string]bool{
	ModelVeo31:     true,
	ModelVeo31Fast: true,
	ModelVeo3:      true,
	ModelVeo3Fast:  true,
}

// Config holds caller-adjustable generation parameters. Zero values are unset.
type Config struct {
	AspectRatio     AspectRatio  `json:"aspect_ratio,omitempty"`
	Resolution      Resolution   `json:"resolution,omitempty"`
	DurationSeconds int          `json:"duration_seconds,omitempty"`
	NegativePrompt  string       `json:"negative_prompt,omitempty"`
	PersonPolicy    PersonPolicy `json:"person_policy,omitempty"`
}

// MediaInput is a binary input for one role. The payload is carried either
// as raw bytes in Data or as text in Encoded (a data URI or bare base64).
type MediaInput struct {
	Data     []byte
	Encoded  string
	MimeType string

	// Kind is only meaningful for reference images.
	Kind ReferenceKind

	// DurationSeconds of a source video, when the caller already knows it.
	DurationSeconds float64
}

// GenerationRequest describes a single video generation.
type GenerationRequest struct {
	Mode   Mode
	Prompt string
	Model  string
	Media  map[Role]MediaInput
	Config Config
}

// roles returns the request's media roles in a stable order.
func (r *GenerationRequest) roles() []Role {
	roles := make([]Role, 0, len(r.Media))
	for role := range r.Media {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// referenceRoles returns the request's reference roles ordered by index.
func (r *GenerationRequest) referenceRoles() []Role {
	var refs []Role
	for role := range r.Media {
		if role.IsReference() {
			refs = append(refs, role)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].referenceIndex() < refs[j].referenceIndex() })
	return refs
}

// EstimatedGenerationSeconds returns a rough wall-clock estimate for a job.
func EstimatedGenerationSeconds(durationSeconds int) int {
	return 60 + 15*durationSeconds
}

// StatusMessage returns a human-readable description of a job state.
func StatusMessage(state string) string {
	switch state {
	case string(StatusPending):
		return "waiting for processing"
	case string(StatusProcessing):
		return "generation in progress"
	case string(StatusCompleted):
		return "video generated successfully"
	case string(StatusFailed):
		return "video generation failed"
	case string(OutcomeTimedOut):
		return "generation took too long"
	default:
		return state
	}
}

func (c Config) String() string {
	return fmt.Sprintf("%s/%s/%ds/%s", c.AspectRatio, c.Resolution, c.DurationSeconds, c.PersonPolicy)
}
