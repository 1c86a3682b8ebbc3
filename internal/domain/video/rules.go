package video

import (
	"fmt"
	"strings"
)

// Request defaults applied before mode overrides.
const (
	DefaultAspectRatio     = AspectLandscape
	DefaultResolution      = Resolution720p
	DefaultDurationSeconds = 8
	DefaultPersonPolicy    = PersonAllowAdult
)

var allowedDurations = map[int]bool{4: true, 6: true, 8: true}

// ValidateConfig checks an effective configuration for combinations the
// provider cannot produce.
func ValidateConfig(cfg Config) error {
	if cfg.Resolution == Resolution1080p {
		if cfg.DurationSeconds != 8 {
			return newError(KindConfigConflict,
				fmt.Sprintf("1080p output requires an 8 second duration, got %ds", cfg.DurationSeconds), nil)
		}
		if cfg.AspectRatio != AspectLandscape {
			return newError(KindConfigConflict,
				fmt.Sprintf("1080p output requires a 16:9 aspect ratio, got %s", cfg.AspectRatio), nil)
		}
	}
	return nil
}

// CheckEnums rejects values outside the allowed sets. Unset fields pass.
func CheckEnums(cfg Config) error {
	switch cfg.AspectRatio {
	case "", AspectLandscape, AspectPortrait:
	default:
		return validationError(fmt.Sprintf("unsupported aspect ratio %q", cfg.AspectRatio))
	}
	switch cfg.Resolution {
	case "", Resolution720p, Resolution1080p:
	default:
		return validationError(fmt.Sprintf("unsupported resolution %q", cfg.Resolution))
	}
	if cfg.DurationSeconds != 0 && !allowedDurations[cfg.DurationSeconds] {
		return validationError(fmt.Sprintf("unsupported duration %ds, use 4, 6 or 8", cfg.DurationSeconds))
	}
	switch cfg.PersonPolicy {
	case "", PersonAllowAll, PersonAllowAdult, PersonDontAllow:
	default:
		return validationError(fmt.Sprintf("unsupported person policy %q", cfg.PersonPolicy))
	}
	return nil
}

// Normalize returns the effective configuration for a mode: defaults fill
// unset fields, then mode overrides replace whatever the caller asked for.
func Normalize(mode Mode, cfg Config) Config {
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = DefaultAspectRatio
	}
	if cfg.Resolution == "" {
		cfg.Resolution = DefaultResolution
	}
	if cfg.DurationSeconds == 0 {
		cfg.DurationSeconds = DefaultDurationSeconds
	}
	if cfg.PersonPolicy == "" {
		cfg.PersonPolicy = DefaultPersonPolicy
	}
	cfg.NegativePrompt = strings.TrimSpace(cfg.NegativePrompt)

	switch mode {
	case ModeInterpolation:
		cfg.DurationSeconds = 8
	case ModeReferenceGuided:
		cfg.AspectRatio = AspectLandscape
		cfg.DurationSeconds = 8
	case ModeExtension:
		cfg.Resolution = Resolution720p
		cfg.DurationSeconds = 8
	}
	if mode != ModeTextToVideo {
		cfg.PersonPolicy = PersonAllowAdult
	}
	return cfg
}

// CheckReferences validates the number of reference images.
func CheckReferences(n int) error {
	if n < 1 || n > MaxReferenceImages {
		return newError(KindReferenceCount,
			fmt.Sprintf("between 1 and %d reference images are required, got %d", MaxReferenceImages, n), nil)
	}
	return nil
}

// CheckSourceDuration validates the length of a video to be extended.
func CheckSourceDuration(seconds float64) error {
	if seconds > MaxSourceSeconds {
		return newError(KindSourceTooLong,
			fmt.Sprintf("source video is %.1fs long, at most %ds can be extended", seconds, MaxSourceSeconds), nil)
	}
	return nil
}

// CheckModel resolves the model name, defaulting when unset.
func CheckModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return DefaultModel, nil
	}
	if !knownModels[model] {
		return "", validationError(fmt.Sprintf("unknown model %q", model))
	}
	return model, nil
}

// ValidateRequest checks the mode, the prompt and the media role set.
func ValidateRequest(req *GenerationRequest) error {
	if req == nil {
		return validationError("request is required")
	}
	if !req.Mode.IsValid() {
		return validationError(fmt.Sprintf("unsupported mode %q", req.Mode))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return validationError("prompt is required")
	}
	if req.Mode == ModeReferenceGuided {
		return checkReferenceRoles(req)
	}

	required := requiredRoles(req.Mode)
	for _, role := range required {
		if _, ok := req.Media[role]; !ok {
			return validationError(fmt.Sprintf("%s requires %s media", req.Mode, role))
		}
	}
	if len(req.Media) != len(required) {
		for _, role := range req.roles() {
			if !containsRole(required, role) {
				return validationError(fmt.Sprintf("%s does not accept %s media", req.Mode, role))
			}
		}
	}
	return nil
}

func checkReferenceRoles(req *GenerationRequest) error {
	refs := req.referenceRoles()
	for _, role := range req.roles() {
		if !role.IsReference() {
			return validationError(fmt.Sprintf("%s does not accept %s media", req.Mode, role))
		}
	}
	if err := CheckReferences(len(refs)); err != nil {
		return err
	}
	for i, role := range refs {
		if role.referenceIndex() != i+1 {
			return validationError(fmt.Sprintf("reference images must be numbered 1 to %d, got %s", len(refs), role))
		}
		switch req.Media[role].Kind {
		case "", ReferenceAsset, ReferenceStyle:
		default:
			return validationError(fmt.Sprintf("unsupported reference kind %q", req.Media[role].Kind))
		}
	}
	return nil
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
