package videohttp

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/videogen/internal/domain/video"
	apperrors "github.com/uniedit/videogen/internal/shared/errors"
)

// kindError builds the HTTP error for each domain error kind. The response
// code is always the upper-cased kind.
var kindError = map[video.Kind]func(verr *video.Error) *apperrors.AppError{
	video.KindConfiguration:   unavailable,
	video.KindValidation:      invalid,
	video.KindConfigConflict:  invalid,
	video.KindReferenceCount:  invalid,
	video.KindSourceTooLong:   invalid,
	video.KindJobFailed:       invalid,
	video.KindSubmission:      upstream,
	video.KindPoll:            upstream,
	video.KindMaterialization: upstream,
	video.KindEmptyArtifact:   upstream,
	video.KindTimedOut:        timedOut,
}

func unavailable(verr *video.Error) *apperrors.AppError {
	return apperrors.ServiceUnavailable(verr.Message)
}

func invalid(verr *video.Error) *apperrors.AppError {
	return apperrors.ValidationError(verr.Message)
}

func upstream(verr *video.Error) *apperrors.AppError {
	return apperrors.BadGateway(verr.Message, verr)
}

func timedOut(verr *video.Error) *apperrors.AppError {
	return apperrors.Timeout(verr.Message)
}

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, video.ErrJobNotFound) {
		return apperrors.NotFound("job")
	}

	var verr *video.Error
	if errors.As(err, &verr) {
		build, ok := kindError[verr.Kind]
		if !ok {
			return apperrors.Internal(verr.Message, err)
		}
		appErr = build(verr)
		appErr.Code = strings.ToUpper(string(verr.Kind))
		return appErr.WithDetails(map[string]any{"kind": string(verr.Kind)})
	}

	return apperrors.Internal("internal server error", err)
}

func badRequest(err error) *apperrors.AppError {
	appErr := apperrors.BadRequest("malformed request body")
	if err != nil {
		appErr.WithDetails(map[string]any{"reason": err.Error()})
	}
	return appErr
}

func respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}
