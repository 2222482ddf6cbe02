package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/processiq/internal/domain"
)

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(ctx context.Context, err error) error {
	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error400BadRequest(valErr.Error())
	}

	if errors.Is(err, domain.ErrUnauthenticated) {
		return huma.Error401Unauthorized("authentication required")
	}

	switch {
	case errors.Is(err, domain.ErrProcessNotFound):
		return huma.Error404NotFound("process not found")
	case errors.Is(err, domain.ErrPhaseNotFound):
		return huma.Error404NotFound("phase not found")
	case errors.Is(err, domain.ErrFeedbackNotFound):
		return huma.Error404NotFound("feedback not found")
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var (
		finalizeErr *domain.RequiresFinalizationError
		terminalErr *domain.NoTerminalPhaseError
		dupErr      *domain.TerminalPhaseConflictError
		versionErr  *domain.VersionConflictError
	)
	switch {
	case errors.As(err, &finalizeErr):
		return huma.Error409Conflict(finalizeErr.Error())
	case errors.As(err, &terminalErr):
		return huma.Error409Conflict(terminalErr.Error())
	case errors.As(err, &dupErr):
		return huma.Error409Conflict(dupErr.Error())
	case errors.As(err, &versionErr):
		return huma.Error409Conflict(versionErr.Error())
	}

	slog.ErrorContext(ctx, "request failed", "error", err)
	return huma.Error500InternalServerError("internal server error")
}
