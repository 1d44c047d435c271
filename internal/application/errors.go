package application

import (
	stderrors "errors"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/resilience"
)

var (
	validationErrors = []error{
		domain.ErrInvalidSKU,
		domain.ErrInvalidDestination,
		domain.ErrInvalidWastePercentage,
		domain.ErrMissingMeasurement,
		domain.ErrUnknownMeasurement,
		domain.ErrWashGroupMismatch,
		domain.ErrInvalidQuantity,
		domain.ErrDestinationMismatch,
		domain.ErrItemMismatch,
		domain.ErrInvalidResolutionAction,
		domain.ErrBinTypeMismatch,
		domain.ErrItemNotInOrder,
	}

	transitionErrors = []error{
		domain.ErrInvalidItemTransition,
		domain.ErrInvalidStatusPair,
		domain.ErrInvalidRequestTransition,
		domain.ErrInvalidStepTransition,
		domain.ErrRequestTerminal,
		domain.ErrRequestNotRetryable,
		domain.ErrRetryLimitReached,
		domain.ErrInvalidOrderTransition,
		domain.ErrInvalidBatchTransition,
		domain.ErrInvalidMaterialTransition,
		domain.ErrProblemResolved,
		domain.ErrFinishingOpNotRequired,
		domain.ErrFinishingOpDone,
		domain.ErrFinishingIncomplete,
	}

	unavailableErrors = []error{
		domain.ErrItemUnavailable,
		domain.ErrMaterialUnavailable,
		domain.ErrBatchNotReady,
		domain.ErrBatchNotInProgress,
		domain.ErrOrderNotReady,
		domain.ErrBinInactive,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

// toAppError maps domain failures onto the error codes callers see.
// Unknown failures keep their cause but expose only a generic message.
func toAppError(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, resilience.ErrRetriesExhausted):
		return errors.ErrTransactionFailure("transaction").Wrap(err)
	case matchesAny(err, validationErrors):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrMetadataMismatch):
		return errors.ErrInvalidRequest(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrBinFull):
		return errors.ErrResourceExhausted(err.Error()).Wrap(err)
	case matchesAny(err, unavailableErrors):
		return errors.ErrUnavailable(err.Error()).Wrap(err)
	case matchesAny(err, transitionErrors):
		return errors.ErrInvalidTransition(err.Error()).Wrap(err)
	default:
		return errors.ErrServiceError("").Wrap(err)
	}
}
