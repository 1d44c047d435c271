package domain

import "errors"

// Payload and value errors
var (
	ErrInvalidSKU              = errors.New("invalid SKU")
	ErrInvalidDestination      = errors.New("invalid destination code")
	ErrInvalidWastePercentage  = errors.New("waste percentage must be between 0 and 100")
	ErrMissingMeasurement      = errors.New("measurement missing for size chart dimension")
	ErrUnknownMeasurement      = errors.New("measurement has no size chart dimension")
	ErrWashGroupMismatch       = errors.New("item wash group does not match bin wash group")
	ErrBinTypeMismatch         = errors.New("bin type does not match the operation")
	ErrInvalidQuantity         = errors.New("quantity must be positive")
	ErrMetadataMismatch        = errors.New("metadata does not match request type")
	ErrFinishingOpNotRequired  = errors.New("finishing operation is not required for this request")
	ErrFinishingOpDone         = errors.New("finishing operation already completed")
	ErrFinishingIncomplete     = errors.New("finishing operations still pending")
	ErrItemNotInOrder          = errors.New("item is not assigned to the order")
	ErrDestinationMismatch     = errors.New("scanned destination differs from the expected destination")
	ErrItemMismatch            = errors.New("scanned item differs from the request item")
	ErrInvalidResolutionAction = errors.New("invalid resolution action")
)

// State machine errors
var (
	ErrInvalidItemTransition     = errors.New("invalid item status transition")
	ErrInvalidStatusPair         = errors.New("invalid item status combination")
	ErrInvalidRequestTransition  = errors.New("invalid request status transition")
	ErrInvalidStepTransition     = errors.New("step not allowed from current step")
	ErrRequestTerminal           = errors.New("request is in a terminal state")
	ErrRequestNotRetryable       = errors.New("request type does not support retry")
	ErrRetryLimitReached         = errors.New("request retry limit reached")
	ErrInvalidOrderTransition    = errors.New("invalid order status transition")
	ErrInvalidBatchTransition    = errors.New("invalid batch status transition")
	ErrInvalidMaterialTransition = errors.New("invalid material status transition")
	ErrProblemResolved           = errors.New("problem already resolved")
)

// Availability errors
var (
	ErrItemUnavailable     = errors.New("item is not available")
	ErrMaterialUnavailable = errors.New("material is not available")
	ErrBatchNotReady       = errors.New("batch is not ready")
	ErrBatchNotInProgress  = errors.New("batch is not in progress")
	ErrOrderNotReady       = errors.New("order is not ready for packing")
	ErrBinInactive         = errors.New("bin is not active")
	ErrBinFull             = errors.New("bin capacity exhausted")
)

// Persistence errors
var (
	// ErrConcurrentModification means a versioned update lost a race. The whole
	// transaction is retried.
	ErrConcurrentModification = errors.New("entity modified concurrently")
	// ErrTransientTransaction marks store failures safe to retry.
	ErrTransientTransaction = errors.New("transient transaction failure")
)

// IsTransient reports whether err is safe to retry as a whole transaction.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrTransientTransaction)
}
