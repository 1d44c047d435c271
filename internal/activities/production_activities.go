package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
)

// Activity names registered with the worker.
const (
	ProcessOrderName   = "ProcessOrder"
	GetOrderStatusName = "GetOrderStatus"
)

// nonRetryable lists the error codes a retry cannot fix.
var nonRetryable = []string{
	errors.CodeSKUNotFound,
	errors.CodeInvalidOrderStatus,
	errors.CodeNotFound,
	errors.CodeValidation,
	errors.CodeInvalidRequest,
	errors.CodeInvalidTransition,
}

// NonRetryableErrorTypes is the retry policy counterpart of the activity errors.
func NonRetryableErrorTypes() []string {
	return append([]string(nil), nonRetryable...)
}

// ProcessOrderInput is the input of the ProcessOrder activity
type ProcessOrderInput struct {
	OrderID    string `json:"orderId"`
	OperatorID string `json:"operatorId"`
}

// ProcessOrderOutput is the outcome of the ProcessOrder activity
type ProcessOrderOutput struct {
	OrderID    string   `json:"orderId"`
	Status     string   `json:"status"`
	UnitCount  int      `json:"unitCount"`
	RequestIDs []string `json:"requestIds"`
	// AlreadyProcessed is set when an earlier attempt committed.
	AlreadyProcessed bool `json:"alreadyProcessed"`
}

// OrderReader reads orders for the activities
type OrderReader interface {
	ProcessOrder(ctx context.Context, cmd application.ProcessOrderCommand) (*application.ProcessOrderResultDTO, error)
	Order(ctx context.Context, id string) (*application.OrderDTO, error)
}

// ProductionActivities contains activities for the order fulfillment workflow
type ProductionActivities struct {
	coordinator OrderReader
	logger      *logging.Logger
}

// NewProductionActivities creates a new ProductionActivities instance
func NewProductionActivities(coordinator OrderReader, logger *logging.Logger) *ProductionActivities {
	return &ProductionActivities{
		coordinator: coordinator,
		logger:      logger.WithComponent("activities"),
	}
}

// ProcessOrder matches, assigns and bins every unit of the order. A retry
// after a committed attempt reports the order as already processed.
func (a *ProductionActivities) ProcessOrder(ctx context.Context, input ProcessOrderInput) (*ProcessOrderOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Processing order", "orderId", input.OrderID)

	result, err := a.coordinator.ProcessOrder(ctx, application.ProcessOrderCommand{
		OrderID:    input.OrderID,
		OperatorID: input.OperatorID,
	})
	if err == nil {
		out := &ProcessOrderOutput{
			OrderID:   result.Order.ID,
			Status:    result.Order.Status,
			UnitCount: result.Order.UnitCount,
		}
		for _, r := range result.Requests {
			out.RequestIDs = append(out.RequestIDs, r.ID)
		}
		logger.Info("Order processed", "orderId", input.OrderID, "units", out.UnitCount)
		return out, nil
	}

	if errors.HasCode(err, errors.CodeInvalidOrderStatus) && activity.GetInfo(ctx).Attempt > 1 {
		order, lookupErr := a.coordinator.Order(ctx, input.OrderID)
		if lookupErr == nil && processedStatus(order.Status) {
			logger.Info("Order was processed by an earlier attempt", "orderId", input.OrderID, "status", order.Status)
			return &ProcessOrderOutput{
				OrderID:          order.ID,
				Status:           order.Status,
				UnitCount:        order.UnitCount,
				AlreadyProcessed: true,
			}, nil
		}
	}

	a.logger.WithContext(ctx).WithError(err).Warn("ProcessOrder activity failed", "orderId", input.OrderID)
	return nil, toActivityError(err)
}

// GetOrderStatus returns the current status of an order
func (a *ProductionActivities) GetOrderStatus(ctx context.Context, orderID string) (string, error) {
	order, err := a.coordinator.Order(ctx, orderID)
	if err != nil {
		return "", toActivityError(err)
	}
	return order.Status, nil
}

func processedStatus(status string) bool {
	switch domain.OrderStatus(status) {
	case domain.OrderStatusProcessing, domain.OrderStatusReadyForPacking, domain.OrderStatusPacked, domain.OrderStatusShipped:
		return true
	}
	return false
}

// toActivityError carries the error code as the application error type so
// the retry policy can tell permanent failures from transient ones.
func toActivityError(err error) error {
	appErr := errors.FromError(err)
	msg := fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	for _, code := range nonRetryable {
		if appErr.Code == code {
			return temporal.NewNonRetryableApplicationError(msg, appErr.Code, err)
		}
	}
	return temporal.NewApplicationError(msg, appErr.Code, err)
}
