package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/production-service/internal/activities"
	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/temporal"
)

// Workflow result statuses
const (
	StatusPacked   = "packed"
	StatusRejected = "rejected"
	StatusTimedOut = "timed_out"
)

// OrderFulfillmentInput is the input of the order fulfillment workflow
type OrderFulfillmentInput struct {
	OrderID    string `json:"orderId"`
	OperatorID string `json:"operatorId"`

	// PollInterval and Deadline bound the wait for the floor to pack the
	// order. Zero values take the defaults.
	PollInterval time.Duration `json:"pollInterval,omitempty"`
	Deadline     time.Duration `json:"deadline,omitempty"`
}

// OrderFulfillmentResult is the outcome of the order fulfillment workflow
type OrderFulfillmentResult struct {
	OrderID     string   `json:"orderId"`
	Status      string   `json:"status"`
	OrderStatus string   `json:"orderStatus"`
	UnitCount   int      `json:"unitCount"`
	RequestIDs  []string `json:"requestIds,omitempty"`
	Error       string   `json:"error,omitempty"`
}

const (
	defaultPollInterval = 5 * time.Minute
	defaultDeadline     = 72 * time.Hour
)

// OrderFulfillmentWorkflow processes an order once, then follows it until the
// floor packs it or the deadline passes.
func OrderFulfillmentWorkflow(ctx workflow.Context, input OrderFulfillmentInput) (*OrderFulfillmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting order fulfillment workflow", "orderId", input.OrderID)

	pollInterval := input.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	deadline := input.Deadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}

	policy := temporal.DefaultRetryPolicy()
	policy.NonRetryableErrorTypes = activities.NonRetryableErrorTypes()
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         policy.ToTemporal(),
	})

	result := &OrderFulfillmentResult{OrderID: input.OrderID}

	var processed activities.ProcessOrderOutput
	err := workflow.ExecuteActivity(ctx, activities.ProcessOrderName, activities.ProcessOrderInput{
		OrderID:    input.OrderID,
		OperatorID: input.OperatorID,
	}).Get(ctx, &processed)
	if err != nil {
		result.Status = StatusRejected
		result.Error = err.Error()
		return result, fmt.Errorf("failed to process order %s: %w", input.OrderID, err)
	}
	result.OrderStatus = processed.Status
	result.UnitCount = processed.UnitCount
	result.RequestIDs = processed.RequestIDs
	logger.Info("Order processed", "orderId", input.OrderID, "units", processed.UnitCount)

	expires := workflow.Now(ctx).Add(deadline)
	for !packed(result.OrderStatus) {
		if !workflow.Now(ctx).Before(expires) {
			logger.Warn("Order not packed before deadline", "orderId", input.OrderID, "status", result.OrderStatus)
			result.Status = StatusTimedOut
			return result, nil
		}
		if err := workflow.Sleep(ctx, pollInterval); err != nil {
			return result, err
		}

		var status string
		if err := workflow.ExecuteActivity(ctx, activities.GetOrderStatusName, input.OrderID).Get(ctx, &status); err != nil {
			logger.Warn("Failed to read order status", "orderId", input.OrderID, "error", err)
			continue
		}
		if status == string(domain.OrderStatusCancelled) {
			result.OrderStatus = status
			result.Status = StatusRejected
			result.Error = "order cancelled"
			return result, nil
		}
		result.OrderStatus = status
	}

	result.Status = StatusPacked
	logger.Info("Order fulfillment completed", "orderId", input.OrderID, "status", result.OrderStatus)
	return result, nil
}

func packed(status string) bool {
	return status == string(domain.OrderStatusPacked) || status == string(domain.OrderStatusShipped)
}
