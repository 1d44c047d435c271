package workflows

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/production-service/internal/activities"
	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
)

// fakeOrders scripts the coordinator. ProcessOrder errors are returned in
// order; once exhausted the order is processed. Statuses are returned by
// successive Order calls, the last one repeating.
type fakeOrders struct {
	mu        sync.Mutex
	errs      []error
	commitErr bool
	processed bool
	calls     int
	statuses  []string
}

func (f *fakeOrders) ProcessOrder(_ context.Context, cmd application.ProcessOrderCommand) (*application.ProcessOrderResultDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.processed {
		return nil, errors.ErrInvalidOrderStatus(cmd.OrderID, "PROCESSING")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if f.commitErr {
			// The write committed but the reply was lost.
			f.processed = true
		}
		return nil, err
	}
	f.processed = true
	return &application.ProcessOrderResultDTO{
		Order: application.OrderDTO{ID: cmd.OrderID, Status: "PROCESSING", UnitCount: 2},
		Requests: []application.RequestDTO{
			{ID: "REQ-1"},
			{ID: "REQ-2"},
		},
	}, nil
}

func (f *fakeOrders) Order(_ context.Context, id string) (*application.OrderDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := "PROCESSING"
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	return &application.OrderDTO{ID: id, Status: status, UnitCount: 2}, nil
}

func (f *fakeOrders) processCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newEnv(orders *fakeOrders) *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(OrderFulfillmentWorkflow)
	env.RegisterActivity(activities.NewProductionActivities(orders, logging.Discard()))
	return env
}

func input() OrderFulfillmentInput {
	return OrderFulfillmentInput{
		OrderID:      "ORDER-1",
		OperatorID:   "op-1",
		PollInterval: 10 * time.Minute,
		Deadline:     time.Hour,
	}
}

func TestOrderFulfillmentWorkflow_Packed(t *testing.T) {
	orders := &fakeOrders{statuses: []string{"PROCESSING", "READY_FOR_PACKING", "PACKED"}}
	env := newEnv(orders)

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, input())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, StatusPacked, result.Status)
	assert.Equal(t, "PACKED", result.OrderStatus)
	assert.Equal(t, 2, result.UnitCount)
	assert.Equal(t, []string{"REQ-1", "REQ-2"}, result.RequestIDs)
	assert.Equal(t, 1, orders.processCalls())
}

func TestOrderFulfillmentWorkflow_PermanentRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "Unmatched SKU", err: errors.ErrSKUNotFound("ST-99-R-32-RAW"), code: errors.CodeSKUNotFound},
		{name: "Order not new", err: errors.ErrInvalidOrderStatus("ORDER-1", "PACKED"), code: errors.CodeInvalidOrderStatus},
		{name: "Unknown order", err: errors.ErrNotFoundWithID("order", "ORDER-1"), code: errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &fakeOrders{errs: []error{tt.err}}
			env := newEnv(orders)

			env.ExecuteWorkflow(OrderFulfillmentWorkflow, input())
			require.True(t, env.IsWorkflowCompleted())

			err := env.GetWorkflowError()
			require.Error(t, err)
			var appErr *temporal.ApplicationError
			require.True(t, stderrors.As(err, &appErr))
			assert.Equal(t, tt.code, appErr.Type())
			assert.True(t, appErr.NonRetryable())
			assert.Equal(t, 1, orders.processCalls(), "permanent failures are not retried")
		})
	}
}

func TestOrderFulfillmentWorkflow_RetriesTransientFailure(t *testing.T) {
	orders := &fakeOrders{
		errs:     []error{errors.ErrTransactionFailure("process_order")},
		statuses: []string{"PACKED"},
	}
	env := newEnv(orders)

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, input())
	require.NoError(t, env.GetWorkflowError())

	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, StatusPacked, result.Status)
	assert.Equal(t, 2, orders.processCalls())
}

func TestOrderFulfillmentWorkflow_RetryAfterLostReply(t *testing.T) {
	orders := &fakeOrders{
		errs:      []error{errors.ErrTransactionFailure("process_order")},
		commitErr: true,
		statuses:  []string{"PROCESSING", "PACKED"},
	}
	env := newEnv(orders)

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, input())
	require.NoError(t, env.GetWorkflowError())

	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, StatusPacked, result.Status)
	assert.Equal(t, 2, orders.processCalls())
	assert.Empty(t, result.RequestIDs, "the seeded requests belong to the first attempt")
}

func TestOrderFulfillmentWorkflow_Deadline(t *testing.T) {
	orders := &fakeOrders{statuses: []string{"PROCESSING"}}
	env := newEnv(orders)

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, input())
	require.NoError(t, env.GetWorkflowError())

	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, StatusTimedOut, result.Status)
	assert.Equal(t, "PROCESSING", result.OrderStatus)
}

func TestOrderFulfillmentWorkflow_Cancelled(t *testing.T) {
	orders := &fakeOrders{statuses: []string{"CANCELLED"}}
	env := newEnv(orders)

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, input())
	require.NoError(t, env.GetWorkflowError())

	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, "order cancelled", result.Error)
}
