package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/metrics"
	"github.com/wms-platform/production-service/pkg/resilience"
)

// TxPolicy configures withTransaction.
type TxPolicy struct {
	Retry   *resilience.RetryConfig
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// DefaultTxPolicy retries transient failures 3 times with exponential backoff
// starting at 100ms.
func DefaultTxPolicy(logger *logging.Logger, m *metrics.Metrics) TxPolicy {
	return TxPolicy{Retry: resilience.DefaultRetryConfig(), Logger: logger, Metrics: m}
}

// withTransaction runs fn in one store transaction, retrying the whole
// transaction on transient failures. Exhausted retries surface as
// TRANSACTION_FAILURE; other errors are returned unchanged.
func withTransaction(ctx context.Context, tx domain.Transactor, policy TxPolicy, operation string, fn func(ctx context.Context) error) error {
	cfg := *policy.Retry
	cfg.RetryableErrors = domain.IsTransient
	cfg.OnRetry = func(attempt int, err error) {
		policy.Metrics.RecordTransactionRetry(operation)
		policy.Logger.WithContext(ctx).Warn("Retrying transaction",
			"operation", operation, "attempt", attempt, "error", err.Error())
	}

	err := resilience.Retry(ctx, &cfg, func() error {
		return tx.WithTransaction(ctx, fn)
	})
	if err != nil && stderrors.Is(err, resilience.ErrRetriesExhausted) {
		policy.Metrics.RecordTransactionFailure(operation)
		policy.Logger.WithContext(ctx).WithError(err).Error("Transaction failed", "operation", operation)
		return errors.ErrTransactionFailure(operation).Wrap(err)
	}
	return err
}

// logAction records an audit event. Failures are logged and swallowed.
func logAction(ctx context.Context, audit AuditLogger, logger *logging.Logger, event AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := audit.LogEvent(ctx, event); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Failed to log audit event",
			"type", event.Type, "requestId", event.RequestID)
	}
}

// notify sends a notification. Failures are logged and swallowed.
func notify(ctx context.Context, notifier Notifier, logger *logging.Logger, n Notification) {
	if err := notifier.CreateNotification(ctx, n); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Failed to create notification", "type", n.Type)
	}
}
