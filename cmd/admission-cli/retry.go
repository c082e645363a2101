package main

import (
	"context"
	"fmt"
	"time"

	"parent-portal/internal/admission/submission"
	apperrors "parent-portal/internal/common/errors"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/models"

	"github.com/google/uuid"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
// A nil retryable retries every error.
func retryWithBackoff(ctx context.Context, operation func() error, retryable func(error) bool, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// keyedSubmitter retries one submission under a single idempotency key.
type keyedSubmitter struct {
	client  *submission.Client
	retries int
	delay   time.Duration
	log     logger.Logger
}

func newKeyedSubmitter(client *submission.Client, retries int, log logger.Logger) *keyedSubmitter {
	if retries < 1 {
		retries = 1
	}
	return &keyedSubmitter{client: client, retries: retries, delay: 2 * time.Second, log: log}
}

func (k *keyedSubmitter) Submit(ctx context.Context, record models.ApplicationRecord) (*submission.Receipt, error) {
	key := uuid.NewString()
	var receipt *submission.Receipt
	err := retryWithBackoff(ctx, func() error {
		var err error
		receipt, err = k.client.SubmitWithKey(ctx, record, key)
		return err
	}, apperrors.IsRetryable, k.retries, k.delay, k.log, "submission")
	if err != nil {
		if se, ok := apperrors.AsStandard(err); ok {
			return nil, se
		}
		return nil, err
	}
	return receipt, nil
}
