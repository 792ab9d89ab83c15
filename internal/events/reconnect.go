package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	applog "financeflow/internal/log"
)

// exponentialBackoff doubles the wait per attempt, capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Second << attempt
	if backoff > 30*time.Second || backoff <= 0 {
		return 30 * time.Second
	}
	return backoff
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ConsumeWithReconnect runs the consume loop and re-dials with exponential
// backoff when the connection drops. It returns only when the context is
// canceled or a non-connection error occurs.
func ConsumeWithReconnect(ctx context.Context, url, exchangeName, queueName string, handler func(*ExpenseEvent) error) error {
	for attempt := 0; ; attempt++ {
		client, err := NewClient(url, exchangeName, queueName)
		if err != nil {
			if !isConnectionError(err) {
				return err
			}
		} else {
			attempt = 0
			err = client.ConsumeExpenseEvents(ctx, handler)
			client.Close()
			if err == nil || ctx.Err() != nil {
				return ctx.Err()
			}
			if !isConnectionError(err) && err.Error() != "message channel closed" {
				return err
			}
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			applog.FieldError, err,
			"wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
