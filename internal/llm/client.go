// Package llm provides the completion-service clients used by the router
// and the responders. Callers depend only on the Client interface; provider
// selection happens once at startup through the factory.
package llm

import (
	"context"
	"errors"
)

// Client is the minimal contract the orchestration core needs from a
// completion service.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Sentinel failures of the completion service. Every provider normalizes
// its transport errors to one of these so callers can branch with errors.Is.
var (
	// ErrUnavailable covers connection failures, 5xx responses, and
	// exhausted retries.
	ErrUnavailable = errors.New("completion service unavailable")

	// ErrTimeout marks a call that exceeded its deadline.
	ErrTimeout = errors.New("completion service timeout")
)

// normalizeErr maps a transport error to the sentinel taxonomy.
func normalizeErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return errors.Join(ErrUnavailable, err)
}
