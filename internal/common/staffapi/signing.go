package staffapi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PollOptions bounds WaitForSignature. Override, when set, is consulted
// before every status request; returning true ends polling as if signing
// had completed. OnPoll observes each status read.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Override    func(ctx context.Context) (bool, error)
	OnPoll      func(attempt int, status *SigningStatus, err error)
}

// WaitForSignature polls the signature status at a fixed interval until it
// is terminal, the override fires, attempts run out or ctx is done.
//
// Temporary API failures use up an attempt and polling continues; any
// other failure is returned at once. On exhaustion the last status seen is
// returned with ErrSigningTimeout.
func (c *Client) WaitForSignature(ctx context.Context, applicationID string, opts PollOptions) (*SigningStatus, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var last *SigningStatus
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		if opts.Override != nil {
			overridden, err := opts.Override(ctx)
			if err != nil {
				return last, fmt.Errorf("failed to check signing override: %w", err)
			}
			if overridden {
				out := SigningStatus{Status: "completed", Overridden: true}
				if last != nil {
					out.SignURL = last.SignURL
				}
				return &out, nil
			}
		}

		status, err := c.SignatureStatus(ctx, applicationID)
		if opts.OnPoll != nil {
			opts.OnPoll(attempt, status, err)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return last, err
			}
		} else {
			last = status
			if status.Terminal() {
				return status, nil
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}

		timer.Reset(opts.Interval)
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}
	}

	return last, fmt.Errorf("%w after %d attempts", ErrSigningTimeout, opts.MaxAttempts)
}
