package misc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"time"
)

// DefaultBackoff is the delay schedule between attempts; its length bounds the retries.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// ErrExhausted wraps the last error once every delay of the schedule was spent.
var ErrExhausted = errors.New("retries exhausted")

// Retry calls op, then once more after each delay while op fails with a retryable error.
// ctx ending during a wait wins over the op error.
func Retry(ctx context.Context, delays []time.Duration, retryable func(error) bool, op func() error) error {
	err := op()
	for _, d := range delays {
		if err == nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if !retryable(err) {
			return err
		}
		if werr := wait(ctx, d); werr != nil {
			return werr
		}
		err = op()
	}
	if err != nil && len(delays) > 0 && retryable(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, len(delays)+1, err)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsTransientNet reports whether err looks like a network failure worth retrying.
func IsTransientNet(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
