package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"github.com/njprem/ems_auth_backend/internal/repository/ports"
)

const (
	defaultStoreTimeout = 3 * time.Second
	defaultReadRetries  = 2
	defaultRetryBackoff = 50 * time.Millisecond
)

// storeCaller bounds every backing-store call with a timeout and turns
// connectivity failures into ErrStoreUnavailable. Only reads are retried.
type storeCaller struct {
	timeout     time.Duration
	readRetries uint64
	backoff     time.Duration
}

func newStoreCaller(timeout time.Duration) storeCaller {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return storeCaller{
		timeout:     timeout,
		readRetries: defaultReadRetries,
		backoff:     defaultRetryBackoff,
	}
}

func (c storeCaller) call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func (c storeCaller) read(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.readRetries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.call(ctx, fn)
		if errors.Is(err, ErrStoreUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrStoreUnavailable) && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, ports.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		pgconn.Timeout(err):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
