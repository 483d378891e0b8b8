// Package oracle defines the boundary to the external data service that
// reports how many records are currently live.
//
// A CountOracle either answers with a non-negative count or fails; every
// failure, including timeouts and panics inside an implementation, surfaces
// as ErrUnavailable so callers can treat it as "cannot check" rather than
// as a violation.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single count query.
const DefaultTimeout = 15 * time.Second

// ErrUnavailable is returned when the oracle cannot produce a count.
var ErrUnavailable = errors.New("oracle unavailable")

// CountOracle reports the number of live records.
type CountOracle interface {
	Count(ctx context.Context) (int64, error)
}

// Func adapts a function to CountOracle.
type Func func(ctx context.Context) (int64, error)

// Count implements CountOracle.
func (f Func) Count(ctx context.Context) (int64, error) { return f(ctx) }

// Static returns an oracle that always answers n.
func Static(n int64) CountOracle {
	return Func(func(context.Context) (int64, error) { return n, nil })
}

// Unavailable returns an oracle that always fails with cause.
func Unavailable(cause error) CountOracle {
	if cause == nil {
		cause = ErrUnavailable
	}
	return Func(func(context.Context) (int64, error) { return 0, cause })
}

// Unavailablef wraps a formatted message with ErrUnavailable.
func Unavailablef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

type guarded struct {
	next    CountOracle
	timeout time.Duration
}

// WithTimeout guards o so that a query never takes longer than timeout,
// never panics and only ever fails with an error wrapping ErrUnavailable.
//
// A non-positive timeout selects DefaultTimeout. If o ignores context
// cancellation, its goroutine is abandoned and finishes in the background.
func WithTimeout(o CountOracle, timeout time.Duration) CountOracle {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &guarded{next: o, timeout: timeout}
}

type answer struct {
	n   int64
	err error
}

func (g *guarded) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: Unavailablef("panic: %v", r)}
			}
		}()
		n, err := g.next.Count(ctx)
		ch <- answer{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case a := <-ch:
		if a.err != nil {
			if errors.Is(a.err, ErrUnavailable) {
				return 0, a.err
			}
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, a.err)
		}
		if a.n < 0 {
			return 0, Unavailablef("negative count %d", a.n)
		}
		return a.n, nil
	}
}

// RowCount reads column from a result row decoded from JSON or SQL and
// returns it as a count.
func RowCount(row map[string]any, column string) (int64, error) {
	v, ok := row[column]
	if !ok {
		return 0, Unavailablef("column %q not in result", column)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	}
	return 0, Unavailablef("column %q is not an integer: %v", column, v)
}
