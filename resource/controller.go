package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for a verification run.
type Config struct {
	// MaxConcurrentChecks is the maximum number of verifiers running at once.
	// If 0, defaults to 1.
	MaxConcurrentChecks int64

	// IOLimitBytesPerSec caps artifact read throughput while fingerprinting,
	// so a cron run does not starve the host serving the curriculum.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller bounds concurrency and IO throughput.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	checkSem  *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 1
	}

	c := &Controller{
		cfg:      cfg,
		checkSem: semaphore.NewWeighted(cfg.MaxConcurrentChecks),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MaxConcurrentChecks returns the number of verifier slots, or 0 for a nil
// Controller.
func (c *Controller) MaxConcurrentChecks() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MaxConcurrentChecks
}

// AcquireCheck reserves a verifier slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireCheck(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.checkSem.Acquire(ctx, 1)
}

// TryAcquireCheck reserves a verifier slot without blocking.
func (c *Controller) TryAcquireCheck() bool {
	if c == nil {
		return true
	}
	return c.checkSem.TryAcquire(1)
}

// ReleaseCheck releases a verifier slot.
func (c *Controller) ReleaseCheck() {
	if c == nil {
		return
	}
	c.checkSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the limiter's burst are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// IOLimited reports whether reads are throttled.
func (c *Controller) IOLimited() bool {
	return c != nil && c.ioLimiter != nil
}
