package scope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MichaelSNelson/go-scope/internal/pool"
	"github.com/MichaelSNelson/go-scope/protocol"
)

// ProgressFunc receives progress updates while an acquisition runs. It is
// invoked synchronously between polls; a slow callback stretches the
// effective poll interval.
type ProgressFunc func(protocol.AcquisitionProgress)

// MonitorAcquisition polls the acquisition state until the engine reaches a
// terminal state and returns that state. While the engine reports Running,
// each poll also reads the progress counters and passes them to onProgress
// when one is set.
//
// pollInterval falls back to DefaultMonitorPollInterval when zero or
// negative. A positive timeout bounds the whole watch and trips
// ErrMonitorTimeout; zero watches without a deadline. Transient poll
// failures are absorbed up to the configured failure tolerance, counted
// consecutively, so a reconnect cycle mid-acquisition does not kill the
// watch.
func (c *Client) MonitorAcquisition(ctx context.Context, pollInterval, timeout time.Duration, onProgress ProgressFunc) (protocol.AcquisitionState, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultMonitorPollInterval
	}

	// A nil channel never delivers, so no timeout means no deadline case.
	var deadline <-chan time.Time
	if timeout > 0 {
		deadlineTimer := pool.GetTimer(timeout)
		defer pool.PutTimer(deadlineTimer)
		deadline = deadlineTimer.C
	}

	c.logger.Debug("monitoring acquisition", "pollInterval", pollInterval, "timeout", timeout)

	tolerance := c.cfg.MonitorFailureTolerance()
	failures := 0
	last := protocol.StateIdle
	seen := false

	for {
		state, err := c.GetAcquisitionStatus()
		if err != nil {
			if errors.Is(err, ErrClientClosed) {
				return last, err
			}

			failures++
			c.logger.Warn("status poll failed", "failures", failures, "tolerance", tolerance, "error", err)
			if failures >= tolerance {
				return last, fmt.Errorf("scope: monitor aborted after %d consecutive poll failures: %w", failures, err)
			}
		} else {
			failures = 0
			c.metrics.incMonitorPollCount()

			if !seen || state != last {
				c.logger.Info("acquisition state", "state", state.String())
				seen = true
			}
			last = state

			if state == protocol.StateRunning && onProgress != nil {
				// Progress is advisory; a failed read skips the callback
				// and the next poll tries again.
				if prog, perr := c.GetAcquisitionProgress(); perr == nil {
					onProgress(prog)
				} else if errors.Is(perr, ErrClientClosed) {
					return last, perr
				} else {
					c.logger.Warn("progress poll failed", "error", perr)
				}
			}

			if state.Terminal() {
				c.logger.Info("acquisition finished", "state", state.String())
				return state, nil
			}
		}

		timer := pool.GetTimer(pollInterval)
		select {
		case <-ctx.Done():
			pool.PutTimer(timer)
			return last, ctx.Err()
		case <-c.ctx.Done():
			pool.PutTimer(timer)
			return last, ErrClientClosed
		case <-deadline:
			pool.PutTimer(timer)
			return last, ErrMonitorTimeout
		case <-timer.C:
			pool.PutTimer(timer)
		}
	}
}
