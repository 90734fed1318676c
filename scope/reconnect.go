package scope

import (
	"errors"

	"github.com/MichaelSNelson/go-scope/internal/pool"
)

// scheduleReconnect hands a connection outage to the background supervisor.
// At most one supervisor runs at a time; a second outage while one is
// running is already covered by it.
func (c *Client) scheduleReconnect() {
	if c.cfg.MaxReconnectAttempts() <= 0 || c.state.get() == ShuttingDown {
		return
	}
	if !c.reconnectRunning.CompareAndSwap(false, true) {
		return
	}

	gen := c.reconnectGen.Load()
	err := c.taskMgr.Start("reconnect", func() bool {
		c.reconnectLoop(gen)
		return false
	})
	if err != nil {
		c.reconnectRunning.Store(false)
	}
}

// reconnectLoop retries the connection up to the configured attempt budget
// with a fixed delay before each attempt. A newer generation or a shutdown
// aborts the loop; commands issued meanwhile dial on their own and simply
// make the loop's next check a no-op.
func (c *Client) reconnectLoop(gen uint64) {
	defer c.reconnectRunning.Store(false)

	maxAttempts := c.cfg.MaxReconnectAttempts()
	delay := c.cfg.ReconnectDelay()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		timer := pool.GetTimer(delay)
		select {
		case <-c.ctx.Done():
			pool.PutTimer(timer)
			return
		case <-timer.C:
		}
		pool.PutTimer(timer)

		if c.reconnectGen.Load() != gen || c.state.get() == ShuttingDown {
			return
		}
		if c.IsConnected() {
			return
		}

		c.metrics.incReconnectAttempts()
		c.logger.Info("reconnect attempt", "attempt", attempt, "max", maxAttempts)

		err := c.Connect()
		if err == nil {
			c.logger.Info("reconnected", "attempt", attempt)
			return
		}
		if errors.Is(err, ErrClientClosed) {
			return
		}

		c.logger.Warn("reconnect attempt failed", "attempt", attempt, "max", maxAttempts, "error", err)
	}

	c.logger.Error("reconnect attempts exhausted", "attempts", maxAttempts,
		"remote", c.cfg.Addr())
}
