package scope

// healthCheck probes the server with a cheap position read when the
// connection has been idle for at least the health check interval. A dead
// socket fails the probe, which flows through the regular command error path
// and wakes the reconnect supervisor; real traffic keeps resetting the idle
// clock so busy connections are never probed.
func (c *Client) healthCheck() bool {
	if !c.IsConnected() {
		return true
	}
	if c.idleFor() < c.cfg.HealthCheckInterval() {
		return true
	}

	c.metrics.incHealthProbeCount()

	if _, _, err := c.GetStageXY(); err != nil {
		c.logger.Warn("health probe failed", "error", err)
	} else {
		c.logger.Debug("health probe ok", "remote", c.cfg.Addr())
	}

	return true
}
