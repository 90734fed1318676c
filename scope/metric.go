package scope

import "sync/atomic"

// ClientMetrics counts client activity. All fields are atomic, safe to read
// concurrently, and can feed a prometheus CounterFunc or GaugeFunc directly.
type ClientMetrics struct {
	// CmdSendCount counts commands completed on the wire.
	CmdSendCount atomic.Uint64
	// CmdErrCount counts commands that failed before or during I/O.
	CmdErrCount atomic.Uint64
	// ConnectCount counts successful connection establishments.
	ConnectCount atomic.Uint64
	// ConnectErrCount counts failed dial attempts.
	ConnectErrCount atomic.Uint64
	// ReconnectAttempts gauges reconnect attempts since the last successful
	// connect, zero while the connection is healthy.
	ReconnectAttempts atomic.Uint32
	// HealthProbeCount counts idle connection probes sent by the health
	// monitor.
	HealthProbeCount atomic.Uint64
	// MonitorPollCount counts successful status polls made by acquisition
	// monitoring.
	MonitorPollCount atomic.Uint64
}

func (m *ClientMetrics) incCmdSendCount() {
	m.CmdSendCount.Add(1)
}

func (m *ClientMetrics) incCmdErrCount() {
	m.CmdErrCount.Add(1)
}

func (m *ClientMetrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *ClientMetrics) incConnectErrCount() {
	m.ConnectErrCount.Add(1)
}

func (m *ClientMetrics) incReconnectAttempts() {
	m.ReconnectAttempts.Add(1)
}

func (m *ClientMetrics) resetReconnectAttempts() {
	m.ReconnectAttempts.Store(0)
}

func (m *ClientMetrics) incHealthProbeCount() {
	m.HealthProbeCount.Add(1)
}

func (m *ClientMetrics) incMonitorPollCount() {
	m.MonitorPollCount.Add(1)
}
