package scope

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/MichaelSNelson/go-scope/logger"
)

// Default tuning values, matched to the stock control server firmware.
const (
	DefaultConnectTimeout = 3 * time.Second // TCP dial timeout
	DefaultReadTimeout    = 5 * time.Second // Per-response read deadline
	DefaultWriteTimeout   = 3 * time.Second // Per-command write deadline
	DefaultCloseTimeout   = 3 * time.Second // Shutdown grace period

	DefaultMaxReconnectAttempts = 3               // Attempts per outage
	DefaultReconnectDelay       = 5 * time.Second // Fixed delay between attempts

	DefaultHealthCheckInterval = 30 * time.Second // Idle probe interval

	DefaultMonitorPollInterval     = 500 * time.Millisecond
	DefaultMonitorFailureTolerance = 3 // Consecutive poll failures before giving up
)

// ClientConfig holds the endpoint and tuning knobs of a Client.
// Build it with NewClientConfig; the zero value is not usable.
type ClientConfig struct {
	host string
	port int

	// TCP-level timeouts.
	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	closeTimeout   time.Duration

	// Reconnect supervisor. Zero attempts disables automatic reconnection.
	maxReconnectAttempts int
	reconnectDelay       time.Duration

	// Idle connection probing.
	autoHealthCheck     bool
	healthCheckInterval time.Duration

	// acquireWriteDelay pauses between the acquire token and its payload.
	// Zero writes both in one segment.
	acquireWriteDelay time.Duration

	// monitorFailureTolerance is the number of consecutive poll failures
	// MonitorAcquisition absorbs before giving up.
	monitorFailureTolerance int

	connStateHandler ConnStateHandler
	logger           logger.Logger
}

// NewClientConfig creates a client configuration for the control server at
// host:port.
//
// opts are functional options applied in order; see With* functions.
func NewClientConfig(host string, port int, opts ...ConnOption) (*ClientConfig, error) {
	cfg := &ClientConfig{
		connectTimeout:          DefaultConnectTimeout,
		readTimeout:             DefaultReadTimeout,
		writeTimeout:            DefaultWriteTimeout,
		closeTimeout:            DefaultCloseTimeout,
		maxReconnectAttempts:    DefaultMaxReconnectAttempts,
		reconnectDelay:          DefaultReconnectDelay,
		autoHealthCheck:         true,
		healthCheckInterval:     DefaultHealthCheckInterval,
		monitorFailureTolerance: DefaultMonitorFailureTolerance,
		logger:                  logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ClientConfig) setHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("scope: invalid host %q", host)
}

func (cfg *ClientConfig) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("scope: port %d out of range [0, 65535]", port)
	}
	cfg.port = port

	return nil
}

// --- Getters ---

// Host returns the configured host address.
func (cfg *ClientConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ClientConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ClientConfig) Addr() string { return fmt.Sprintf("%s:%d", cfg.host, cfg.port) }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *ClientConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// ReadTimeout returns the per-response read deadline.
func (cfg *ClientConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// WriteTimeout returns the per-command write deadline.
func (cfg *ClientConfig) WriteTimeout() time.Duration { return cfg.writeTimeout }

// CloseTimeout returns the shutdown grace period.
func (cfg *ClientConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// MaxReconnectAttempts returns the reconnect attempt budget per outage.
// Zero means automatic reconnection is disabled.
func (cfg *ClientConfig) MaxReconnectAttempts() int { return cfg.maxReconnectAttempts }

// ReconnectDelay returns the fixed delay between reconnect attempts.
func (cfg *ClientConfig) ReconnectDelay() time.Duration { return cfg.reconnectDelay }

// AutoHealthCheck returns whether the idle connection probe is enabled.
func (cfg *ClientConfig) AutoHealthCheck() bool { return cfg.autoHealthCheck }

// HealthCheckInterval returns the idle probe interval.
func (cfg *ClientConfig) HealthCheckInterval() time.Duration { return cfg.healthCheckInterval }

// AcquireWriteDelay returns the pause between the acquire token and its
// payload. Zero means token and payload go out in one segment.
func (cfg *ClientConfig) AcquireWriteDelay() time.Duration { return cfg.acquireWriteDelay }

// MonitorFailureTolerance returns the number of consecutive poll failures
// acquisition monitoring absorbs before giving up.
func (cfg *ClientConfig) MonitorFailureTolerance() int { return cfg.monitorFailureTolerance }

// ConnStateHandler returns the configured state transition handler, nil when
// none is set.
func (cfg *ClientConfig) ConnStateHandler() ConnStateHandler { return cfg.connStateHandler }

// GetLogger returns the configured logger.
func (cfg *ClientConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ClientConfig.
type ConnOption interface {
	apply(*ClientConfig) error
}

type connOptFunc func(*ClientConfig) error

func (f connOptFunc) apply(cfg *ClientConfig) error { return f(cfg) }

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d <= 0 {
			return errors.New("scope: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithReadTimeout sets the read deadline applied to each response.
func WithReadTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d <= 0 {
			return errors.New("scope: read timeout must be positive")
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the write deadline applied to each command.
func WithWriteTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d <= 0 {
			return errors.New("scope: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for background tasks and the
// socket to wind down.
func WithCloseTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d <= 0 {
			return errors.New("scope: close timeout must be positive")
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithMaxReconnectAttempts sets the reconnect attempt budget per outage.
// Zero disables automatic reconnection.
func WithMaxReconnectAttempts(n int) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if n < 0 {
			return fmt.Errorf("scope: reconnect attempts %d must not be negative", n)
		}
		cfg.maxReconnectAttempts = n

		return nil
	})
}

// WithReconnectDelay sets the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d <= 0 {
			return errors.New("scope: reconnect delay must be positive")
		}
		cfg.reconnectDelay = d

		return nil
	})
}

// WithAutoHealthCheck enables or disables the idle connection probe.
// Enabled by default.
func WithAutoHealthCheck(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		cfg.autoHealthCheck = enabled

		return nil
	})
}

// WithHealthCheckInterval sets the idle probe interval.
func WithHealthCheckInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d <= 0 {
			return errors.New("scope: health check interval must be positive")
		}
		cfg.healthCheckInterval = d

		return nil
	})
}

// WithAcquireWriteDelay inserts a pause between the acquire token and its
// payload, for acquisition engines that parse the two in separate reads.
// Zero, the default, writes both in one segment.
func WithAcquireWriteDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if d < 0 {
			return errors.New("scope: acquire write delay must not be negative")
		}
		cfg.acquireWriteDelay = d

		return nil
	})
}

// WithMonitorFailureTolerance sets the number of consecutive poll failures
// MonitorAcquisition absorbs before giving up.
func WithMonitorFailureTolerance(n int) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if n < 1 {
			return fmt.Errorf("scope: monitor failure tolerance %d must be >= 1", n)
		}
		cfg.monitorFailureTolerance = n

		return nil
	})
}

// WithConnStateHandler registers a handler for connection state transitions.
func WithConnStateHandler(handler ConnStateHandler) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		cfg.connStateHandler = handler

		return nil
	})
}

// WithLogger sets the logger for the client.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ClientConfig) error {
		if l == nil {
			return errors.New("scope: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
