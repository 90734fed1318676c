package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MichaelSNelson/go-scope/logger"
)

func TestNewClientConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewClientConfig("127.0.0.1", 7777)
	require.NoError(err)

	require.Equal("127.0.0.1", cfg.Host())
	require.Equal(7777, cfg.Port())
	require.Equal("127.0.0.1:7777", cfg.Addr())
	require.Equal(DefaultConnectTimeout, cfg.ConnectTimeout())
	require.Equal(DefaultReadTimeout, cfg.ReadTimeout())
	require.Equal(DefaultWriteTimeout, cfg.WriteTimeout())
	require.Equal(DefaultCloseTimeout, cfg.CloseTimeout())
	require.Equal(DefaultMaxReconnectAttempts, cfg.MaxReconnectAttempts())
	require.Equal(DefaultReconnectDelay, cfg.ReconnectDelay())
	require.True(cfg.AutoHealthCheck())
	require.Equal(DefaultHealthCheckInterval, cfg.HealthCheckInterval())
	require.Zero(cfg.AcquireWriteDelay())
	require.Equal(DefaultMonitorFailureTolerance, cfg.MonitorFailureTolerance())
	require.Nil(cfg.ConnStateHandler())
	require.NotNil(cfg.GetLogger())
}

func TestNewClientConfigEndpoint(t *testing.T) {
	require := require.New(t)

	_, err := NewClientConfig("127.0.0.1", -1)
	require.Error(err)

	_, err = NewClientConfig("127.0.0.1", 65536)
	require.Error(err)

	_, err = NewClientConfig("no-such-host-il8x.invalid", 80)
	require.Error(err)

	cfg, err := NewClientConfig("localhost", 80)
	require.NoError(err)
	require.Equal("localhost", cfg.Host())
	require.Equal("localhost:80", cfg.Addr())
}

func TestConnOptions(t *testing.T) {
	require := require.New(t)

	handler := func(prev, curr ConnState) {}

	cfg, err := NewClientConfig("127.0.0.1", 0,
		WithConnectTimeout(time.Second),
		WithReadTimeout(2*time.Second),
		WithWriteTimeout(time.Second),
		WithCloseTimeout(4*time.Second),
		WithMaxReconnectAttempts(5),
		WithReconnectDelay(time.Second),
		WithAutoHealthCheck(false),
		WithHealthCheckInterval(10*time.Second),
		WithAcquireWriteDelay(100*time.Millisecond),
		WithMonitorFailureTolerance(5),
		WithConnStateHandler(handler),
		WithLogger(logger.GetLogger()),
	)
	require.NoError(err)

	require.Equal(time.Second, cfg.ConnectTimeout())
	require.Equal(2*time.Second, cfg.ReadTimeout())
	require.Equal(time.Second, cfg.WriteTimeout())
	require.Equal(4*time.Second, cfg.CloseTimeout())
	require.Equal(5, cfg.MaxReconnectAttempts())
	require.Equal(time.Second, cfg.ReconnectDelay())
	require.False(cfg.AutoHealthCheck())
	require.Equal(10*time.Second, cfg.HealthCheckInterval())
	require.Equal(100*time.Millisecond, cfg.AcquireWriteDelay())
	require.Equal(5, cfg.MonitorFailureTolerance())
	require.NotNil(cfg.ConnStateHandler())
}

func TestConnOptionValidation(t *testing.T) {
	invalid := map[string]ConnOption{
		"connectTimeout":          WithConnectTimeout(0),
		"readTimeout":             WithReadTimeout(-time.Second),
		"writeTimeout":            WithWriteTimeout(0),
		"closeTimeout":            WithCloseTimeout(0),
		"maxReconnectAttempts":    WithMaxReconnectAttempts(-1),
		"reconnectDelay":          WithReconnectDelay(0),
		"healthCheckInterval":     WithHealthCheckInterval(0),
		"acquireWriteDelay":       WithAcquireWriteDelay(-time.Millisecond),
		"monitorFailureTolerance": WithMonitorFailureTolerance(0),
		"logger":                  WithLogger(nil),
	}

	for name, opt := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := NewClientConfig("127.0.0.1", 0, opt)
			require.Error(t, err)
		})
	}
}
