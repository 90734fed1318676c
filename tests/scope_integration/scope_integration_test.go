package scopeintegration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MichaelSNelson/go-scope/logger"
	"github.com/MichaelSNelson/go-scope/mockscope"
	"github.com/MichaelSNelson/go-scope/scope"
)

func TestMain(m *testing.M) {
	if level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logger.ErrorLevel)
	}

	os.Exit(m.Run())
}

func startServerOn(t *testing.T, port int) *mockscope.Server {
	t.Helper()

	srv := mockscope.NewServer(logger.GetLogger())
	require.NoError(t, srv.Start("127.0.0.1", port))
	t.Cleanup(func() { _ = srv.Stop() })

	return srv
}

func newClient(t *testing.T, port int, opts ...scope.ConnOption) *scope.Client {
	t.Helper()

	base := []scope.ConnOption{
		scope.WithAutoHealthCheck(false),
		scope.WithConnectTimeout(time.Second),
		scope.WithReadTimeout(time.Second),
		scope.WithWriteTimeout(time.Second),
		scope.WithCloseTimeout(time.Second),
		scope.WithReconnectDelay(50 * time.Millisecond),
		scope.WithMaxReconnectAttempts(5),
	}

	cfg, err := scope.NewClientConfig("127.0.0.1", port, append(base, opts...)...)
	require.NoError(t, err)

	client, err := scope.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// TestServerRestart walks the full outage story: a positioned stage, a
// server restart on the same port, one surfaced error, a transparent
// background reconnect and a working client afterwards.
func TestServerRestart(t *testing.T) {
	require := require.New(t)

	srv := startServerOn(t, 0)
	port := srv.Port()
	client := newClient(t, port)

	require.NoError(client.Connect())
	require.NoError(client.MoveStageXY(100.5, -42.25))

	x, y, err := client.GetStageXY()
	require.NoError(err)
	require.Equal(100.5, x)
	require.Equal(-42.25, y)

	require.NoError(srv.Stop())
	startServerOn(t, port)

	// The command caught by the outage fails; nothing is retried for it.
	_, _, err = client.GetStageXY()
	require.Error(err)
	require.False(client.IsConnected())

	require.Eventually(client.IsConnected, 3*time.Second, 20*time.Millisecond)

	// The fresh server starts from home position.
	x, y, err = client.GetStageXY()
	require.NoError(err)
	require.Zero(x)
	require.Zero(y)

	require.NoError(client.MoveStageXY(7.5, 8.25))
	x, y, err = client.GetStageXY()
	require.NoError(err)
	require.Equal(7.5, x)
	require.Equal(8.25, y)

	require.EqualValues(2, client.Metrics().ConnectCount.Load())
}

// TestReconnectExhaustion checks the supervisor gives up after its attempt
// budget and that a later command still dials on demand.
func TestReconnectExhaustion(t *testing.T) {
	require := require.New(t)

	srv := startServerOn(t, 0)
	port := srv.Port()
	client := newClient(t, port, scope.WithMaxReconnectAttempts(2))

	require.NoError(client.Connect())
	require.NoError(srv.Stop())

	_, _, err := client.GetStageXY()
	require.Error(err)

	require.Eventually(func() bool {
		return client.Metrics().ReconnectAttempts.Load() == 2
	}, 3*time.Second, 10*time.Millisecond)

	// Give the last attempt time to fail, then confirm nobody reconnected.
	time.Sleep(100 * time.Millisecond)
	require.False(client.IsConnected())

	startServerOn(t, port)

	_, _, err = client.GetStageXY()
	require.NoError(err)
	require.True(client.IsConnected())
	require.Zero(client.Metrics().ReconnectAttempts.Load())
}

// TestTwoClientsOneInstrument checks that independent clients observe the
// same instrument state.
func TestTwoClientsOneInstrument(t *testing.T) {
	require := require.New(t)

	srv := startServerOn(t, 0)
	mover := newClient(t, srv.Port())
	watcher := newClient(t, srv.Port())

	require.NoError(mover.MoveStageXY(5.5, 6.5))

	// Reading back on the mover's own connection pins the move as applied
	// before the watcher looks.
	x, y, err := mover.GetStageXY()
	require.NoError(err)
	require.Equal(5.5, x)
	require.Equal(6.5, y)

	x, y, err = watcher.GetStageXY()
	require.NoError(err)
	require.Equal(5.5, x)
	require.Equal(6.5, y)
}
