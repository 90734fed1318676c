package mockscope

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MichaelSNelson/go-scope/logger"
	"github.com/MichaelSNelson/go-scope/protocol"
)

func TestMain(m *testing.M) {
	if level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logger.ErrorLevel)
	}

	os.Exit(m.Run())
}

func startServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()

	srv := NewServer(nil)
	require.NoError(t, srv.Start("127.0.0.1", 0))
	t.Cleanup(func() { _ = srv.Stop() })

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, conn
}

func roundTrip(t *testing.T, conn net.Conn, req []byte, respSize int) []byte {
	t.Helper()

	_, err := conn.Write(req)
	require.NoError(t, err)

	if respSize == 0 {
		return nil
	}

	resp := make([]byte, respSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(conn, resp)
	require.NoError(t, err)

	return resp
}

func TestRawWirePositions(t *testing.T) {
	require := require.New(t)

	srv, conn := startServer(t)

	resp := roundTrip(t, conn, []byte("getxy___"), protocol.FloatPairSize)
	x, y := protocol.DecodeFloatPair(resp)
	require.Zero(x)
	require.Zero(y)

	req := append([]byte("move____"), protocol.EncodeFloatPair(120.5, -80.25)...)
	roundTrip(t, conn, req, 0)

	req = append([]byte("movez___"), protocol.EncodeFloat(55.5)...)
	roundTrip(t, conn, req, 0)

	resp = roundTrip(t, conn, []byte("getxy___"), protocol.FloatPairSize)
	x, y = protocol.DecodeFloatPair(resp)
	require.Equal(120.5, x)
	require.Equal(-80.25, y)

	resp = roundTrip(t, conn, []byte("getz____"), protocol.FloatSize)
	require.Equal(55.5, protocol.DecodeFloat(resp))

	sx, sy, sz, _ := srv.Position()
	require.Equal(120.5, sx)
	require.Equal(-80.25, sy)
	require.Equal(55.5, sz)
}

func TestRawWireAcquisition(t *testing.T) {
	require := require.New(t)

	srv, conn := startServer(t)
	srv.SetAcquireTotal(2)

	roundTrip(t, conn, []byte("acquire_wells=2"+protocol.EndMarker), 0)

	state, ok := protocol.ParseStateField(roundTrip(t, conn, []byte("status__"), protocol.StateFieldSize))
	require.True(ok)
	require.Equal(protocol.StateRunning, state)
	require.Equal("wells=2", srv.LastAcquirePayload())

	prog := protocol.DecodeProgress(roundTrip(t, conn, []byte("progress"), protocol.ProgressSize))
	require.Equal(protocol.AcquisitionProgress{Current: 1, Total: 2}, prog)

	prog = protocol.DecodeProgress(roundTrip(t, conn, []byte("progress"), protocol.ProgressSize))
	require.Equal(protocol.AcquisitionProgress{Current: 2, Total: 2}, prog)

	state, ok = protocol.ParseStateField(roundTrip(t, conn, []byte("status__"), protocol.StateFieldSize))
	require.True(ok)
	require.Equal(protocol.StateCompleted, state)

	// Nothing running anymore, cancel is refused.
	resp := roundTrip(t, conn, []byte("cancel__"), protocol.AckSize)
	require.False(protocol.IsAck(resp))
}

func TestRawWireQuit(t *testing.T) {
	require := require.New(t)

	srv, conn := startServer(t)
	require.Eventually(func() bool { return srv.ConnCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	_, err := conn.Write([]byte("quitclnt"))
	require.NoError(err)

	require.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.ErrorIs(err, io.EOF)

	require.Eventually(func() bool { return srv.ConnCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestRawWireUnknownToken(t *testing.T) {
	require := require.New(t)

	_, conn := startServer(t)

	_, err := conn.Write([]byte("bogus___"))
	require.NoError(err)

	// The server gives up on a client it cannot parse.
	require.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.ErrorIs(err, io.EOF)
}
