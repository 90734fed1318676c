// Package scope implements a TCP client for microscope control servers
// speaking the fixed-frame stage and acquisition protocol.
//
// A Client owns one connection to one server. Commands are serialized: the
// command mutex is held across the request write and the complete response
// read, so the positional request/response pairing of the protocol holds no
// matter how many goroutines share the client. Connection failures close the
// socket, hand the outage to a background reconnect supervisor and surface
// the error to the caller; the failed command is never retried internally.
//
// An optional health monitor probes the server with a cheap position read
// whenever the connection sits idle, so half-open sockets are detected
// before the next real command trips over them.
package scope

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MichaelSNelson/go-scope/internal/pool"
	"github.com/MichaelSNelson/go-scope/internal/task"
	"github.com/MichaelSNelson/go-scope/logger"
	"github.com/MichaelSNelson/go-scope/protocol"
)

// Client drives one microscope control server over a single TCP connection.
// All exported methods are safe for concurrent use.
type Client struct {
	pctx      context.Context
	ctx       context.Context
	ctxCancel context.CancelFunc

	cfg     *ClientConfig
	logger  logger.Logger
	taskMgr *task.Manager

	// cmdMutex serializes connect, write and read on the connection.
	cmdMutex sync.Mutex
	tcpConn  *net.TCPConn
	reader   *bufio.Reader
	writer   *bufio.Writer

	state atomicConnState

	// lastActivity is the unix nano timestamp of the last successful socket
	// operation, read lock-free by the health monitor.
	lastActivity atomic.Int64

	reconnectRunning atomic.Bool
	reconnectGen     atomic.Uint64

	metrics ClientMetrics
}

// NewClient creates a client for the server named by cfg. No connection is
// dialed here; call Connect, or let the first command dial on demand. The
// health monitor starts immediately when enabled.
func NewClient(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("scope: nil config")
	}

	c := &Client{pctx: ctx, cfg: cfg, logger: cfg.GetLogger()}
	c.ctx, c.ctxCancel = context.WithCancel(ctx)
	c.taskMgr = task.NewManager(c.ctx, c.logger)
	c.touchActivity()

	if cfg.AutoHealthCheck() {
		if _, err := c.taskMgr.StartInterval("healthCheck", c.healthCheck, cfg.HealthCheckInterval(), false); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Connect dials the server. It is a no-op when already connected.
func (c *Client) Connect() error {
	if c.state.get() == ShuttingDown {
		return ErrClientClosed
	}

	c.cmdMutex.Lock()
	defer c.cmdMutex.Unlock()

	return c.ensureConnectedLocked()
}

// Disconnect notifies the server and closes the socket. The client stays
// usable; a later command or Connect dials again. The reconnect supervisor
// does not fire for a deliberate disconnect.
func (c *Client) Disconnect() error {
	if c.state.get() == ShuttingDown {
		return ErrClientClosed
	}

	c.cmdMutex.Lock()
	defer c.cmdMutex.Unlock()

	return c.disconnectLocked(true)
}

// Close tears the client down: background tasks stop, the server gets a
// courtesy quit and the socket closes. Afterwards every method returns
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	prev, ok := c.state.toShutdown()
	if !ok {
		return nil
	}

	c.logger.Debug("closing client", "remote", c.cfg.Addr())
	c.notifyState(prev, ShuttingDown)

	// A stale generation stops any in-flight reconnect supervisor.
	c.reconnectGen.Add(1)
	c.ctxCancel()

	done := make(chan struct{})
	go func() {
		c.taskMgr.Stop()
		c.taskMgr.Wait()
		close(done)
	}()

	var closeErr error
	timer := pool.GetTimer(c.cfg.CloseTimeout())
	select {
	case <-done:
	case <-timer.C:
		closeErr = errors.New("scope: close timed out waiting for background tasks")
	}
	pool.PutTimer(timer)

	c.cmdMutex.Lock()
	err := c.disconnectLocked(prev == Connected)
	c.cmdMutex.Unlock()
	if closeErr == nil {
		closeErr = err
	}

	c.logger.Info("client closed", "remote", c.cfg.Addr())

	return closeErr
}

// IsConnected reports whether a live connection is established.
func (c *Client) IsConnected() bool {
	return c.state.get() == Connected
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.state.get()
}

// Metrics exposes the client's activity counters.
func (c *Client) Metrics() *ClientMetrics {
	return &c.metrics
}

// execute runs one command: connect on demand, write the token and payload,
// read the fixed size response. The command mutex is held across all three
// steps; responses carry no correlation ids, they pair with requests by
// position on the stream.
func (c *Client) execute(cmd protocol.Command, payload []byte) ([]byte, error) {
	if c.state.get() == ShuttingDown {
		return nil, ErrClientClosed
	}

	c.cmdMutex.Lock()
	defer c.cmdMutex.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		c.metrics.incCmdErrCount()
		if !errors.Is(err, ErrClientClosed) {
			c.scheduleReconnect()
		}

		return nil, err
	}

	if err := c.writeCommandLocked(cmd, payload); err != nil {
		c.metrics.incCmdErrCount()
		c.dropConnLocked(cmd, err)

		return nil, fmt.Errorf("%w: send %s: %w", ErrConnFailed, cmd, err)
	}

	respSize := cmd.ResponseSize()
	if respSize == 0 {
		c.metrics.incCmdSendCount()
		return nil, nil
	}

	resp := make([]byte, respSize)
	_ = c.tcpConn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout()))

	if _, err := io.ReadFull(c.reader, resp); err != nil {
		c.metrics.incCmdErrCount()
		c.dropConnLocked(cmd, err)

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s wanted %d bytes: %w", ErrShortResponse, cmd, respSize, err)
		}

		return nil, fmt.Errorf("%w: read %s response: %w", ErrConnFailed, cmd, err)
	}

	c.touchActivity()
	c.metrics.incCmdSendCount()

	return resp, nil
}

func (c *Client) ensureConnectedLocked() error {
	if c.state.get() == Connected && c.tcpConn != nil {
		return nil
	}

	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	addr := c.cfg.Addr()

	dialCtx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectTimeout())
	defer cancel()

	dialer := net.Dialer{KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		c.metrics.incConnectErrCount()
		if c.ctx.Err() != nil {
			return ErrClientClosed
		}

		return fmt.Errorf("%w: dial %s: %w", ErrConnFailed, addr, err)
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return fmt.Errorf("%w: unexpected connection type %T", ErrConnFailed, conn)
	}
	_ = tcpConn.SetNoDelay(true)

	c.tcpConn = tcpConn
	c.reader = bufio.NewReader(tcpConn)
	c.writer = bufio.NewWriter(tcpConn)
	c.touchActivity()

	if !c.state.toConnected() {
		// Close won the race while we were dialing.
		c.closeSocketLocked()
		return ErrClientClosed
	}

	c.metrics.incConnectCount()
	c.metrics.resetReconnectAttempts()
	c.logger.Info("connected", "remote", addr)
	c.notifyState(Disconnected, Connected)

	return nil
}

// writeCommandLocked sends the command token and payload under a write
// deadline and flushes.
func (c *Client) writeCommandLocked(cmd protocol.Command, payload []byte) error {
	_ = c.tcpConn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout()))

	if _, err := c.writer.WriteString(cmd.Token()); err != nil {
		return err
	}

	// Some acquisition engines read the token and payload in separate
	// segments with a settle pause between them.
	if cmd == protocol.CmdAcquire && c.cfg.AcquireWriteDelay() > 0 {
		if err := c.writer.Flush(); err != nil {
			return err
		}

		timer := pool.GetTimer(c.cfg.AcquireWriteDelay())
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			pool.PutTimer(timer)
			return ErrClientClosed
		}
		pool.PutTimer(timer)

		_ = c.tcpConn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout()))
	}

	if len(payload) > 0 {
		if _, err := c.writer.Write(payload); err != nil {
			return err
		}
	}

	if err := c.writer.Flush(); err != nil {
		return err
	}

	c.touchActivity()

	return nil
}

// dropConnLocked tears down a connection after an I/O failure and hands the
// outage to the reconnect supervisor. The failed command is not retried; the
// caller sees the error and decides.
func (c *Client) dropConnLocked(cmd protocol.Command, err error) {
	switch {
	case isConnResetError(err):
		c.logger.Warn("connection reset by server", "cmd", cmd.String(), "error", err)
	case isTimeoutError(err):
		c.logger.Warn("command deadline exceeded", "cmd", cmd.String(), "error", err)
	default:
		c.logger.Error("command failed on the wire", "cmd", cmd.String(), "error", err)
	}

	c.closeSocketLocked()
	if c.state.toDisconnected() {
		c.notifyState(Connected, Disconnected)
	}
	c.scheduleReconnect()
}

// disconnectLocked closes the connection, optionally sending the quit notice
// first. Safe to call with no connection up.
func (c *Client) disconnectLocked(sendQuit bool) error {
	if c.tcpConn == nil {
		return nil
	}

	if sendQuit {
		if err := c.writeCommandLocked(protocol.CmdQuit, nil); err != nil && !isConnClosedError(err) {
			c.logger.Warn("quit notice failed", "error", err)
		}
	}

	err := c.closeSocketLocked()
	if c.state.toDisconnected() {
		c.notifyState(Connected, Disconnected)
	}
	c.logger.Info("disconnected", "remote", c.cfg.Addr())

	return err
}

// closeSocketLocked closes the socket and clears the buffered streams.
func (c *Client) closeSocketLocked() error {
	if c.tcpConn == nil {
		return nil
	}

	_ = c.tcpConn.SetLinger(int(c.cfg.CloseTimeout().Seconds()))

	err := c.tcpConn.Close()
	if err != nil && !isConnClosedError(err) {
		c.logger.Warn("socket close failed", "error", err)
	} else {
		err = nil
	}

	c.tcpConn = nil
	c.reader = nil
	c.writer = nil

	return err
}

// notifyState hands a state transition to the configured handler on its own
// goroutine, keeping handler latency off the command path.
func (c *Client) notifyState(prev, curr ConnState) {
	handler := c.cfg.ConnStateHandler()
	if handler == nil {
		return
	}

	go handler(prev, curr)
}

func (c *Client) touchActivity() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// idleFor returns the time since the last successful socket operation.
func (c *Client) idleFor() time.Duration {
	return time.Duration(time.Now().UnixNano() - c.lastActivity.Load())
}
