// Package mockscope provides an in-process control server implementing the
// stage and acquisition protocol, for tests and demos.
//
// The acquisition engine is scripted: each progress query advances the run
// by one unit and the state flips to Completed when the counter reaches the
// total, so tests drive a whole run deterministically with no timing games.
package mockscope

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/MichaelSNelson/go-scope/internal/task"
	"github.com/MichaelSNelson/go-scope/logger"
	"github.com/MichaelSNelson/go-scope/protocol"
)

// Stage travel limits of the simulated instrument, micrometres.
const (
	MinX = -21000.0
	MaxX = 33000.0
	MinY = -9000.0
	MaxY = 11000.0
	MinZ = -1000.0
	MaxZ = 1000.0
)

// DefaultAcquireTotal is the scripted length of an acquisition run.
const DefaultAcquireTotal = 5

// Server is an in-process control server. One Server handles any number of
// sequential or concurrent client connections; position and acquisition
// state are shared across all of them, like a real instrument.
type Server struct {
	logger  logger.Logger
	taskMgr *task.Manager

	listener *net.TCPListener
	running  atomic.Bool
	connSeq  atomic.Uint64
	conns    *xsync.MapOf[uint64, net.Conn]

	// dropBudget makes the server kill the serving connection before
	// handling each of the next N commands.
	dropBudget atomic.Int32

	mu           sync.Mutex
	x, y, z, r   float64
	state        protocol.AcquisitionState
	current      int
	total        int
	acquireTotal int
	rawState     []byte
	moveDelay    time.Duration
	lastPayload  string
}

// NewServer creates a stopped server. Pass nil to log with the package
// default logger.
func NewServer(l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Server{
		logger:       l,
		conns:        xsync.NewMapOf[uint64, net.Conn](),
		state:        protocol.StateIdle,
		acquireTotal: DefaultAcquireTotal,
	}
}

// Start listens on host:port and serves until Stop. Port 0 picks a free
// port, read it back with Port.
func (s *Server) Start(host string, port int) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("mockscope: server already running")
	}

	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("mockscope: resolve %s:%d: %w", host, port, err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("mockscope: listen %s: %w", addr, err)
	}

	s.listener = listener
	s.taskMgr = task.NewManager(context.Background(), s.logger)

	if err := s.taskMgr.Start("accept", s.acceptOnce); err != nil {
		_ = listener.Close()
		s.running.Store(false)

		return err
	}

	s.logger.Info("mock server listening", "addr", s.Addr())

	return nil
}

// Stop closes the listener and every live connection and waits for the
// handler goroutines to finish. Stop is idempotent.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.logger.Info("mock server stopping", "addr", s.Addr())

	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})

	s.taskMgr.Stop()
	s.taskMgr.Wait()

	return nil
}

// Addr returns the actual listen address, useful after starting on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Port returns the actual listen port.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}

	return s.listener.Addr().(*net.TCPAddr).Port
}

// Position returns the simulated stage coordinates.
func (s *Server) Position() (x, y, z, r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.x, s.y, s.z, s.r
}

// SetPosition places the simulated stage.
func (s *Server) SetPosition(x, y, z, r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.x, s.y, s.z, s.r = x, y, z, r
}

// SetMoveDelay makes each move command take this long, simulating motion.
func (s *Server) SetMoveDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.moveDelay = d
}

// SetAcquireTotal scripts the unit count of the next acquisition run.
func (s *Server) SetAcquireTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.acquireTotal = n
}

// SetState forces the acquisition engine state.
func (s *Server) SetState(state protocol.AcquisitionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

// AcquisitionState returns the current engine state.
func (s *Server) AcquisitionState() protocol.AcquisitionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// SetRawStateField overrides the status reply with a verbatim field,
// space padded or truncated to the wire width. An empty string restores the
// scripted state.
func (s *Server) SetRawStateField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if field == "" {
		s.rawState = nil
		return
	}

	raw := make([]byte, protocol.StateFieldSize)
	for i := range raw {
		raw[i] = ' '
	}
	copy(raw, field)
	s.rawState = raw
}

// DropConnections makes the server kill the serving connection before
// handling each of the next n commands, one connection per command.
func (s *Server) DropConnections(n int) {
	s.dropBudget.Store(int32(n))
}

// LastAcquirePayload returns the payload of the most recent acquisition
// request, end marker stripped.
func (s *Server) LastAcquirePayload() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastPayload
}

// ConnCount returns the number of live client connections.
func (s *Server) ConnCount() int {
	return s.conns.Size()
}

// acceptOnce performs one deadline-bounded accept so the loop can observe a
// stopping manager between iterations.
func (s *Server) acceptOnce() bool {
	_ = s.listener.SetDeadline(time.Now().Add(time.Second))

	conn, err := s.listener.AcceptTCP()
	if err != nil {
		if isTimeout(err) {
			return true
		}
		if !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("accept failed", "error", err)
		}

		return false
	}

	id := s.connSeq.Add(1)
	s.conns.Store(id, conn)

	err = s.taskMgr.Start(fmt.Sprintf("conn-%d", id), func() bool {
		s.serveConn(id, conn)
		return false
	})
	if err != nil {
		_ = conn.Close()
		s.conns.Delete(id)

		return false
	}

	return true
}

// serveConn handles one client until it quits, misbehaves or the server
// stops. Stop closes the connection out from under the blocked read, which
// ends the loop.
func (s *Server) serveConn(id uint64, conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.conns.Delete(id)
		s.logger.Debug("client gone", "conn", id)
	}()

	s.logger.Debug("client connected", "conn", id, "remote", conn.RemoteAddr().String())

	reader := bufio.NewReader(conn)
	token := make([]byte, protocol.TokenSize)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))

		if n, err := io.ReadFull(reader, token); err != nil {
			// An idle wait times out with nothing read; a timeout mid-token
			// would desync the stream, so only the former continues.
			if isTimeout(err) && n == 0 {
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("client read ended", "conn", id, "error", err)
			}

			return
		}

		cmd, ok := protocol.CommandFromToken(string(token))
		if !ok {
			s.logger.Warn("unknown command token", "conn", id, "token", string(token))
			return
		}

		if n := s.dropBudget.Load(); n > 0 && s.dropBudget.CompareAndSwap(n, n-1) {
			s.logger.Info("dropping connection on request", "conn", id, "cmd", cmd.String())
			return
		}

		payload, err := s.readPayload(reader, conn, cmd)
		if err != nil {
			s.logger.Warn("payload read failed", "conn", id, "cmd", cmd.String(), "error", err)
			return
		}

		reply, closeAfter := s.handleCommand(cmd, payload)

		if reply != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
			if _, err := conn.Write(reply); err != nil {
				s.logger.Warn("reply write failed", "conn", id, "cmd", cmd.String(), "error", err)
				return
			}
		}

		if closeAfter {
			return
		}
	}
}

// readPayload reads the command's payload, fixed width for most commands,
// text up to the end marker for acquire.
func (s *Server) readPayload(reader *bufio.Reader, conn net.Conn, cmd protocol.Command) ([]byte, error) {
	size := cmd.PayloadSize()
	if size == 0 {
		return nil, nil
	}

	// The client may pause between the acquire token and its payload.
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	if size == protocol.PayloadVariable {
		return readUntilMarker(reader)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// readUntilMarker accumulates bytes until the end marker arrives and
// returns the payload with the marker stripped.
func readUntilMarker(reader *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	marker := []byte(protocol.EndMarker)

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(b)

		if bytes.HasSuffix(buf.Bytes(), marker) {
			return bytes.TrimSuffix(buf.Bytes(), marker), nil
		}
	}
}

func (s *Server) handleCommand(cmd protocol.Command, payload []byte) (reply []byte, closeAfter bool) {
	switch cmd {
	case protocol.CmdGetXY:
		x, y, _, _ := s.Position()
		return protocol.EncodeFloatPair(x, y), false

	case protocol.CmdGetZ:
		_, _, z, _ := s.Position()
		return protocol.EncodeFloat(z), false

	case protocol.CmdGetR:
		_, _, _, r := s.Position()
		return protocol.EncodeFloat(r), false

	case protocol.CmdMoveXY:
		x, y := protocol.DecodeFloatPair(payload)
		s.applyMove(func() {
			if x < MinX || x > MaxX || y < MinY || y > MaxY {
				s.logger.Warn("move target outside travel limits", "x", x, "y", y)
			}
			s.x, s.y = x, y
		})
		return nil, false

	case protocol.CmdMoveZ:
		z := protocol.DecodeFloat(payload)
		s.applyMove(func() {
			if z < MinZ || z > MaxZ {
				s.logger.Warn("focus target outside travel limits", "z", z)
			}
			s.z = z
		})
		return nil, false

	case protocol.CmdMoveR:
		r := protocol.DecodeFloat(payload)
		s.applyMove(func() { s.r = r })
		return nil, false

	case protocol.CmdAcquire:
		s.startRun(string(payload))
		return nil, false

	case protocol.CmdStatus:
		return s.statusReply(), false

	case protocol.CmdProgress:
		return s.progressReply(), false

	case protocol.CmdCancel:
		return s.cancelReply(), false

	case protocol.CmdShutdown:
		// Stop waits for this handler, run it elsewhere.
		go func() { _ = s.Stop() }()
		return nil, true

	case protocol.CmdQuit:
		return nil, true

	default:
		return nil, true
	}
}

// applyMove simulates motion time, then applies the position mutation under
// the state lock.
func (s *Server) applyMove(mutate func()) {
	s.mu.Lock()
	delay := s.moveDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	mutate()
	s.mu.Unlock()
}

// startRun arms the scripted acquisition.
func (s *Server) startRun(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPayload = payload
	s.current = 0
	s.total = s.acquireTotal

	if s.total <= 0 {
		s.state = protocol.StateCompleted
	} else {
		s.state = protocol.StateRunning
	}

	s.logger.Info("acquisition armed", "total", s.total, "payloadBytes", len(payload))
}

func (s *Server) statusReply() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rawState != nil {
		reply := make([]byte, protocol.StateFieldSize)
		copy(reply, s.rawState)

		return reply
	}

	reply := protocol.EncodeStateField(s.state)

	// Cancellation winds down across one status read.
	if s.state == protocol.StateCancelling {
		s.state = protocol.StateCancelled
	}

	return reply
}

func (s *Server) progressReply() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == protocol.StateRunning {
		s.current++
		if s.current >= s.total {
			s.current = s.total
			s.state = protocol.StateCompleted
		}
	}

	return protocol.EncodeProgress(protocol.AcquisitionProgress{Current: s.current, Total: s.total})
}

func (s *Server) cancelReply() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == protocol.StateRunning || s.state == protocol.StateCancelling {
		s.state = protocol.StateCancelling
		return []byte(protocol.Ack)
	}

	return []byte("NAK")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
