package scope

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Client error classes. Returned errors wrap one of these together with call
// context, match them with errors.Is.
var (
	// ErrClientClosed is returned by every method once Close has been
	// called, and by blocking calls the shutdown interrupted.
	ErrClientClosed = errors.New("scope: client closed")

	// ErrConnFailed reports a failed dial or an I/O failure on an
	// established connection. The affected command was not retried.
	ErrConnFailed = errors.New("scope: connection failed")

	// ErrShortResponse reports a connection that closed before delivering a
	// complete response.
	ErrShortResponse = errors.New("scope: short response")

	// ErrMonitorTimeout reports that acquisition monitoring reached its
	// overall deadline before the engine reached a terminal state.
	ErrMonitorTimeout = errors.New("scope: monitor timeout")
)

func isTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection")
}

func isConnResetError(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		strings.Contains(err.Error(), "connection reset")
}
