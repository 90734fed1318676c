package scope

import (
	"fmt"

	"github.com/MichaelSNelson/go-scope/protocol"
)

// GetStageXY reads the lateral stage position in micrometres.
func (c *Client) GetStageXY() (x float64, y float64, err error) {
	resp, err := c.execute(protocol.CmdGetXY, nil)
	if err != nil {
		return 0, 0, err
	}

	x, y = protocol.DecodeFloatPair(resp)

	return x, y, nil
}

// GetStageZ reads the focus position in micrometres.
func (c *Client) GetStageZ() (float64, error) {
	resp, err := c.execute(protocol.CmdGetZ, nil)
	if err != nil {
		return 0, err
	}

	return protocol.DecodeFloat(resp), nil
}

// GetStageR reads the stage rotation in hardware tick units.
func (c *Client) GetStageR() (float64, error) {
	resp, err := c.execute(protocol.CmdGetR, nil)
	if err != nil {
		return 0, err
	}

	return protocol.DecodeFloat(resp), nil
}

// MoveStageXY moves the stage to an absolute lateral position in
// micrometres. The server enforces its own travel limits; the command does
// not wait for the motion to finish.
func (c *Client) MoveStageXY(x, y float64) error {
	_, err := c.execute(protocol.CmdMoveXY, protocol.EncodeFloatPair(x, y))
	return err
}

// MoveStageZ moves the focus to an absolute position in micrometres.
func (c *Client) MoveStageZ(z float64) error {
	_, err := c.execute(protocol.CmdMoveZ, protocol.EncodeFloat(z))
	return err
}

// MoveStageR rotates the stage to an absolute position in hardware tick
// units. Conversion from degrees belongs to the caller.
func (c *Client) MoveStageR(ticks float64) error {
	_, err := c.execute(protocol.CmdMoveR, protocol.EncodeFloat(ticks))
	return err
}

// ShutdownServer asks the server process to exit, then closes this side
// without the usual quit notice. The drop is deliberate, so the reconnect
// supervisor stays out of it.
func (c *Client) ShutdownServer() error {
	if c.state.get() == ShuttingDown {
		return ErrClientClosed
	}

	c.cmdMutex.Lock()
	defer c.cmdMutex.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		c.metrics.incCmdErrCount()
		return err
	}

	if err := c.writeCommandLocked(protocol.CmdShutdown, nil); err != nil {
		c.metrics.incCmdErrCount()
		c.dropConnLocked(protocol.CmdShutdown, err)

		return fmt.Errorf("%w: send %s: %w", ErrConnFailed, protocol.CmdShutdown, err)
	}
	c.metrics.incCmdSendCount()

	return c.disconnectLocked(false)
}
