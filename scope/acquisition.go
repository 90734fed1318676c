package scope

import (
	"strings"

	"github.com/MichaelSNelson/go-scope/protocol"
)

// StartAcquisition submits an acquisition request. The payload is opaque to
// the client, typically a parameter string the server side acquisition
// engine understands; the end marker that terminates it on the wire is
// appended here, callers never include it. The command returns as soon as
// the request is written, poll the status or use MonitorAcquisition to
// follow the run.
func (c *Client) StartAcquisition(payload string) error {
	_, err := c.execute(protocol.CmdAcquire, []byte(payload+protocol.EndMarker))
	return err
}

// GetAcquisitionStatus reads the acquisition engine state. A state name this
// client does not know, from a newer server, degrades to StateIdle with a
// warning instead of an error.
func (c *Client) GetAcquisitionStatus() (protocol.AcquisitionState, error) {
	resp, err := c.execute(protocol.CmdStatus, nil)
	if err != nil {
		return protocol.StateIdle, err
	}

	state, ok := protocol.ParseStateField(resp)
	if !ok {
		c.logger.Warn("unknown acquisition state", "field", strings.Trim(string(resp), " \x00"))
	}

	return state, nil
}

// GetAcquisitionProgress reads the progress counters of the current run.
// Outside a run the server reports the counters of the last run, or zeros
// when none has happened yet.
func (c *Client) GetAcquisitionProgress() (protocol.AcquisitionProgress, error) {
	resp, err := c.execute(protocol.CmdProgress, nil)
	if err != nil {
		return protocol.AcquisitionProgress{}, err
	}

	return protocol.DecodeProgress(resp), nil
}

// CancelAcquisition asks the server to stop the running acquisition. The
// returned bool reports whether the server acknowledged the request;
// cancellation completes asynchronously, keep polling the status until a
// terminal state confirms it.
func (c *Client) CancelAcquisition() (bool, error) {
	resp, err := c.execute(protocol.CmdCancel, nil)
	if err != nil {
		return false, err
	}

	return protocol.IsAck(resp), nil
}
