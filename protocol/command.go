// Package protocol defines the wire format spoken by microscope control
// servers.
//
// Every request starts with an eight byte ASCII command token, padded to
// width with '_' characters, optionally followed by a binary payload in big
// endian byte order. Responses carry no framing: each command is answered by
// a fixed number of bytes determined by the command itself, so requests and
// responses pair up positionally on the connection.
package protocol

import "strings"

const (
	// TokenSize is the width of every command token on the wire.
	TokenSize = 8

	// tokenPad fills the unused tail of a command token.
	tokenPad = "_"
)

// PayloadVariable marks a command whose request payload has no fixed length.
const PayloadVariable = -1

// Command identifies one remote operation.
type Command uint8

const (
	invalidCommand Command = iota

	// CmdGetXY reads the lateral stage position.
	CmdGetXY
	// CmdGetZ reads the focus position.
	CmdGetZ
	// CmdGetR reads the stage rotation.
	CmdGetR
	// CmdMoveXY moves the stage laterally to an absolute position.
	CmdMoveXY
	// CmdMoveZ moves the focus to an absolute position.
	CmdMoveZ
	// CmdMoveR rotates the stage to an absolute tick position.
	CmdMoveR
	// CmdAcquire starts an acquisition described by an opaque payload.
	CmdAcquire
	// CmdStatus reads the acquisition engine state.
	CmdStatus
	// CmdProgress reads the acquisition progress counters.
	CmdProgress
	// CmdCancel requests cancellation of the running acquisition.
	CmdCancel
	// CmdShutdown asks the server process to exit.
	CmdShutdown
	// CmdQuit tells the server this client is disconnecting.
	CmdQuit
)

// cmdSpec describes the wire layout of one command.
type cmdSpec struct {
	token    string
	payload  int // request bytes after the token, PayloadVariable if unbounded
	response int // response bytes, 0 for fire and forget commands
}

var cmdSpecs = [...]cmdSpec{
	CmdGetXY:    {token: "getxy___", payload: 0, response: FloatPairSize},
	CmdGetZ:     {token: "getz____", payload: 0, response: FloatSize},
	CmdGetR:     {token: "getr____", payload: 0, response: FloatSize},
	CmdMoveXY:   {token: "move____", payload: FloatPairSize, response: 0},
	CmdMoveZ:    {token: "movez___", payload: FloatSize, response: 0},
	CmdMoveR:    {token: "mover___", payload: FloatSize, response: 0},
	CmdAcquire:  {token: "acquire_", payload: PayloadVariable, response: 0},
	CmdStatus:   {token: "status__", payload: 0, response: StateFieldSize},
	CmdProgress: {token: "progress", payload: 0, response: ProgressSize},
	CmdCancel:   {token: "cancel__", payload: 0, response: AckSize},
	CmdShutdown: {token: "shutdown", payload: 0, response: 0},
	CmdQuit:     {token: "quitclnt", payload: 0, response: 0},
}

func (c Command) valid() bool {
	return c > invalidCommand && int(c) < len(cmdSpecs)
}

// Token returns the eight byte wire token of the command, or an empty string
// for an invalid command.
func (c Command) Token() string {
	if !c.valid() {
		return ""
	}

	return cmdSpecs[c].token
}

// PayloadSize returns the request payload length in bytes, PayloadVariable
// for commands with an unbounded payload.
func (c Command) PayloadSize() int {
	if !c.valid() {
		return 0
	}

	return cmdSpecs[c].payload
}

// ResponseSize returns the fixed response length in bytes. Zero means the
// server sends nothing back.
func (c Command) ResponseSize() int {
	if !c.valid() {
		return 0
	}

	return cmdSpecs[c].response
}

// String returns the command mnemonic, the wire token with its padding
// trimmed.
func (c Command) String() string {
	if !c.valid() {
		return "invalid"
	}

	return strings.TrimRight(cmdSpecs[c].token, tokenPad)
}

// CommandFromToken resolves a wire token read off the connection. It reports
// false for tokens no command claims.
func CommandFromToken(token string) (Command, bool) {
	for c := invalidCommand + 1; c.valid(); c++ {
		if cmdSpecs[c].token == token {
			return c, true
		}
	}

	return invalidCommand, false
}
