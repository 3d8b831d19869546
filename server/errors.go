package server

import "fmt"

// ProtocolError indicates the peer violated message ordering or sent a
// structurally invalid request at the connection-dispatch layer (as
// opposed to the framing-level frame.ProtocolError or the
// handshake-level kex.ProtocolError).
type ProtocolError struct{ Reason string }

func (e ProtocolError) Error() string { return "server: protocol error: " + e.Reason }

// IdleTimeout is returned when no inbound frame arrives within the
// configured Server.Timeout.
type IdleTimeout struct{}

func (IdleTimeout) Error() string { return "server: idle timeout" }

// disconnectReceived is the internal sentinel run() returns when the
// peer sent SSH_MSG_DISCONNECT; it unwinds the dispatch loop without
// being treated as a failure worth logging or replying to.
type disconnectReceived struct {
	reasonCode  uint32
	description string
}

func (e disconnectReceived) Error() string {
	return fmt.Sprintf("server: peer disconnected (%d): %s", e.reasonCode, e.description)
}
