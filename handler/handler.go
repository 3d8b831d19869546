// Package handler defines the embedder-facing contract: the eleven
// operations spec.md §4.8 lists (auth_none, auth_password,
// auth_password_change, auth_publickey, channel_open_session,
// channel_pty_request, channel_shell_request, channel_exec_request,
// channel_data, channel_eof, channel_close), plus the ChannelExtendedData
// supplement this core adds for stderr support. Base embeds a default
// no-op/reject implementation so an embedder only overrides what it
// cares about, mirroring the trait-method defaults of the original
// handler contract this core's design is grounded on.
package handler

import (
	"context"

	"github.com/cvsouth/sshd-go/channel"
)

// Session carries the per-connection identity an auth callback needs:
// who is authenticating and over what connection, without exposing any
// dispatcher internals.
type Session struct {
	Username   string
	RemoteAddr string
	SessionID  []byte
}

// AuthResult is returned by every authentication callback. Accept
// grants the requested method; Partial additionally requests the
// dispatcher report USERAUTH_FAILURE with partial success (RFC 4252
// §5.1) rather than a flat reject, so the client can try a further
// method on the same USERAUTH session — the supplemented multi-factor
// path (SPEC_FULL.md §7).
type AuthResult struct {
	Accept  bool
	Partial bool
}

// Reject is the zero-value AuthResult, provided for readability at call
// sites.
var Reject = AuthResult{}

// PTYRequest carries the terminal parameters of a "pty-req" channel
// request (RFC 4254 §6.2).
type PTYRequest struct {
	Term         string
	WidthChars   uint32
	HeightChars  uint32
	WidthPixels  uint32
	HeightPixels uint32
	Modes        []byte
}

// Handler is the capability set an embedder implements to drive
// authentication decisions and channel behavior. The Auth methods
// return an AuthResult; every channel method may return an error,
// which the dispatcher recovers locally rather than treating as fatal:
// ChannelOpenSession's error yields CHANNEL_OPEN_FAILURE, a channel
// request's error yields CHANNEL_FAILURE when the client asked for a
// reply, and errors from ChannelData, ChannelExtendedData, ChannelEOF
// and ChannelClose are only logged.
type Handler interface {
	// AuthNone is called for a "none" USERAUTH_REQUEST, typically used
	// by clients to probe which methods the server offers.
	AuthNone(ctx context.Context, s Session) AuthResult

	// AuthPassword is called for a "password" USERAUTH_REQUEST with no
	// new password offered.
	AuthPassword(ctx context.Context, s Session, password string) AuthResult

	// AuthPasswordChange is called when the client proactively supplies
	// a new password alongside the old one in the same request.
	AuthPasswordChange(ctx context.Context, s Session, oldPassword, newPassword string) AuthResult

	// AuthPublicKey is called for a "publickey" USERAUTH_REQUEST.
	// verified is false for the query phase (RFC 4252 §7: the client
	// asks whether a key would be acceptable before producing a
	// signature) — Accept in that phase only controls whether the
	// dispatcher replies PK_OK, the key is not yet trusted. verified is
	// true once the dispatcher has itself checked the signature against
	// PKSignedBlob; only then does Accept actually authenticate.
	AuthPublicKey(ctx context.Context, s Session, algorithm string, blob []byte, verified bool) AuthResult

	// ChannelOpenSession is called when the client opens a "session"
	// channel. A non-nil error causes CHANNEL_OPEN_FAILURE.
	ChannelOpenSession(ctx context.Context, ch *channel.Handle) error

	// ChannelPTYRequest is called for a "pty-req" channel request.
	ChannelPTYRequest(ctx context.Context, ch *channel.Handle, req PTYRequest) error

	// ChannelShellRequest is called for a "shell" channel request.
	ChannelShellRequest(ctx context.Context, ch *channel.Handle) error

	// ChannelExecRequest is called for an "exec" channel request with
	// the command line the client asked to run.
	ChannelExecRequest(ctx context.Context, ch *channel.Handle, command string) error

	// ChannelData delivers inbound SSH_MSG_CHANNEL_DATA; the dispatcher
	// has already accounted it against the channel's local window.
	ChannelData(ctx context.Context, ch *channel.Handle, data []byte) error

	// ChannelExtendedData delivers inbound SSH_MSG_CHANNEL_EXTENDED_DATA
	// (e.g. stderr), the stderr-support supplement (SPEC_FULL.md §7).
	ChannelExtendedData(ctx context.Context, ch *channel.Handle, dataTypeCode uint32, data []byte) error

	// ChannelEOF is called when the client sends SSH_MSG_CHANNEL_EOF.
	ChannelEOF(ctx context.Context, ch *channel.Handle) error

	// ChannelClose is called when the client sends SSH_MSG_CHANNEL_CLOSE,
	// after the dispatcher has echoed CLOSE and removed the channel from
	// the registry. It is not called for a close started by Handle.Close.
	ChannelClose(ctx context.Context, ch *channel.Handle) error
}

// Base is an embeddable default Handler: every auth method rejects,
// every channel method succeeds as a no-op except ChannelExecRequest,
// which has nothing sensible to default to and rejects.
type Base struct{}

func (Base) AuthNone(ctx context.Context, s Session) AuthResult { return Reject }

func (Base) AuthPassword(ctx context.Context, s Session, password string) AuthResult { return Reject }

func (Base) AuthPasswordChange(ctx context.Context, s Session, oldPassword, newPassword string) AuthResult {
	return Reject
}

func (Base) AuthPublicKey(ctx context.Context, s Session, algorithm string, blob []byte, verified bool) AuthResult {
	return Reject
}

func (Base) ChannelOpenSession(ctx context.Context, ch *channel.Handle) error { return nil }

func (Base) ChannelPTYRequest(ctx context.Context, ch *channel.Handle, req PTYRequest) error {
	return nil
}

func (Base) ChannelShellRequest(ctx context.Context, ch *channel.Handle) error { return nil }

func (Base) ChannelExecRequest(ctx context.Context, ch *channel.Handle, command string) error {
	return errUnsupportedExec
}

func (Base) ChannelData(ctx context.Context, ch *channel.Handle, data []byte) error { return nil }

func (Base) ChannelExtendedData(ctx context.Context, ch *channel.Handle, dataTypeCode uint32, data []byte) error {
	return nil
}

func (Base) ChannelEOF(ctx context.Context, ch *channel.Handle) error { return nil }

func (Base) ChannelClose(ctx context.Context, ch *channel.Handle) error { return nil }

type unsupportedExecError struct{}

func (unsupportedExecError) Error() string { return "handler: exec not implemented" }

var errUnsupportedExec = unsupportedExecError{}
