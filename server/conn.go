package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cvsouth/sshd-go/channel"
	"github.com/cvsouth/sshd-go/frame"
	"github.com/cvsouth/sshd-go/handler"
	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/kex"
	"github.com/cvsouth/sshd-go/msg"
	"github.com/cvsouth/sshd-go/transport"
	"github.com/cvsouth/sshd-go/version"
	"github.com/cvsouth/sshd-go/wire"
)

// authMethods is what this core advertises in SSH_MSG_USERAUTH_FAILURE;
// "none" is never listed since it only ever serves as a probe, per RFC
// 4252 §5.2.
var authMethods = []string{"publickey", "password"}

// Conn is one connection's transport and dispatch state: the BPP codec,
// the key exchange engine it is briefly handed to, the open channel
// registry, and the auth/session bookkeeping a single connection needs.
// Its run loop is the one and only goroutine that ever calls
// reader.ReadPacket or drives a key exchange — the design note this
// core's concurrency model follows is "do not spawn a second task for
// KEX, ordering cannot be preserved". Outbound writes a handler spawns
// concurrently (a channel's data-relay goroutine, say) go through the
// gated writer installed on channels instead of touching reader/writer
// directly.
type Conn struct {
	srv *Server
	nc  net.Conn

	state  *transport.State
	reader *frame.Reader
	writer *frame.Writer

	gate        *gate
	gatedWriter *gatedWriter
	channels    *channel.Registry
	engine      *kex.Engine

	sessionID []byte

	authenticated bool
	username      string

	ctx    context.Context
	cancel context.CancelFunc
}

func newConn(srv *Server, nc net.Conn) (*Conn, error) {
	if srv.Timeout > 0 {
		_ = nc.SetReadDeadline(time.Now().Add(srv.Timeout))
	}
	br := bufio.NewReader(nc)
	remoteVersion, err := version.Exchange(br, nc, version.LocalBanner)
	if err != nil {
		return nil, fmt.Errorf("server: version exchange: %w", err)
	}

	state := transport.New()
	reader := frame.NewReader(br, state)
	writer := frame.NewWriter(nc, state)

	g := newGate()
	gw := &gatedWriter{w: writer, g: g}
	channels := channel.NewRegistry(gw)

	engine := &kex.Engine{
		Reader:        reader,
		Writer:        writer,
		State:         state,
		LocalVersion:  version.LocalBanner,
		RemoteVersion: remoteVersion,
		HostKeys:      srv.HostKeys,
		Preference:    srv.Preference,
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		srv:         srv,
		nc:          nc,
		state:       state,
		reader:      reader,
		writer:      writer,
		gate:        g,
		gatedWriter: gw,
		channels:    channels,
		engine:      engine,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// run drives the connection to completion: the first key exchange, then
// the read-dispatch loop until a fatal error, a peer DISCONNECT, or the
// idle timeout ends it.
func (c *Conn) run() {
	defer c.cancel()
	if err := c.firstKex(); err != nil {
		c.fail(err)
		return
	}
	if c.srv.KeepaliveInterval > 0 {
		go c.keepalive()
	}
	for {
		if c.srv.Timeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(c.srv.Timeout))
		}
		seq, payload, err := c.reader.ReadPacket()
		if err != nil {
			if c.srv.Timeout > 0 && isTimeout(err) {
				err = IdleTimeout{}
			}
			c.fail(err)
			return
		}
		if err := c.dispatch(seq, payload); err != nil {
			if _, ok := err.(disconnectReceived); ok {
				return
			}
			c.fail(err)
			return
		}
	}
}

// firstKex runs the initial, mandatory key exchange right after the
// version exchange, pinning the session identifier.
func (c *Conn) firstKex() error {
	c.gate.pause()
	defer c.gate.resume()
	sid, err := c.engine.Run(nil)
	if err != nil {
		return err
	}
	c.sessionID = sid
	return nil
}

// keepalive periodically emits SSH_MSG_IGNORE until the connection ends.
// It writes through the gated writer, so a running key exchange defers
// a keepalive tick rather than interleaving with it.
func (c *Conn) keepalive() {
	t := time.NewTicker(c.srv.KeepaliveInterval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			if err := c.gatedWriter.WritePacket(msg.Marshal(&msg.Ignore{})); err != nil {
				return
			}
		}
	}
}

// isTimeout reports whether err is a net.Error signaling that a read
// deadline elapsed, as opposed to any other I/O failure.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// rekey runs a key exchange the peer initiated unilaterally: the main
// loop has already read peerPayload (a SSH_MSG_KEXINIT) off the wire
// before recognizing it needs to hand the stream to the engine, so it
// is threaded straight through rather than re-read.
func (c *Conn) rekey(peerPayload []byte) error {
	c.gate.pause()
	defer c.gate.resume()
	_, err := c.engine.Run(peerPayload)
	return err
}

// dispatch routes one decoded packet to the right handler. A non-nil,
// non-disconnectReceived error ends the connection; run() classifies it
// into an optional outbound DISCONNECT.
func (c *Conn) dispatch(seq uint32, payload []byte) error {
	if len(payload) == 0 {
		return ProtocolError{Reason: "empty payload"}
	}
	if msg.Type(payload[0]) == msg.TypeKexInit {
		return c.rekey(payload)
	}
	m, err := msg.Unpack(seq, payload)
	if err != nil {
		return ProtocolError{Reason: "malformed message: " + err.Error()}
	}
	switch mm := m.(type) {
	case *msg.Disconnect:
		return disconnectReceived{reasonCode: mm.ReasonCode, description: mm.Description}
	case *msg.Ignore:
		return nil
	case *msg.Debug:
		return nil
	case *msg.Unimplemented:
		return nil
	case *msg.NewKeys:
		return ProtocolError{Reason: "unexpected SSH_MSG_NEWKEYS outside key exchange"}
	case *msg.ServiceRequest:
		return c.onServiceRequest(mm)
	case *msg.UserauthRequest:
		return c.onUserauthRequest(mm)
	case *msg.GlobalRequest:
		return c.onGlobalRequest(mm)
	case *msg.ChannelOpen:
		return c.onChannelOpen(mm)
	case *msg.ChannelRequest:
		return c.onChannelRequest(mm)
	case *msg.ChannelData:
		return c.onChannelData(mm)
	case *msg.ChannelExtendedData:
		return c.onChannelExtendedData(mm)
	case *msg.ChannelWindowAdjust:
		return c.channels.AdjustRemoteWindow(mm.RecipientChannel, mm.BytesToAdd)
	case *msg.ChannelEof:
		return c.onChannelEof(mm)
	case *msg.ChannelClose:
		return c.onChannelClose(mm)
	default:
		// Recognized-but-out-of-role (e.g. USERAUTH_SUCCESS, a message
		// this core only ever sends) or package msg's own Unknown catch-all:
		// RFC 4253 §11.4 calls for UNIMPLEMENTED, not a dropped connection.
		return c.writer.WritePacket(msg.Marshal(msg.NewUnimplemented(seq)))
	}
}

func (c *Conn) onServiceRequest(m *msg.ServiceRequest) error {
	if m.Name != "ssh-userauth" {
		return ProtocolError{Reason: "unsupported service " + m.Name}
	}
	return c.writer.WritePacket(msg.Marshal(msg.NewServiceAccept(m.Name)))
}

func (c *Conn) onUserauthRequest(m *msg.UserauthRequest) error {
	if m.ServiceName != "ssh-connection" {
		return c.writer.WritePacket(msg.Marshal(msg.NewUserauthFailure(authMethods, false)))
	}
	sess := handler.Session{Username: m.UserName, RemoteAddr: c.nc.RemoteAddr().String(), SessionID: c.sessionID}

	var result handler.AuthResult
	switch m.MethodName {
	case "none":
		result = c.srv.Handler.AuthNone(c.ctx, sess)
	case "password":
		if m.HasNew {
			result = c.srv.Handler.AuthPasswordChange(c.ctx, sess, m.Password, m.NewPassword)
		} else {
			result = c.srv.Handler.AuthPassword(c.ctx, sess, m.Password)
		}
	case "publickey":
		if !m.HasSignature {
			probe := c.srv.Handler.AuthPublicKey(c.ctx, sess, m.PKAlgorithm, m.PKBlob, false)
			if probe.Accept {
				return c.writer.WritePacket(msg.Marshal(msg.NewUserauthPkOk(m.PKAlgorithm, m.PKBlob)))
			}
			return c.writer.WritePacket(msg.Marshal(msg.NewUserauthFailure(authMethods, false)))
		}
		signed := append(sessionIDBlob(c.sessionID), m.PKSignedBlob...)
		ok, verr := hostkey.VerifyBlob(m.PKAlgorithm, m.PKBlob, signed, m.PKSignature)
		if verr != nil || !ok {
			result = handler.Reject
		} else {
			result = c.srv.Handler.AuthPublicKey(c.ctx, sess, m.PKAlgorithm, m.PKBlob, true)
		}
	default:
		result = handler.Reject
	}

	if result.Accept {
		c.authenticated = true
		c.username = m.UserName
		return c.writer.WritePacket(msg.Marshal(&msg.UserauthSuccess{}))
	}
	return c.writer.WritePacket(msg.Marshal(msg.NewUserauthFailure(authMethods, result.Partial)))
}

// sessionIDBlob wire-encodes the session identifier as the string RFC
// 4252 §7 prepends to the message-local signed data.
func sessionIDBlob(sid []byte) []byte {
	w := wire.NewBuffer(4 + len(sid))
	w.PutString(sid)
	return w.Bytes()
}

func (c *Conn) onGlobalRequest(m *msg.GlobalRequest) error {
	if !m.WantReply {
		return nil
	}
	return c.writer.WritePacket(msg.Marshal(&msg.RequestFailure{}))
}

func (c *Conn) onChannelOpen(m *msg.ChannelOpen) error {
	if !c.authenticated {
		return c.writer.WritePacket(msg.Marshal(msg.NewChannelOpenFailure(
			m.SenderChannel, msg.ChannelOpenAdministrativelyProhibited, "not authenticated")))
	}
	if m.ChannelType != "session" {
		return c.writer.WritePacket(msg.Marshal(msg.NewChannelOpenFailure(
			m.SenderChannel, msg.ChannelOpenUnknownChannelType, "unsupported channel type "+m.ChannelType)))
	}

	localID := c.channels.NextID()
	h := c.channels.Open(m.SenderChannel, m.InitialWindowSize, m.MaxPacketSize)
	if err := c.srv.Handler.ChannelOpenSession(c.ctx, h); err != nil {
		c.channels.Discard(localID)
		return c.writer.WritePacket(msg.Marshal(msg.NewChannelOpenFailure(
			m.SenderChannel, msg.ChannelOpenConnectFailed, err.Error())))
	}

	confirm := &msg.ChannelOpenConfirmation{
		RecipientChannel:  m.SenderChannel,
		SenderChannel:     localID,
		InitialWindowSize: channel.DefaultInitialWindow,
		MaxPacketSize:     channel.DefaultMaxPacketSize,
	}
	return c.writer.WritePacket(msg.Marshal(confirm))
}

func (c *Conn) onChannelRequest(m *msg.ChannelRequest) error {
	h, err := c.channels.Handle(m.RecipientChannel)
	if err != nil {
		return err
	}

	var handlerErr error
	switch m.RequestType {
	case "pty-req":
		req := handler.PTYRequest{
			Term:         m.TermEnv,
			WidthChars:   m.TermWidthCh,
			HeightChars:  m.TermHeightCh,
			WidthPixels:  m.TermWidthPx,
			HeightPixels: m.TermHeightPx,
			Modes:        m.TermModes,
		}
		handlerErr = c.srv.Handler.ChannelPTYRequest(c.ctx, h, req)
	case "shell":
		handlerErr = c.srv.Handler.ChannelShellRequest(c.ctx, h)
	case "exec":
		handlerErr = c.srv.Handler.ChannelExecRequest(c.ctx, h, m.Command)
	case "env", "window-change":
		// accepted with no dedicated callback
	default:
		handlerErr = fmt.Errorf("server: unsupported channel request %q", m.RequestType)
	}

	if !m.WantReply {
		return nil
	}
	remoteID, err := c.channels.RemoteID(m.RecipientChannel)
	if err != nil {
		return err
	}
	if handlerErr != nil {
		return c.writer.WritePacket(msg.Marshal(msg.NewChannelFailure(remoteID)))
	}
	return c.writer.WritePacket(msg.Marshal(msg.NewChannelSuccess(remoteID)))
}

func (c *Conn) onChannelData(m *msg.ChannelData) error {
	h, err := c.channels.Handle(m.RecipientChannel)
	if err != nil {
		return err
	}
	if err := c.channels.Receive(m.RecipientChannel, len(m.Data)); err != nil {
		return err
	}
	if err := c.srv.Handler.ChannelData(c.ctx, h, m.Data); err != nil {
		c.srv.Logger.Warn("channel data handler error", "channel", m.RecipientChannel, "err", err)
	}
	return nil
}

func (c *Conn) onChannelExtendedData(m *msg.ChannelExtendedData) error {
	h, err := c.channels.Handle(m.RecipientChannel)
	if err != nil {
		return err
	}
	if err := c.channels.Receive(m.RecipientChannel, len(m.Data)); err != nil {
		return err
	}
	if err := c.srv.Handler.ChannelExtendedData(c.ctx, h, m.DataTypeCode, m.Data); err != nil {
		c.srv.Logger.Warn("channel extended data handler error", "channel", m.RecipientChannel, "err", err)
	}
	return nil
}

func (c *Conn) onChannelEof(m *msg.ChannelEof) error {
	h, err := c.channels.Handle(m.RecipientChannel)
	if err != nil {
		return err
	}
	if err := c.channels.MarkRemoteEOF(m.RecipientChannel); err != nil {
		return err
	}
	if err := c.srv.Handler.ChannelEOF(c.ctx, h); err != nil {
		c.srv.Logger.Warn("channel eof handler error", "channel", m.RecipientChannel, "err", err)
	}
	return nil
}

// onChannelClose implements RFC 4254 §5.3: echo CHANNEL_CLOSE back if we
// had not already sent our own, then tear the channel down. A close for
// a channel this side already removed is the peer's ack of a close we
// initiated ourselves (through channel.Handle.Close) and is not an error.
func (c *Conn) onChannelClose(m *msg.ChannelClose) error {
	h, err := c.channels.Handle(m.RecipientChannel)
	if err != nil {
		if _, ok := err.(channel.UnknownChannelID); ok {
			return nil
		}
		return err
	}
	remoteID, err := c.channels.RemoteID(m.RecipientChannel)
	if err != nil {
		return err
	}
	if err := c.writer.WritePacket(msg.Marshal(msg.NewChannelClose(remoteID))); err != nil {
		return err
	}
	if err := c.channels.Close(m.RecipientChannel); err != nil {
		return err
	}
	if err := c.srv.Handler.ChannelClose(c.ctx, h); err != nil {
		c.srv.Logger.Warn("channel close handler error", "channel", m.RecipientChannel, "err", err)
	}
	return nil
}

// fail ends the connection, sending a best-effort DISCONNECT first when
// the failure is one a peer could plausibly act on.
func (c *Conn) fail(err error) {
	if err == nil {
		return
	}
	reason, desc, send := classify(err)
	if send {
		_ = c.writer.WritePacket(msg.Marshal(msg.NewDisconnect(reason, desc)))
	}
	c.srv.Logger.Debug("connection ended", "remote", c.nc.RemoteAddr(), "err", err)
}

func classify(err error) (reason uint32, description string, send bool) {
	switch e := err.(type) {
	case frame.OversizedPacket:
		return 0, "", false
	case frame.MACError:
		return msg.DisconnectKeyExchangeFailed, "mac verification failed", true
	case frame.ProtocolError:
		return msg.DisconnectProtocolError, e.Reason, true
	case kex.ProtocolError:
		return msg.DisconnectProtocolError, e.Reason, true
	case kex.NegotiationFailed:
		return msg.DisconnectKeyExchangeFailed, "no common algorithm for " + e.Category, true
	case ProtocolError:
		return msg.DisconnectProtocolError, e.Reason, true
	case channel.WindowExceeded:
		return msg.DisconnectProtocolError, e.Error(), true
	case channel.UnknownChannelID:
		return msg.DisconnectProtocolError, e.Error(), true
	case IdleTimeout:
		return msg.DisconnectProtocolError, "unexpected", true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, "", false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 0, "", false
	}
	if errors.Is(err, net.ErrClosed) {
		return 0, "", false
	}
	return msg.DisconnectProtocolError, "internal error", true
}
