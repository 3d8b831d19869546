// Package channel implements the SSH channel registry (RFC 4254 §5):
// local id allocation, per-channel window accounting with
// threshold-triggered top-up, lifecycle state tracking, and the
// Handle facade a handler.Handler uses to send data back without
// touching the registry's internals directly.
package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cvsouth/sshd-go/msg"
)

// DefaultInitialWindow is the local receive window this core advertises
// on every channel it opens or accepts (RFC 4254 §5.1 only requires
// "a reasonable" initial value; OpenSSH itself uses a multiple of
// the typical 32768-byte max packet size).
const DefaultInitialWindow = 1 << 20

// DefaultMaxPacketSize is the largest SSH_MSG_CHANNEL_DATA payload this
// core will advertise accepting on a channel.
const DefaultMaxPacketSize = 32768

// windowTopUpThreshold is the point at which Receive issues a
// SSH_MSG_CHANNEL_WINDOW_ADJUST to refill the local window back to
// DefaultInitialWindow, grounded on stream/flow.go's threshold-triggered
// (rather than per-byte) accounting.
const windowTopUpThreshold = DefaultInitialWindow / 2

// State is a channel's position in the lifecycle spec.md §4.6 defines.
type State int

const (
	Opening State = iota
	Open
	EofSent
	EofReceived
	EofBoth
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case EofSent:
		return "eof-sent"
	case EofReceived:
		return "eof-received"
	case EofBoth:
		return "eof-both"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WindowExceeded is returned when a CHANNEL_DATA/EXTENDED_DATA delivery
// would consume more than the local window currently permits.
type WindowExceeded struct {
	ChannelID uint32
	Requested uint32
	Available uint32
}

func (e WindowExceeded) Error() string {
	return fmt.Sprintf("channel %d: window exceeded: requested %d, available %d", e.ChannelID, e.Requested, e.Available)
}

// UnknownChannelID is returned for any operation naming a local channel
// id the registry does not recognize.
type UnknownChannelID struct{ ID uint32 }

func (e UnknownChannelID) Error() string {
	return fmt.Sprintf("channel: unknown channel id %d", e.ID)
}

// ClosedChannel is returned by Handle operations on a channel that has
// already transitioned to Closed.
type ClosedChannel struct{ ID uint32 }

func (e ClosedChannel) Error() string {
	return fmt.Sprintf("channel %d: already closed", e.ID)
}

// entry is the per-channel record (spec.md §4.3's Channel Record),
// owned exclusively by Registry; handlers only ever see it through a
// Handle.
type entry struct {
	mu sync.Mutex

	localID       uint32
	remoteID      uint32
	localWindow   uint32
	remoteWindow  uint32
	maxPacketSize uint32
	state         State
	localEOFFlag  bool
	remoteEOFFlag bool

	remoteWindowCond *sync.Cond
}

func (e *entry) deriveState() State {
	switch {
	case e.state == Closed:
		return Closed
	case e.localEOF() && e.remoteEOF():
		return EofBoth
	case e.localEOF():
		return EofSent
	case e.remoteEOF():
		return EofReceived
	default:
		return e.state
	}
}

// localEOF/remoteEOF are kept as two booleans on entry, alongside
// state, rather than as further values of state: state holds only
// Opening/Open/Closed, and the Eof* labels of spec.md's lifecycle
// diagram are derived from state plus these flags.
func (e *entry) localEOF() bool  { return e.localEOFFlag }
func (e *entry) remoteEOF() bool { return e.remoteEOFFlag }

// Registry tracks every channel live on one connection and allocates
// new local ids from a monotonic counter, grounded on
// stream.nextStreamID's atomic counter in the teacher.
type Registry struct {
	mu      sync.Mutex
	nextID  atomic.Uint32
	entries map[uint32]*entry
	writer  packetWriter
}

// packetWriter is the subset of *frame.Writer the registry needs to
// send window-adjust/data/close frames. An interface rather than the
// concrete type so the dispatcher (package server) can hand the
// registry a writer that blocks while a rekey is in flight, without
// this package knowing anything about rekeys.
type packetWriter interface {
	WritePacket(payload []byte) error
}

// NewRegistry returns an empty Registry that sends window-adjust and
// data frames through writer.
func NewRegistry(writer packetWriter) *Registry {
	return &Registry{entries: make(map[uint32]*entry), writer: writer}
}

// Open allocates a new local channel id for a channel the dispatcher
// just decided to accept, records it as Open, and returns the Handle a
// handler.Handler uses to talk back.
func (r *Registry) Open(remoteID, remoteWindow, maxPacketSize uint32) *Handle {
	id := r.nextID.Add(1) - 1
	e := &entry{
		localID:       id,
		remoteID:      remoteID,
		localWindow:   DefaultInitialWindow,
		remoteWindow:  remoteWindow,
		maxPacketSize: maxPacketSize,
		state:         Open,
	}
	e.remoteWindowCond = sync.NewCond(&e.mu)
	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()
	return &Handle{id: id, reg: r}
}

// NextID previews the id Open will hand out next, for building the
// SSH_MSG_CHANNEL_OPEN_CONFIRMATION before the entry exists.
func (r *Registry) NextID() uint32 { return r.nextID.Load() }

func (r *Registry) lookup(id uint32) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, UnknownChannelID{ID: id}
	}
	return e, nil
}

// RemoteWindow reports a channel's outbound (remote-permitted) window,
// for tests and diagnostics.
func (r *Registry) RemoteWindow(localID uint32) (uint32, error) {
	e, err := r.lookup(localID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteWindow, nil
}

// RemoteID reports the peer's own channel number for a local channel id —
// the value a dispatch reply (CHANNEL_SUCCESS, CHANNEL_FAILURE, the second
// CHANNEL_CLOSE of a close exchange) must echo back as recipient_channel.
func (r *Registry) RemoteID(localID uint32) (uint32, error) {
	e, err := r.lookup(localID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteID, nil
}

// State reports a channel's current lifecycle state.
func (r *Registry) State(localID uint32) (State, error) {
	e, err := r.lookup(localID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deriveState(), nil
}

// AdjustRemoteWindow applies an inbound SSH_MSG_CHANNEL_WINDOW_ADJUST,
// waking any Handle.SendData call blocked waiting for window.
func (r *Registry) AdjustRemoteWindow(localID uint32, amount uint32) error {
	e, err := r.lookup(localID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.remoteWindow += amount
	e.remoteWindowCond.Broadcast()
	e.mu.Unlock()
	return nil
}

// Receive accounts n bytes of inbound SSH_MSG_CHANNEL_DATA or
// SSH_MSG_CHANNEL_EXTENDED_DATA against the local window (spec.md §4.6:
// "CHANNEL_DATA to a channel with local_window < len fails with
// WindowExceeded"), and issues a top-up SSH_MSG_CHANNEL_WINDOW_ADJUST
// once the window drops below half its initial size.
func (r *Registry) Receive(localID uint32, n int) error {
	e, err := r.lookup(localID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if uint32(n) > e.localWindow {
		avail := e.localWindow
		e.mu.Unlock()
		return WindowExceeded{ChannelID: localID, Requested: uint32(n), Available: avail}
	}
	e.localWindow -= uint32(n)
	var topUp uint32
	if e.localWindow < windowTopUpThreshold {
		topUp = DefaultInitialWindow - e.localWindow
		e.localWindow += topUp
	}
	remoteID := e.remoteID
	e.mu.Unlock()
	if topUp == 0 {
		return nil
	}
	return r.writer.WritePacket(msg.Marshal(msg.NewChannelWindowAdjust(remoteID, topUp)))
}

// MarkLocalEOF records that this side has sent SSH_MSG_CHANNEL_EOF.
func (r *Registry) MarkLocalEOF(localID uint32) error {
	e, err := r.lookup(localID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.localEOFFlag = true
	e.mu.Unlock()
	return nil
}

// MarkRemoteEOF records that the peer has sent SSH_MSG_CHANNEL_EOF.
func (r *Registry) MarkRemoteEOF(localID uint32) error {
	e, err := r.lookup(localID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.remoteEOFFlag = true
	e.mu.Unlock()
	return nil
}

// Close marks a channel Closed and removes it from the registry. It
// does not check whether CHANNEL_CLOSE has been exchanged; the
// dispatcher calls it after echoing the peer's CLOSE, and Handle.Close
// calls it right after sending this side's CLOSE.
func (r *Registry) Close(localID uint32) error {
	e, err := r.lookup(localID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.state = Closed
	e.remoteWindowCond.Broadcast()
	e.mu.Unlock()
	r.mu.Lock()
	delete(r.entries, localID)
	r.mu.Unlock()
	return nil
}

// Discard removes a channel's entry without sending anything on the
// wire, for the case where CHANNEL_OPEN was never confirmed (the
// handler rejected it) so there is no remote-visible channel to close.
func (r *Registry) Discard(localID uint32) {
	e, err := r.lookup(localID)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.state = Closed
	e.remoteWindowCond.Broadcast()
	e.mu.Unlock()
	r.mu.Lock()
	delete(r.entries, localID)
	r.mu.Unlock()
}

// Handle returns the embedder-facing reference to an already-open
// channel, for dispatch of messages (CHANNEL_REQUEST, CHANNEL_DATA, …)
// that name a channel by the id Open returned earlier rather than
// creating a new one.
func (r *Registry) Handle(localID uint32) (*Handle, error) {
	if _, err := r.lookup(localID); err != nil {
		return nil, err
	}
	return &Handle{id: localID, reg: r}, nil
}

// Handle is the embedder-facing reference to one open channel,
// carrying only the local id and a pointer back to the owning
// Registry — the same ownership split as ChannelHandle in the
// original connection dispatcher this core's design is grounded on.
type Handle struct {
	id  uint32
	reg *Registry
}

// ID returns this channel's local id.
func (h *Handle) ID() uint32 { return h.id }

// SendData writes data as one or more SSH_MSG_CHANNEL_DATA frames, each
// no larger than the remote window then available and the remote
// maximum packet size, blocking while the window is zero (spec.md's P6
// invariant: the window never goes negative). It returns once every
// chunk is written. ctx cancellation unblocks a pending wait.
func (h *Handle) SendData(ctx context.Context, data []byte) error {
	return h.send(ctx, data, false, 0)
}

// SendExtendedData writes a SSH_MSG_CHANNEL_EXTENDED_DATA frame (e.g.
// stderr, dataTypeCode == msg.SSHExtendedDataStderr), under the same
// window discipline as SendData.
func (h *Handle) SendExtendedData(ctx context.Context, dataTypeCode uint32, data []byte) error {
	return h.send(ctx, data, true, dataTypeCode)
}

func (h *Handle) send(ctx context.Context, data []byte, extended bool, dataTypeCode uint32) error {
	e, err := h.reg.lookup(h.id)
	if err != nil {
		return err
	}
	for len(data) > 0 {
		chunk, err := waitForWindow(ctx, e, data)
		if err != nil {
			return err
		}
		var packet []byte
		if extended {
			packet = msg.Marshal(msg.NewChannelExtendedData(e.remoteID, chunk))
		} else {
			packet = msg.Marshal(msg.NewChannelData(e.remoteID, chunk))
		}
		if err := h.reg.writer.WritePacket(packet); err != nil {
			return err
		}
		data = data[len(chunk):]
	}
	return nil
}

// waitForWindow blocks until the remote window can admit at least one
// byte of data, then reserves and returns the largest prefix it
// currently permits (capped at maxPacketSize).
func waitForWindow(ctx context.Context, e *entry, data []byte) ([]byte, error) {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				e.mu.Lock()
				e.remoteWindowCond.Broadcast()
				e.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for e.remoteWindow == 0 && e.state != Closed {
		if ctx != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.remoteWindowCond.Wait()
	}
	if e.state == Closed {
		return nil, ClosedChannel{ID: e.localID}
	}
	n := uint32(len(data))
	if n > e.remoteWindow {
		n = e.remoteWindow
	}
	if n > e.maxPacketSize {
		n = e.maxPacketSize
	}
	e.remoteWindow -= n
	return data[:n], nil
}

// SendEOF writes SSH_MSG_CHANNEL_EOF and records the local-eof state.
func (h *Handle) SendEOF() error {
	e, err := h.reg.lookup(h.id)
	if err != nil {
		return err
	}
	if err := h.reg.writer.WritePacket(msg.Marshal(msg.NewChannelEof(e.remoteID))); err != nil {
		return err
	}
	return h.reg.MarkLocalEOF(h.id)
}

// Close writes SSH_MSG_CHANNEL_CLOSE and removes the channel from the
// registry.
func (h *Handle) Close() error {
	e, err := h.reg.lookup(h.id)
	if err != nil {
		return err
	}
	if err := h.reg.writer.WritePacket(msg.Marshal(msg.NewChannelClose(e.remoteID))); err != nil {
		return err
	}
	return h.reg.Close(h.id)
}

// RequestPTY validates that the channel is still registered. pty-req is
// always client-to-server in this core (a PTY request only ever arrives
// as a handler.Handler callback, never something the server side
// initiates), so this has no wire effect; it exists to keep Handle's
// method set matching spec §9 for embedders that want a uniform
// pre-flight check before acting on a pty-req callback.
func (h *Handle) RequestPTY() error {
	_, err := h.reg.lookup(h.id)
	return err
}
