package server

import "sync"

// gate lets the dispatcher hold back every non-KEX outbound write for
// the duration of a key exchange (spec.md §5: "Non-KEX outbound
// messages generated during KEX must be held... the implementation
// may enforce this by suspending the outbound drain branch for the
// KEX duration"). kex.Engine and the dispatch goroutine's own replies
// write directly through the ungated *frame.Writer (the dispatch
// goroutine is the one running the exchange, so it sends nothing else
// meanwhile); channel.Handle sends and keepalives go through a
// gatedWriter that blocks in wait() while the gate is paused.
type gate struct {
	mu   sync.Mutex
	open chan struct{}
}

func newGate() *gate {
	g := &gate{open: make(chan struct{})}
	close(g.open)
	return g
}

// wait blocks until the gate is open (i.e. no key exchange in flight).
func (g *gate) wait() {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()
	<-ch
}

// pause closes the gate, blocking future wait() callers until resume.
func (g *gate) pause() {
	g.mu.Lock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
		// already paused
	}
	g.mu.Unlock()
}

// resume reopens the gate, releasing anyone blocked in wait().
func (g *gate) resume() {
	g.mu.Lock()
	select {
	case <-g.open:
		// already open
	default:
		close(g.open)
	}
	g.mu.Unlock()
}

// gatedWriter serializes and defers outbound packet writes behind a
// gate, the same *frame.Writer instance kex.Engine also writes to
// directly (ungated) during the handshake itself.
type gatedWriter struct {
	w packetWriter
	g *gate
}

type packetWriter interface {
	WritePacket(payload []byte) error
}

func (gw *gatedWriter) WritePacket(payload []byte) error {
	gw.g.wait()
	return gw.w.WritePacket(payload)
}
