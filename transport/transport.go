// Package transport holds the live, per-direction cryptographic state
// of a connection: the negotiated cipher stream, MAC key, and
// compressor for each direction, plus the session identifier pinned at
// the first key exchange. The BPP codec in package frame reads from
// here; the KEX engine in package kex writes to it at every NEWKEYS.
package transport

import (
	"crypto/cipher"
	"hash"
	"sync"

	"github.com/cvsouth/sshd-go/algo"
)

// identityStream is the degenerate keystream in effect before the first
// key exchange completes: XORKeyStream is a plain copy.
type identityStream struct{}

func (identityStream) XORKeyStream(dst, src []byte) { copy(dst, src) }

// Half holds one direction's live cipher/MAC/compression state and its
// running packet sequence number (RFC 4253 §6.4 folds seq into every
// MAC, so it has to travel with the keys it was derived alongside).
// Callers serialize access to a Half through the owning State's rmu/wmu;
// Half itself holds no lock.
type Half struct {
	stream      cipher.Stream
	blockSize   int
	macKey      []byte
	macSpec     algo.MACSpec
	compression algo.CompressionSpec
	seq         uint32
}

func initialHalf() *Half {
	return &Half{
		stream:      identityStream{},
		blockSize:   8, // RFC 4253 §6: minimum block size before negotiation
		macSpec:     algo.MACSpec{Name: "none", Size: 0},
		compression: algo.Compressions["none"],
	}
}

// NextSeq returns this direction's current sequence number and
// increments it. Call exactly once per packet processed.
func (h *Half) NextSeq() uint32 {
	seq := h.seq
	h.seq++
	return seq
}

// XORKeyStream runs this direction's keystream over src into dst; the
// same operation serves both encryption and decryption under CTR mode.
func (h *Half) XORKeyStream(dst, src []byte) {
	h.stream.XORKeyStream(dst, src)
}

// BlockSize is the negotiated cipher's block size, used for padding
// alignment (RFC 4253 §6: padding_length brings the packet to a
// multiple of max(block_size, 8)).
func (h *Half) BlockSize() int { return h.blockSize }

// NewMAC returns a fresh keyed hash ready to absorb seq||plaintext, or
// nil before the first key exchange when no MAC is in effect yet.
func (h *Half) NewMAC() hash.Hash {
	if h.macSpec.Size == 0 {
		return nil
	}
	return h.macSpec.New(h.macKey)
}

// MACSize is the negotiated MAC's output length, or 0 before the first
// key exchange.
func (h *Half) MACSize() int { return h.macSpec.Size }

// Compression exposes the negotiated compression method for this
// direction.
func (h *Half) Compression() algo.CompressionSpec { return h.compression }

// State is the full per-connection transport state: one Half per
// direction, plus the session identifier. rmu guards the read Half
// (inbound packets, decrypted with the client-to-server keys on a
// server); wmu guards the write Half (outbound packets, encrypted with
// the server-to-client keys). A rekey installs each direction under its
// own lock (kex.Engine calls InstallWrite, then InstallRead), so a swap
// waits only for an in-flight encrypt or decrypt on that direction,
// the same shape as circuit.Circuit's rmu/wmu pair in the teacher.
type State struct {
	rmu   sync.Mutex
	wmu   sync.Mutex
	Read  *Half
	Write *Half

	idmu      sync.Mutex
	sessionID []byte
}

// New returns a State in its pre-key-exchange condition: identity
// stream, no MAC, no compression, in both directions.
func New() *State {
	return &State{Read: initialHalf(), Write: initialHalf()}
}

// LockRead / UnlockRead serialize access to Read across the BPP codec
// and a rekey install.
func (s *State) LockRead()   { s.rmu.Lock() }
func (s *State) UnlockRead() { s.rmu.Unlock() }

// LockWrite / UnlockWrite serialize access to Write across the BPP
// codec and a rekey install.
func (s *State) LockWrite()   { s.wmu.Lock() }
func (s *State) UnlockWrite() { s.wmu.Unlock() }

// InstallRead swaps in a freshly derived read-direction Half, carrying
// the running sequence number forward unbroken (RFC 4253 §7.3: rekeys
// never reset the packet sequence counter, only the keys). Caller must
// hold rmu (via LockRead) across the swap.
func (s *State) InstallRead(cipherSpec algo.CipherSpec, key, iv []byte, macSpec algo.MACSpec, macKey []byte, compression algo.CompressionSpec) error {
	stream, err := cipherSpec.NewStream(key, iv)
	if err != nil {
		return err
	}
	seq := s.Read.seq
	s.Read = &Half{stream: stream, blockSize: cipherSpec.BlockSize, macKey: macKey, macSpec: macSpec, compression: compression, seq: seq}
	return nil
}

// InstallWrite swaps in a freshly derived write-direction Half, carrying
// the running sequence number forward unbroken (RFC 4253 §7.3: rekeys
// never reset the packet sequence counter, only the keys). Caller must
// hold wmu (via LockWrite) across the swap.
func (s *State) InstallWrite(cipherSpec algo.CipherSpec, key, iv []byte, macSpec algo.MACSpec, macKey []byte, compression algo.CompressionSpec) error {
	stream, err := cipherSpec.NewStream(key, iv)
	if err != nil {
		return err
	}
	seq := s.Write.seq
	s.Write = &Half{stream: stream, blockSize: cipherSpec.BlockSize, macKey: macKey, macSpec: macSpec, compression: compression, seq: seq}
	return nil
}

// SessionID returns the session identifier pinned at the first key
// exchange (RFC 4253 §7.2: it never changes across subsequent rekeys,
// even though the derived keys themselves do).
func (s *State) SessionID() []byte {
	s.idmu.Lock()
	defer s.idmu.Unlock()
	return s.sessionID
}

// PinSessionID records the session identifier if none is set yet.
// Subsequent calls (from later rekeys) are no-ops.
func (s *State) PinSessionID(id []byte) {
	s.idmu.Lock()
	defer s.idmu.Unlock()
	if s.sessionID == nil {
		s.sessionID = append([]byte(nil), id...)
	}
}
