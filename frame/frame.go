// Package frame implements the SSH binary packet protocol (RFC 4253
// §6): packet framing, padding, per-direction encryption and MAC, and
// the 35000-byte oversize limit every implementation must enforce.
//
// Unlike the teacher's onion-layered relay cells (circuit/relay.go),
// BPP packets carry a single cipher/MAC layer per hop, so encryption
// and decryption are both one XORKeyStream pass plus one MAC
// computation rather than a per-hop loop.
package frame

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cvsouth/sshd-go/transport"
)

// MaxPacketSize bounds a received packet: packet_length plus the 4-byte
// packet_length field itself plus the MAC must not exceed it. The
// writer does not check outbound packets against it (RFC 4253 §6.1: "All implementations MUST be able to process packets
// with an uncompressed payload length of 32768 bytes... and no larger
// than 35000 bytes").
const MaxPacketSize = 35000

// OversizedPacket is returned when a received packet_length would
// exceed MaxPacketSize. Per this core's error handling design, a
// connection fails immediately on this error without attempting a
// DISCONNECT reply: the oversized value may itself be garbage from a
// corrupted or malicious stream, so there is nothing trustworthy left
// to frame a reply packet around.
type OversizedPacket struct{ PacketLength uint32 }

func (e OversizedPacket) Error() string {
	return fmt.Sprintf("frame: packet length %d exceeds maximum %d", e.PacketLength, MaxPacketSize)
}

// MACError indicates the received MAC did not match the computed one.
type MACError struct{}

func (MACError) Error() string { return "frame: mac verification failed" }

// ProtocolError indicates a structurally invalid packet (bad
// padding_length, truncated fields) that isn't an oversize or MAC
// failure.
type ProtocolError struct{ Reason string }

func (e ProtocolError) Error() string { return "frame: protocol error: " + e.Reason }

// Reader decodes packets from an underlying byte stream, decrypting
// and verifying against the read half of a transport.State.
type Reader struct {
	r     io.Reader
	state *transport.State
}

// NewReader wraps r for packet-at-a-time reads, using state's read
// direction (on a server, the client-to-server keys).
func NewReader(r io.Reader, state *transport.State) *Reader {
	return &Reader{r: r, state: state}
}

// ReadPacket reads, decrypts and MAC-verifies the next packet,
// returning its sequence number and decompressed payload.
//
// The read proceeds in the two phases the wire format requires: first
// just enough bytes to learn packet_length (FillFirst — decrypting a
// stream cipher's keystream is positionally independent, so the first
// 4 bytes can be decrypted without the rest of the packet), then the
// remaining packet_length bytes plus MAC (FillRemaining).
func (rd *Reader) ReadPacket() (seq uint32, payload []byte, err error) {
	rd.state.LockRead()
	half := rd.state.Read
	rd.state.UnlockRead()

	// FillFirst: learn packet_length.
	var lenBuf [4]byte
	if _, err := io.ReadFull(rd.r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	half.XORKeyStream(lenBuf[:], lenBuf[:])
	packetLength := binary.BigEndian.Uint32(lenBuf[:])

	// packet_length + 4 + mac_len must not exceed MaxPacketSize, not
	// just packet_length + 4: a MAC that would push the whole packet
	// past the limit is still an oversize packet.
	if uint64(packetLength)+4+uint64(half.MACSize()) > MaxPacketSize {
		return 0, nil, OversizedPacket{PacketLength: packetLength}
	}
	if packetLength < 2 {
		return 0, nil, ProtocolError{Reason: "packet_length too small"}
	}

	// FillRemaining: padding_length, payload, padding.
	body := make([]byte, packetLength)
	if _, err := io.ReadFull(rd.r, body); err != nil {
		return 0, nil, err
	}
	half.XORKeyStream(body, body)

	macSize := half.MACSize()
	var macReceived []byte
	if macSize > 0 {
		macReceived = make([]byte, macSize)
		if _, err := io.ReadFull(rd.r, macReceived); err != nil {
			return 0, nil, err
		}
	}

	seq = half.NextSeq()

	if macSize > 0 {
		mac := half.NewMAC()
		var seqBuf [4]byte
		binary.BigEndian.PutUint32(seqBuf[:], seq)
		mac.Write(seqBuf[:])
		mac.Write(lenBuf[:])
		mac.Write(body)
		expected := mac.Sum(nil)
		if !hmac.Equal(expected, macReceived) {
			return 0, nil, MACError{}
		}
	}

	paddingLen := int(body[0])
	if paddingLen+1 > len(body) {
		return 0, nil, ProtocolError{Reason: "padding_length exceeds packet"}
	}
	n1 := len(body) - 1 - paddingLen
	compressed := body[1 : 1+n1]

	comp := half.Compression()
	if comp.Name == "" || comp.Name == "none" {
		return seq, append([]byte(nil), compressed...), nil
	}
	decompressor, err := comp.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return 0, nil, fmt.Errorf("frame: decompress: %w", err)
	}
	out, err := io.ReadAll(decompressor)
	if err != nil {
		return 0, nil, fmt.Errorf("frame: decompress: %w", err)
	}
	return seq, out, nil
}

// Writer encodes packets onto an underlying byte stream, encrypting
// and signing with the write half of a transport.State.
type Writer struct {
	w     io.Writer
	state *transport.State
}

// NewWriter wraps w for packet-at-a-time writes, using state's write
// direction (on a server, the server-to-client keys).
func NewWriter(w io.Writer, state *transport.State) *Writer {
	return &Writer{w: w, state: state}
}

// WritePacket compresses (if negotiated), pads, MACs and encrypts
// payload, then writes the resulting packet in one call.
//
// The whole call runs under state's write lock, not just the half
// lookup: a connection dispatcher may hand this Writer to more than one
// concurrent sender (a channel's data-relay goroutine alongside the
// dispatch loop's own replies), and holding the lock for the entire
// encrypt-then-write keeps two such packets from interleaving their
// ciphertext on the wire, and keeps a rekey's InstallWrite from
// swapping the half mid-packet.
func (wr *Writer) WritePacket(payload []byte) error {
	wr.state.LockWrite()
	defer wr.state.UnlockWrite()
	half := wr.state.Write

	wire := payload
	comp := half.Compression()
	if comp.Name != "" && comp.Name != "none" {
		var buf bytes.Buffer
		compressor := comp.NewWriter(&buf)
		if _, err := compressor.Write(payload); err != nil {
			return fmt.Errorf("frame: compress: %w", err)
		}
		if err := compressor.Close(); err != nil {
			return fmt.Errorf("frame: compress: %w", err)
		}
		wire = buf.Bytes()
	}

	bs := half.BlockSize()
	padLen := paddingLength(len(wire), bs)
	packetLength := 1 + len(wire) + padLen

	body := make([]byte, 4, 4+packetLength)
	binary.BigEndian.PutUint32(body, uint32(packetLength))
	body = append(body, byte(padLen))
	body = append(body, wire...)
	padding := make([]byte, padLen)
	if _, err := rand.Read(padding); err != nil {
		return fmt.Errorf("frame: padding: %w", err)
	}
	body = append(body, padding...)

	seq := half.NextSeq()

	var mac []byte
	if macSize := half.MACSize(); macSize > 0 {
		m := half.NewMAC()
		var seqBuf [4]byte
		binary.BigEndian.PutUint32(seqBuf[:], seq)
		m.Write(seqBuf[:])
		m.Write(body)
		mac = m.Sum(nil)
	}

	ciphertext := make([]byte, len(body))
	half.XORKeyStream(ciphertext, body)

	if _, err := wr.w.Write(ciphertext); err != nil {
		return err
	}
	if mac != nil {
		if _, err := wr.w.Write(mac); err != nil {
			return err
		}
	}
	return nil
}

// paddingLength computes padding_length so that the total length of
// (packet_length || padding_length || payload || padding) is a
// multiple of max(blockSize, 8), with padding_length in [4, 255]
// (RFC 4253 §6).
func paddingLength(payloadLen, blockSize int) int {
	bs := blockSize
	if bs < 8 {
		bs = 8
	}
	fixed := 4 + 1 + payloadLen
	pad := bs - (fixed % bs)
	if pad < 4 {
		pad += bs
	}
	return pad
}
