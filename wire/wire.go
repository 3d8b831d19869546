// Package wire implements the SSH wire-format primitives used to build
// and parse message payloads: byte, uint32, uint64, boolean, string,
// mpint and name-list (RFC 4251 §5).
package wire

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Buffer accumulates an outbound message payload.
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty Buffer with the given initial capacity hint.
func NewBuffer(capHint int) *Buffer {
	return &Buffer{b: make([]byte, 0, capHint)}
}

// Bytes returns the accumulated payload.
func (w *Buffer) Bytes() []byte { return w.b }

// Len returns the number of bytes written so far.
func (w *Buffer) Len() int { return len(w.b) }

func (w *Buffer) PutByte(v byte) {
	w.b = append(w.b, v)
}

func (w *Buffer) PutBool(v bool) {
	if v {
		w.b = append(w.b, 1)
	} else {
		w.b = append(w.b, 0)
	}
}

func (w *Buffer) PutUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.b = append(w.b, buf[:]...)
}

func (w *Buffer) PutUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.b = append(w.b, buf[:]...)
}

// PutRaw appends bytes verbatim, with no length prefix. Used for
// trailing message fields whose encoding is already complete, such as
// a channel-type-specific suffix or an already-framed sub-payload.
func (w *Buffer) PutRaw(b []byte) {
	w.b = append(w.b, b...)
}

// PutString writes a 4-byte length prefix followed by raw bytes.
func (w *Buffer) PutString(s []byte) {
	w.PutUint32(uint32(len(s)))
	w.b = append(w.b, s...)
}

// PutStringValue is a convenience wrapper for Go strings.
func (w *Buffer) PutStringValue(s string) {
	w.PutString([]byte(s))
}

// PutNameList writes a comma-joined, length-prefixed list with no
// trailing comma (RFC 4251 §5).
func (w *Buffer) PutNameList(names []string) {
	joined := joinNames(names)
	w.PutStringValue(joined)
}

func joinNames(names []string) string {
	out := make([]byte, 0, len(names)*8)
	for i, n := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, n...)
	}
	return string(out)
}

// PutMpint writes a non-negative multi-precision integer using the
// two's-complement, leading-zero-stripped encoding of RFC 4251 §5.
// Negative values are not supported and panic.
func (w *Buffer) PutMpint(v *big.Int) {
	if v.Sign() == 0 {
		w.PutUint32(0)
		return
	}
	b := v.Bytes()
	// A high bit set on a positive number needs a leading zero byte
	// so it isn't read back as negative.
	if v.Sign() > 0 && b[0]&0x80 != 0 {
		padded := make([]byte, len(b)+1)
		copy(padded[1:], b)
		b = padded
	}
	if v.Sign() < 0 {
		panic("wire: negative mpint encoding not supported by this protocol")
	}
	w.PutString(b)
}

// Reader parses a received message payload.
type Reader struct {
	b   []byte
	pos int
}

// NewReader wraps payload for sequential parsing.
func NewReader(payload []byte) *Reader {
	return &Reader{b: payload}
}

// Remaining returns the unread tail of the payload.
func (r *Reader) Remaining() []byte { return r.b[r.pos:] }

var errShort = fmt.Errorf("wire: payload too short")

func (r *Reader) need(n int) error {
	if len(r.b)-r.pos < n {
		return errShort
	}
	return nil
}

func (r *Reader) GetByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) GetBool() (bool, error) {
	v, err := r.GetByte()
	return v != 0, err
}

func (r *Reader) GetUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

// GetString reads a length-prefixed byte string.
func (r *Reader) GetString() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	v := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return v, nil
}

// GetStringValue reads a length-prefixed string as a Go string.
func (r *Reader) GetStringValue() (string, error) {
	v, err := r.GetString()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetNameList reads a comma-separated name-list, splitting on commas.
// An empty string yields an empty (non-nil) slice.
func (r *Reader) GetNameList() ([]string, error) {
	s, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	if s == "" {
		return []string{}, nil
	}
	return splitNames(s), nil
}

func splitNames(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// GetMpint reads a multi-precision integer. Negative values (high bit
// set in the first byte) are rejected with an error.
func (r *Reader) GetMpint() (*big.Int, error) {
	b, err := r.GetString()
	if err != nil {
		return nil, err
	}
	v := new(big.Int)
	if len(b) == 0 {
		return v, nil
	}
	if b[0]&0x80 != 0 {
		return nil, fmt.Errorf("wire: negative mpint not supported by this protocol")
	}
	v.SetBytes(b)
	return v, nil
}
