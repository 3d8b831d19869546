package frame

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cvsouth/sshd-go/algo"
	"github.com/cvsouth/sshd-go/transport"
)

func installBoth(t *testing.T, s *transport.State, cipherName, macName string) {
	t.Helper()
	cipherSpec, err := algo.CipherByName(cipherName)
	if err != nil {
		t.Fatalf("CipherByName: %v", err)
	}
	macSpec, err := algo.MACByName(macName)
	if err != nil {
		t.Fatalf("MACByName: %v", err)
	}
	key := make([]byte, cipherSpec.KeySize)
	iv := make([]byte, cipherSpec.IVSize)
	macKey := make([]byte, macSpec.KeySize)
	rand.Read(key)
	rand.Read(iv)
	rand.Read(macKey)

	s.LockRead()
	err = s.InstallRead(cipherSpec, key, iv, macSpec, macKey, algo.Compressions["none"])
	s.UnlockRead()
	if err != nil {
		t.Fatalf("InstallRead: %v", err)
	}
	s.LockWrite()
	err = s.InstallWrite(cipherSpec, key, iv, macSpec, macKey, algo.Compressions["none"])
	s.UnlockWrite()
	if err != nil {
		t.Fatalf("InstallWrite: %v", err)
	}
}

func TestRoundTripPreKex(t *testing.T) {
	s := transport.New() // identity cipher, no MAC
	var buf bytes.Buffer
	w := NewWriter(&buf, s)
	r := NewReader(&buf, s)

	payload := []byte("SSH-2.0-banner-like-payload")
	if err := w.WritePacket(payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	_, got, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestRoundTripEncryptedWithMAC(t *testing.T) {
	s := transport.New()
	installBoth(t, s, "aes128-ctr", "hmac-sha2-256")

	var buf bytes.Buffer
	w := NewWriter(&buf, s)
	r := NewReader(&buf, s)

	for i := 0; i < 5; i++ {
		payload := []byte{byte(20), byte(i), byte(i * 2), byte(i * 3)}
		if err := w.WritePacket(payload); err != nil {
			t.Fatalf("WritePacket %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		seq, got, err := r.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket %d: %v", i, err)
		}
		if seq != uint32(i) {
			t.Fatalf("got seq %d, want %d", seq, i)
		}
		want := []byte{byte(20), byte(i), byte(i * 2), byte(i * 3)}
		if !bytes.Equal(got, want) {
			t.Fatalf("packet %d: got %v, want %v", i, got, want)
		}
	}
}

func TestMACMismatchRejected(t *testing.T) {
	s := transport.New()
	installBoth(t, s, "aes128-ctr", "hmac-sha2-256")

	var buf bytes.Buffer
	w := NewWriter(&buf, s)
	if err := w.WritePacket([]byte("hello")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	r := NewReader(bytes.NewReader(corrupted), s)
	if _, _, err := r.ReadPacket(); err == nil {
		t.Fatal("expected MAC error")
	} else if _, ok := err.(MACError); !ok {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestOversizedPacketRejected(t *testing.T) {
	s := transport.New()
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // absurd packet_length
	r := NewReader(&buf, s)
	_, _, err := r.ReadPacket()
	if err == nil {
		t.Fatal("expected oversized packet error")
	}
	if _, ok := err.(OversizedPacket); !ok {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	s := transport.New()
	cipherSpec, _ := algo.CipherByName("aes128-ctr")
	macSpec, _ := algo.MACByName("hmac-sha2-256")
	key := make([]byte, cipherSpec.KeySize)
	iv := make([]byte, cipherSpec.IVSize)
	macKey := make([]byte, macSpec.KeySize)
	s.LockRead()
	s.InstallRead(cipherSpec, key, iv, macSpec, macKey, algo.Compressions["zlib@openssh.com"])
	s.UnlockRead()
	s.LockWrite()
	s.InstallWrite(cipherSpec, key, iv, macSpec, macKey, algo.Compressions["zlib@openssh.com"])
	s.UnlockWrite()

	var buf bytes.Buffer
	w := NewWriter(&buf, s)
	r := NewReader(&buf, s)

	payload := bytes.Repeat([]byte("compressible-data "), 50)
	if err := w.WritePacket(payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	_, got, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch (got %d bytes, want %d)", len(got), len(payload))
	}
}

func TestPaddingLengthInvariants(t *testing.T) {
	for _, bs := range []int{8, 16} {
		for payloadLen := 0; payloadLen < 64; payloadLen++ {
			pad := paddingLength(payloadLen, bs)
			if pad < 4 || pad > 255 {
				t.Fatalf("bs=%d payloadLen=%d: pad=%d out of range", bs, payloadLen, pad)
			}
			total := 4 + 1 + payloadLen + pad
			if total%bs != 0 {
				t.Fatalf("bs=%d payloadLen=%d: total=%d not aligned", bs, payloadLen, total)
			}
		}
	}
}

func FuzzReadPacket(f *testing.F) {
	f.Add([]byte{0, 0, 0, 0})
	f.Add([]byte{0, 0, 0, 5, 4, 1, 2, 3, 4, 5})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		s := transport.New()
		r := NewReader(bytes.NewReader(data), s)
		// Must never panic, whatever garbage arrives.
		_, _, _ = r.ReadPacket()
	})
}
