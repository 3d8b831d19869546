package transport

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cvsouth/sshd-go/algo"
)

func TestInitialStateIsIdentityNoMac(t *testing.T) {
	s := New()
	if s.Read.MACSize() != 0 || s.Write.MACSize() != 0 {
		t.Fatal("expected no MAC before first key exchange")
	}
	src := []byte("hello world")
	dst := make([]byte, len(src))
	s.Read.XORKeyStream(dst, src)
	if !bytes.Equal(dst, src) {
		t.Fatalf("expected identity stream, got %q", dst)
	}
}

func TestInstallReadWrite(t *testing.T) {
	s := New()
	cipherSpec := algo.Ciphers["aes128-ctr"]
	macSpec := algo.MACs["hmac-sha2-256"]
	key := make([]byte, cipherSpec.KeySize)
	iv := make([]byte, cipherSpec.IVSize)
	rand.Read(key)
	rand.Read(iv)
	macKey := make([]byte, macSpec.KeySize)
	rand.Read(macKey)

	s.LockRead()
	err := s.InstallRead(cipherSpec, key, iv, macSpec, macKey, algo.Compressions["none"])
	s.UnlockRead()
	if err != nil {
		t.Fatalf("InstallRead: %v", err)
	}
	if s.Read.MACSize() != macSpec.Size {
		t.Fatalf("got mac size %d, want %d", s.Read.MACSize(), macSpec.Size)
	}
	if s.Read.BlockSize() != cipherSpec.BlockSize {
		t.Fatalf("got block size %d, want %d", s.Read.BlockSize(), cipherSpec.BlockSize)
	}

	plaintext := []byte("session data")
	ciphertext := make([]byte, len(plaintext))
	s.Read.XORKeyStream(ciphertext, plaintext)
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("expected ciphertext to differ from plaintext after install")
	}
}

func TestSessionIDPinnedOnce(t *testing.T) {
	s := New()
	s.PinSessionID([]byte("first-session-id"))
	s.PinSessionID([]byte("second-should-be-ignored"))
	if string(s.SessionID()) != "first-session-id" {
		t.Fatalf("got %q", s.SessionID())
	}
}

func TestNextSeqIncrements(t *testing.T) {
	h := initialHalf()
	if got := h.NextSeq(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
	if got := h.NextSeq(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestInstallPreservesSequenceAcrossRekey(t *testing.T) {
	s := New()
	cipherSpec := algo.Ciphers["aes128-ctr"]
	macSpec := algo.MACs["hmac-sha2-256"]
	key := make([]byte, cipherSpec.KeySize)
	iv := make([]byte, cipherSpec.IVSize)
	macKey := make([]byte, macSpec.KeySize)

	s.Read.NextSeq()
	s.Read.NextSeq()
	s.Read.NextSeq()

	s.LockRead()
	err := s.InstallRead(cipherSpec, key, iv, macSpec, macKey, algo.Compressions["none"])
	s.UnlockRead()
	if err != nil {
		t.Fatalf("InstallRead: %v", err)
	}
	if got := s.Read.NextSeq(); got != 3 {
		t.Fatalf("rekey reset sequence counter: got %d, want 3 (unbroken from before rekey)", got)
	}
}
