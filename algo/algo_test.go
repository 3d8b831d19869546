package algo

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
)

func TestCipherByNameRoundTrip(t *testing.T) {
	for name, spec := range Ciphers {
		key := make([]byte, spec.KeySize)
		iv := make([]byte, spec.IVSize)
		rand.Read(key)
		rand.Read(iv)

		enc, err := spec.NewStream(key, iv)
		if err != nil {
			t.Fatalf("%s: NewStream: %v", name, err)
		}
		dec, err := spec.NewStream(key, iv)
		if err != nil {
			t.Fatalf("%s: NewStream: %v", name, err)
		}
		plaintext := []byte("the quick brown fox jumps over the lazy dog")
		ciphertext := make([]byte, len(plaintext))
		enc.XORKeyStream(ciphertext, plaintext)
		recovered := make([]byte, len(plaintext))
		dec.XORKeyStream(recovered, ciphertext)
		if !bytes.Equal(recovered, plaintext) {
			t.Fatalf("%s: round trip mismatch", name)
		}
	}
}

func TestCipherByNameUnknown(t *testing.T) {
	if _, err := CipherByName("des-cbc"); err == nil {
		t.Fatal("expected error for unsupported cipher")
	}
}

func TestMACByName(t *testing.T) {
	spec, err := MACByName("hmac-sha2-256")
	if err != nil {
		t.Fatalf("MACByName: %v", err)
	}
	key := make([]byte, spec.KeySize)
	h := spec.New(key)
	h.Write([]byte("data"))
	if h.Size() != spec.Size {
		t.Fatalf("got size %d, want %d", h.Size(), spec.Size)
	}
}

func TestCompressionNoneIsPassthrough(t *testing.T) {
	spec, err := CompressionByName("none")
	if err != nil {
		t.Fatalf("CompressionByName: %v", err)
	}
	var buf bytes.Buffer
	w := spec.NewWriter(&buf)
	w.Write([]byte("hello"))
	w.Close()
	if buf.String() != "hello" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestCompressionZlibRoundTrip(t *testing.T) {
	spec, err := CompressionByName("zlib@openssh.com")
	if err != nil {
		t.Fatalf("CompressionByName: %v", err)
	}
	var buf bytes.Buffer
	w := spec.NewWriter(&buf)
	payload := []byte("repeat repeat repeat repeat repeat")
	w.Write(payload)
	w.Close()

	r, err := spec.NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestCompressionPlainZlibNameResolves(t *testing.T) {
	if _, err := CompressionByName("zlib"); err != nil {
		t.Fatalf("CompressionByName(\"zlib\"): %v", err)
	}
}
