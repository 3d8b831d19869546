package wire

import (
	"bytes"
	"math/big"
	"testing"
)

func TestStringRoundTrip(t *testing.T) {
	w := NewBuffer(16)
	w.PutStringValue("ssh-ed25519")
	r := NewReader(w.Bytes())
	got, err := r.GetStringValue()
	if err != nil {
		t.Fatalf("GetStringValue: %v", err)
	}
	if got != "ssh-ed25519" {
		t.Fatalf("got %q", got)
	}
}

func TestNameListRoundTrip(t *testing.T) {
	names := []string{"curve25519-sha256", "diffie-hellman-group14-sha256"}
	w := NewBuffer(32)
	w.PutNameList(names)
	r := NewReader(w.Bytes())
	got, err := r.GetNameList()
	if err != nil {
		t.Fatalf("GetNameList: %v", err)
	}
	if len(got) != 2 || got[0] != names[0] || got[1] != names[1] {
		t.Fatalf("got %v", got)
	}
}

func TestNameListEmpty(t *testing.T) {
	w := NewBuffer(8)
	w.PutNameList(nil)
	r := NewReader(w.Bytes())
	got, err := r.GetNameList()
	if err != nil {
		t.Fatalf("GetNameList: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestMpintRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 127, 128, 255, 256, 1 << 30}
	for _, c := range cases {
		w := NewBuffer(16)
		w.PutMpint(big.NewInt(c))
		r := NewReader(w.Bytes())
		got, err := r.GetMpint()
		if err != nil {
			t.Fatalf("GetMpint(%d): %v", c, err)
		}
		if got.Int64() != c {
			t.Fatalf("mpint round trip: want %d got %d", c, got.Int64())
		}
	}
}

func TestMpintLeadingZeroRule(t *testing.T) {
	// 0x80 alone would look negative without a leading zero byte.
	w := NewBuffer(8)
	w.PutMpint(big.NewInt(0x80))
	got := w.Bytes()
	// 4-byte length prefix + 2 data bytes (0x00, 0x80)
	if !bytes.Equal(got, []byte{0, 0, 0, 2, 0x00, 0x80}) {
		t.Fatalf("unexpected mpint encoding: % x", got)
	}
}

func TestShortReadErrors(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 5, 'a', 'b'})
	if _, err := r.GetString(); err == nil {
		t.Fatal("expected short read error")
	}
}
