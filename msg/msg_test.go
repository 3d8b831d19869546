package msg

import (
	"bytes"
	"testing"
)

func TestTypeString(t *testing.T) {
	if got := TypeKexInit.String(); got != "SSH_MSG_KEXINIT" {
		t.Fatalf("got %q", got)
	}
	if got := Type(200).String(); got != "MSG(200)" {
		t.Fatalf("got %q", got)
	}
}

func TestDisconnectRoundTrip(t *testing.T) {
	want := NewDisconnect(DisconnectProtocolError, "negotiation failed")
	got, err := Unpack(0, want.Marshal())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	d, ok := got.(*Disconnect)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if d.ReasonCode != DisconnectProtocolError || d.Description != "negotiation failed" {
		t.Fatalf("got %+v", d)
	}
}

func TestKexInitRoundTrip(t *testing.T) {
	want := &KexInit{
		KexAlgorithms:           []string{"curve25519-sha256", "diffie-hellman-group14-sha256"},
		ServerHostKeyAlgorithms: []string{"ssh-ed25519", "rsa-sha2-512"},
		EncryptionCS:            []string{"aes256-ctr"},
		EncryptionSC:            []string{"aes256-ctr"},
		MacCS:                   []string{"hmac-sha2-256"},
		MacSC:                   []string{"hmac-sha2-256"},
		CompressionCS:           []string{"none"},
		CompressionSC:           []string{"none"},
		FirstKexPacketFollows:   true,
	}
	copy(want.Cookie[:], []byte("0123456789abcdef"))

	got, err := Unpack(0, want.Marshal())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	k, ok := got.(*KexInit)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if k.Cookie != want.Cookie {
		t.Fatalf("cookie mismatch: %x vs %x", k.Cookie, want.Cookie)
	}
	if len(k.KexAlgorithms) != 2 || k.KexAlgorithms[0] != "curve25519-sha256" {
		t.Fatalf("kex algorithms mismatch: %v", k.KexAlgorithms)
	}
	if !k.FirstKexPacketFollows {
		t.Fatal("expected FirstKexPacketFollows true")
	}
}

func TestUserauthRequestPasswordRoundTrip(t *testing.T) {
	want := &UserauthRequest{
		UserName:    "alice",
		ServiceName: "ssh-connection",
		MethodName:  "password",
		Password:    "hunter2",
	}
	got, err := Unpack(0, want.Marshal())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	u, ok := got.(*UserauthRequest)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if u.UserName != "alice" || u.Password != "hunter2" || u.HasNew {
		t.Fatalf("got %+v", u)
	}
}

func TestUserauthRequestPublickeyRoundTrip(t *testing.T) {
	blob := []byte("fake-public-key-blob")
	sig := []byte("fake-signature")
	want := &UserauthRequest{
		UserName:     "bob",
		ServiceName:  "ssh-connection",
		MethodName:   "publickey",
		HasSignature: true,
		PKAlgorithm:  "ssh-ed25519",
		PKBlob:       blob,
		PKSignature:  sig,
	}
	payload := want.Marshal()
	got, err := Unpack(0, payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	u, ok := got.(*UserauthRequest)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if !bytes.Equal(u.PKBlob, blob) || !bytes.Equal(u.PKSignature, sig) {
		t.Fatalf("blob/sig mismatch: %+v", u)
	}
	// SignedBlob must cover everything, from the message type byte up to
	// but not including the signature string.
	wantSigned := payload[:len(payload)-len(sig)-4]
	if !bytes.Equal(u.PKSignedBlob, wantSigned) {
		t.Fatalf("signed blob mismatch:\ngot  % x\nwant % x", u.PKSignedBlob, wantSigned)
	}
}

func TestChannelRequestPtyReqRoundTrip(t *testing.T) {
	want := &ChannelRequest{
		RecipientChannel: 7,
		RequestType:      "pty-req",
		WantReply:        true,
		TermEnv:          "xterm-256color",
		TermWidthCh:      80,
		TermHeightCh:     24,
	}
	got, err := Unpack(0, want.Marshal())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	c, ok := got.(*ChannelRequest)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if c.RecipientChannel != 7 || c.TermEnv != "xterm-256color" || c.TermWidthCh != 80 {
		t.Fatalf("got %+v", c)
	}
}

func TestChannelDataRoundTrip(t *testing.T) {
	want := NewChannelData(3, []byte("hello"))
	got, err := Unpack(0, want.Marshal())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	c, ok := got.(*ChannelData)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if c.RecipientChannel != 3 || string(c.Data) != "hello" {
		t.Fatalf("got %+v", c)
	}
}

func TestUnpackUnknownType(t *testing.T) {
	payload := []byte{byte(Type(222)), 1, 2, 3}
	got, err := Unpack(42, payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	u, ok := got.(*Unknown)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if u.Seq != 42 || u.Code != Type(222) || !bytes.Equal(u.Payload, []byte{1, 2, 3}) {
		t.Fatalf("got %+v", u)
	}
}

func TestUnpackKexSubProtocolCodeIsUnknown(t *testing.T) {
	// Codes 30-49 are never decoded through this package.
	payload := []byte{byte(TypeKexECDHInit), 9, 9}
	got, err := Unpack(0, payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if _, ok := got.(*Unknown); !ok {
		t.Fatalf("expected Unknown, got %T", got)
	}
}

func TestUnpackEmptyPayload(t *testing.T) {
	if _, err := Unpack(0, nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func FuzzUnpack(f *testing.F) {
	f.Add([]byte{byte(TypeDisconnect), 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	f.Add([]byte{byte(TypeKexInit)})
	f.Add([]byte{byte(TypeChannelData), 0, 0, 0, 1, 0, 0, 0, 0})
	f.Add([]byte{byte(TypeUserauthRequest)})
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := Unpack(0, data)
		if err != nil {
			return
		}
		// Every successfully decoded message must re-marshal without panicking.
		_ = m.Marshal()
	})
}
