package negotiate

import "testing"

func TestPick(t *testing.T) {
	cases := []struct {
		name   string
		client []string
		server []string
		want   string
		ok     bool
	}{
		{"first match wins", []string{"a", "b", "c"}, []string{"c", "b"}, "b", true},
		{"client order respected", []string{"b", "a"}, []string{"a", "b"}, "b", true},
		{"no overlap", []string{"a"}, []string{"b"}, "", false},
		{"empty client", nil, []string{"a"}, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Pick(c.client, c.server)
			if got != c.want || ok != c.ok {
				t.Fatalf("Pick(%v, %v) = (%q, %v), want (%q, %v)", c.client, c.server, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestNegotiateFullAgreement(t *testing.T) {
	p := Default()
	r, err := Negotiate(p, p)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if r.Kex != "curve25519-sha256" {
		t.Fatalf("got kex %q", r.Kex)
	}
	if r.ServerHostKey != "ssh-ed25519" {
		t.Fatalf("got host key algo %q", r.ServerHostKey)
	}
}

func TestNegotiateNoCommonAlgorithm(t *testing.T) {
	client := Preference{KexAlgorithms: []string{"diffie-hellman-group1-sha1"}}
	server := Default()
	_, err := Negotiate(client, server)
	if err == nil {
		t.Fatal("expected error")
	}
	nerr, ok := err.(ErrNoCommonAlgorithm)
	if !ok {
		t.Fatalf("got %T", err)
	}
	if nerr.Category != "kex_algorithms" {
		t.Fatalf("got category %q", nerr.Category)
	}
}

func TestToKexInit(t *testing.T) {
	p := Default()
	var cookie [16]byte
	ki := p.ToKexInit(cookie, false)
	if len(ki.KexAlgorithms) == 0 || ki.KexAlgorithms[0] != "curve25519-sha256" {
		t.Fatalf("got %v", ki.KexAlgorithms)
	}
	if ki.FirstKexPacketFollows {
		t.Fatal("expected false")
	}
}
