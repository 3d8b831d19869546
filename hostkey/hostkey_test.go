package hostkey

import "testing"

func TestEd25519SignVerify(t *testing.T) {
	k, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	data := []byte("exchange hash")
	sig, err := k.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := k.Verify(data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected valid signature")
	}
	ok, _ = k.Verify([]byte("different data"), sig)
	if ok {
		t.Fatal("expected signature to not verify against different data")
	}
}

func TestEd25519PublicKeyBlobFormat(t *testing.T) {
	k, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	blob := k.PublicKeyBlob()
	if len(blob) != 4+len("ssh-ed25519")+4+32 {
		t.Fatalf("unexpected blob length %d", len(blob))
	}
}

func TestRSASignVerify(t *testing.T) {
	k, err := GenerateRSA(2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	data := []byte("exchange hash")
	sig, err := k.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := k.Verify(data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected valid signature")
	}
}

func TestSetLookup(t *testing.T) {
	ed, _ := GenerateEd25519()
	rsaKey, _ := GenerateRSA(2048)
	set := NewSet(ed, rsaKey)

	if _, ok := set.Lookup("ssh-ed25519"); !ok {
		t.Fatal("expected ssh-ed25519 in set")
	}
	if _, ok := set.Lookup("ssh-rsa"); !ok {
		t.Fatal("expected ssh-rsa in set")
	}
	if _, ok := set.Lookup("ecdsa-sha2-nistp256"); ok {
		t.Fatal("did not expect unregistered algorithm")
	}
	algos := set.Algorithms()
	if len(algos) != 2 {
		t.Fatalf("got %d algorithms", len(algos))
	}
}
