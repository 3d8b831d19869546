// Package hostkey implements this core's server host key types: the
// key record a server authenticates itself with during key exchange
// (RFC 4253 §7.1, §8). Each Key knows its own wire-format public blob
// and how to produce a wire-format signature blob, so package kex never
// needs to know which concrete algorithm is in play.
package hostkey

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"fmt"
	"math/big"

	"github.com/cvsouth/sshd-go/wire"
)

// Key is a server host key of any supported algorithm.
type Key interface {
	// Algorithm is the name as it appears in server_host_key_algorithms
	// (e.g. "ssh-ed25519", "ssh-rsa").
	Algorithm() string
	// PublicKeyBlob is the wire-format public key: string algorithm
	// followed by algorithm-specific fields (RFC 4253 §6.6).
	PublicKeyBlob() []byte
	// Sign produces a wire-format signature blob over data: string
	// algorithm followed by string signature.
	Sign(data []byte) ([]byte, error)
	// Verify checks a wire-format signature blob against data.
	Verify(data, sigBlob []byte) (bool, error)
}

// Set is a host key ring, keyed by algorithm name.
type Set struct {
	keys map[string]Key
}

// NewSet builds a Set from the given keys, keyed by their own
// Algorithm().
func NewSet(keys ...Key) *Set {
	s := &Set{keys: make(map[string]Key, len(keys))}
	for _, k := range keys {
		s.keys[k.Algorithm()] = k
	}
	return s
}

// Lookup returns the key for a negotiated server_host_key_algorithms
// name, if this server carries one.
func (s *Set) Lookup(algorithm string) (Key, bool) {
	k, ok := s.keys[algorithm]
	return k, ok
}

// Algorithms lists the algorithm names this set can offer, in
// insertion order is not guaranteed; callers that need a stable order
// should intersect against their own preference list instead of
// ranging over this.
func (s *Set) Algorithms() []string {
	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	return names
}

// --- ssh-ed25519 ---

// Ed25519Key is an "ssh-ed25519" host key (RFC 8709).
type Ed25519Key struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateEd25519 creates a fresh ssh-ed25519 host key.
func GenerateEd25519() (*Ed25519Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Key{Public: pub, Private: priv}, nil
}

func (k *Ed25519Key) Algorithm() string { return "ssh-ed25519" }

func (k *Ed25519Key) PublicKeyBlob() []byte {
	w := wire.NewBuffer(64)
	w.PutStringValue("ssh-ed25519")
	w.PutString(k.Public)
	return w.Bytes()
}

func (k *Ed25519Key) Sign(data []byte) ([]byte, error) {
	sig := ed25519.Sign(k.Private, data)
	w := wire.NewBuffer(96)
	w.PutStringValue("ssh-ed25519")
	w.PutString(sig)
	return w.Bytes(), nil
}

func (k *Ed25519Key) Verify(data, sigBlob []byte) (bool, error) {
	r := wire.NewReader(sigBlob)
	algorithm, err := r.GetStringValue()
	if err != nil {
		return false, err
	}
	if algorithm != "ssh-ed25519" {
		return false, fmt.Errorf("hostkey: algorithm mismatch %q", algorithm)
	}
	sig, err := r.GetString()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(k.Public, data, sig), nil
}

// --- ssh-rsa ---

// RSAKey is an "ssh-rsa" host key, signing with the original SSH RSA
// scheme: PKCS#1 v1.5 over SHA-1 (RFC 4253 §6.6). This core does not
// implement the newer rsa-sha2-256/512 signature algorithms (RFC 8332);
// ssh-rsa alone covers the "at least one RSA option" supplemented
// feature this core adds beyond the distilled spec.
type RSAKey struct {
	Private *rsa.PrivateKey
}

// GenerateRSA creates a fresh ssh-rsa host key of the given modulus
// size in bits.
func GenerateRSA(bits int) (*RSAKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSAKey{Private: priv}, nil
}

func (k *RSAKey) Algorithm() string { return "ssh-rsa" }

func (k *RSAKey) PublicKeyBlob() []byte {
	w := wire.NewBuffer(256)
	w.PutStringValue("ssh-rsa")
	w.PutMpint(big.NewInt(int64(k.Private.PublicKey.E)))
	w.PutMpint(k.Private.PublicKey.N)
	return w.Bytes()
}

func (k *RSAKey) Sign(data []byte) ([]byte, error) {
	digest := sha1.Sum(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.Private, crypto.SHA1, digest[:])
	if err != nil {
		return nil, err
	}
	w := wire.NewBuffer(len(sig) + 16)
	w.PutStringValue("ssh-rsa")
	w.PutString(sig)
	return w.Bytes(), nil
}

func (k *RSAKey) Verify(data, sigBlob []byte) (bool, error) {
	r := wire.NewReader(sigBlob)
	algorithm, err := r.GetStringValue()
	if err != nil {
		return false, err
	}
	if algorithm != "ssh-rsa" {
		return false, fmt.Errorf("hostkey: algorithm mismatch %q", algorithm)
	}
	sig, err := r.GetString()
	if err != nil {
		return false, err
	}
	digest := sha1.Sum(data)
	err = rsa.VerifyPKCS1v15(&k.Private.PublicKey, crypto.SHA1, digest[:], sig)
	return err == nil, nil
}

// VerifyBlob checks a publickey-authentication signature (RFC 4252 §7)
// against a client-presented public key blob. Unlike Key.Verify, this
// takes no host identity of our own — algorithm and blob name the
// client's claimed key, never one of this server's Set entries — so
// it parses the public half straight off the wire instead of going
// through a Key value.
func VerifyBlob(algorithm string, blob, data, sigBlob []byte) (bool, error) {
	switch algorithm {
	case "ssh-ed25519":
		r := wire.NewReader(blob)
		name, err := r.GetStringValue()
		if err != nil {
			return false, err
		}
		if name != "ssh-ed25519" {
			return false, fmt.Errorf("hostkey: blob algorithm mismatch %q", name)
		}
		pub, err := r.GetString()
		if err != nil {
			return false, err
		}
		if len(pub) != ed25519.PublicKeySize {
			return false, fmt.Errorf("hostkey: bad ssh-ed25519 key length %d", len(pub))
		}
		sr := wire.NewReader(sigBlob)
		sigAlg, err := sr.GetStringValue()
		if err != nil {
			return false, err
		}
		if sigAlg != "ssh-ed25519" {
			return false, fmt.Errorf("hostkey: signature algorithm mismatch %q", sigAlg)
		}
		sig, err := sr.GetString()
		if err != nil {
			return false, err
		}
		return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
	case "ssh-rsa":
		r := wire.NewReader(blob)
		name, err := r.GetStringValue()
		if err != nil {
			return false, err
		}
		if name != "ssh-rsa" {
			return false, fmt.Errorf("hostkey: blob algorithm mismatch %q", name)
		}
		e, err := r.GetMpint()
		if err != nil {
			return false, err
		}
		n, err := r.GetMpint()
		if err != nil {
			return false, err
		}
		sr := wire.NewReader(sigBlob)
		sigAlg, err := sr.GetStringValue()
		if err != nil {
			return false, err
		}
		if sigAlg != "ssh-rsa" {
			return false, fmt.Errorf("hostkey: signature algorithm mismatch %q", sigAlg)
		}
		sig, err := sr.GetString()
		if err != nil {
			return false, err
		}
		pub := &rsa.PublicKey{E: int(e.Int64()), N: n}
		digest := sha1.Sum(data)
		err = rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig)
		return err == nil, nil
	default:
		return false, fmt.Errorf("hostkey: unsupported client key algorithm %q", algorithm)
	}
}
