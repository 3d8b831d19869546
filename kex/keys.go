package kex

import "hash"

// deriveKey implements the RFC 4253 §7.2 key derivation: HASH(K || H ||
// letter || session_id) extended, when the requested length exceeds one
// hash output, by HASH(K || H || K1 || K2 || ... ) blocks. kMpint must
// already be the same length-prefixed mpint encoding of K used to build
// the exchange hash H.
func deriveKey(newHash func() hash.Hash, kMpint, h, sessionID []byte, letter byte, length int) []byte {
	if length == 0 {
		return nil
	}
	var out []byte
	for len(out) < length {
		hh := newHash()
		hh.Write(kMpint)
		hh.Write(h)
		if out == nil {
			hh.Write([]byte{letter})
			hh.Write(sessionID)
		} else {
			hh.Write(out)
		}
		block := hh.Sum(nil)
		out = append(out, block...)
	}
	return out[:length]
}
