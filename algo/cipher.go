package algo

import (
	"crypto/aes"
	"crypto/cipher"
)

// CipherSpec describes one negotiable encryption algorithm: its key and
// IV sizes, and how to build a keystream from a session key and IV.
// Every cipher this core supports is a stream cipher (CTR mode), so the
// BPP codec never needs a block-at-a-time path.
type CipherSpec struct {
	Name      string
	KeySize   int
	IVSize    int
	BlockSize int
	NewStream func(key, iv []byte) (cipher.Stream, error)
}

func newAESCTR(keyLen int) func(key, iv []byte) (cipher.Stream, error) {
	return func(key, iv []byte) (cipher.Stream, error) {
		block, err := aes.NewCipher(key[:keyLen])
		if err != nil {
			return nil, err
		}
		return cipher.NewCTR(block, iv[:aes.BlockSize]), nil
	}
}

// Ciphers is this core's encryption-algorithm registry, grounded on the
// teacher's AES-CTR relay cipher (circuit/relay.go uses cipher.NewCTR
// over an aes.NewCipher block exactly this way for onion-layer crypto).
var Ciphers = map[string]CipherSpec{
	"aes128-ctr": {Name: "aes128-ctr", KeySize: 16, IVSize: aes.BlockSize, BlockSize: aes.BlockSize, NewStream: newAESCTR(16)},
	"aes192-ctr": {Name: "aes192-ctr", KeySize: 24, IVSize: aes.BlockSize, BlockSize: aes.BlockSize, NewStream: newAESCTR(24)},
	"aes256-ctr": {Name: "aes256-ctr", KeySize: 32, IVSize: aes.BlockSize, BlockSize: aes.BlockSize, NewStream: newAESCTR(32)},
}

// CipherByName looks up a negotiated encryption algorithm name.
func CipherByName(name string) (CipherSpec, error) {
	spec, ok := Ciphers[name]
	if !ok {
		return CipherSpec{}, ErrUnknownAlgorithm{Category: "encryption", Name: name}
	}
	return spec, nil
}
