package kex

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/msg"
	"github.com/cvsouth/sshd-go/wire"
)

// group14Prime is the 2048-bit MODP Group 14 prime (RFC 3526 §3), used
// by diffie-hellman-group14-sha256 (RFC 8268).
var group14Prime, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC7"+
		"4020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14"+
		"374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B"+
		"7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163"+
		"BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208"+
		"552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E"+
		"36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF69"+
		"55817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF",
	16,
)

var group14Generator = big.NewInt(2)

// runDHGroup14 implements diffie-hellman-group14-sha256 (RFC 4253 §8,
// RFC 8268): classic finite-field Diffie-Hellman over a fixed named
// group, one SSH_MSG_KEXDH_INIT/REPLY round trip. KEXDH_INIT/REPLY
// share wire codes 30/31 with the curve25519 sub-protocol's
// KEX_ECDH_INIT/REPLY; only the field encoding inside differs (mpint e
// and f here, versus fixed-length octet strings there).
func (e *Engine) runDHGroup14(localKexInitPayload, peerKexInitPayload []byte, hk hostkey.Key) (h []byte, k *big.Int, err error) {
	_, payload, err := e.Reader.ReadPacket()
	if err != nil {
		return nil, nil, err
	}
	if len(payload) == 0 || msg.Type(payload[0]) != msg.TypeKexECDHInit {
		return nil, nil, ProtocolError{Reason: "expected SSH_MSG_KEXDH_INIT"}
	}
	r := wire.NewReader(payload[1:])
	clientPublic, err := r.GetMpint()
	if err != nil {
		return nil, nil, err
	}
	one := big.NewInt(1)
	upper := new(big.Int).Sub(group14Prime, one)
	if clientPublic.Cmp(one) < 0 || clientPublic.Cmp(upper) > 0 {
		return nil, nil, ProtocolError{Reason: "invalid DH client public value"}
	}

	serverPrivate, err := rand.Int(rand.Reader, group14Prime)
	if err != nil {
		return nil, nil, err
	}
	serverPublic := new(big.Int).Exp(group14Generator, serverPrivate, group14Prime)
	k = new(big.Int).Exp(clientPublic, serverPrivate, group14Prime)

	hostKeyBlob := hk.PublicKeyBlob()

	hi := wire.NewBuffer(len(localKexInitPayload) + len(peerKexInitPayload) + len(hostKeyBlob) + 512)
	hi.PutStringValue(e.RemoteVersion)
	hi.PutStringValue(e.LocalVersion)
	hi.PutString(peerKexInitPayload)
	hi.PutString(localKexInitPayload)
	hi.PutString(hostKeyBlob)
	hi.PutMpint(clientPublic)
	hi.PutMpint(serverPublic)
	hi.PutMpint(k)
	sum := sha256.Sum256(hi.Bytes())
	h = sum[:]

	sig, err := hk.Sign(h)
	if err != nil {
		return nil, nil, err
	}

	reply := wire.NewBuffer(len(hostKeyBlob) + len(sig) + 300)
	reply.PutByte(byte(msg.TypeKexECDHReply)) // SSH_MSG_KEXDH_REPLY, same code 31
	reply.PutString(hostKeyBlob)
	reply.PutMpint(serverPublic)
	reply.PutString(sig)
	if err := e.Writer.WritePacket(reply.Bytes()); err != nil {
		return nil, nil, err
	}

	return h, k, nil
}
