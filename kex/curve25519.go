package kex

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/curve25519"

	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/msg"
	"github.com/cvsouth/sshd-go/wire"
)

// runCurve25519 implements curve25519-sha256 and its @libssh.org alias
// (RFC 8731): a single SSH_MSG_KEX_ECDH_INIT/REPLY round trip using
// X25519 in place of classic Diffie-Hellman.
//
// The shared secret byte string produced by curve25519.X25519 is
// treated directly as a big-endian mpint, with no byte reversal, the
// same convention golang.org/x/crypto/ssh's own curve25519 key exchange
// follows despite RFC 7748 defining the u-coordinate encoding as
// little-endian: RFC 8731 §4 fixes this specific reinterpretation for
// SSH's K.
func (e *Engine) runCurve25519(localKexInitPayload, peerKexInitPayload []byte, hk hostkey.Key) (h []byte, k *big.Int, err error) {
	_, payload, err := e.Reader.ReadPacket()
	if err != nil {
		return nil, nil, err
	}
	if len(payload) == 0 || msg.Type(payload[0]) != msg.TypeKexECDHInit {
		return nil, nil, ProtocolError{Reason: "expected SSH_MSG_KEX_ECDH_INIT"}
	}
	r := wire.NewReader(payload[1:])
	clientPub, err := r.GetString()
	if err != nil {
		return nil, nil, err
	}
	if len(clientPub) != 32 {
		return nil, nil, ProtocolError{Reason: "invalid curve25519 client public key length"}
	}

	var serverPriv [32]byte
	if _, err := rand.Read(serverPriv[:]); err != nil {
		return nil, nil, err
	}
	serverPub, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}

	shared, err := curve25519.X25519(serverPriv[:], clientPub)
	if err != nil {
		return nil, nil, ProtocolError{Reason: "curve25519: client public key is a low-order point"}
	}
	k = new(big.Int).SetBytes(shared)

	hostKeyBlob := hk.PublicKeyBlob()

	hi := wire.NewBuffer(len(localKexInitPayload) + len(peerKexInitPayload) + len(hostKeyBlob) + 256)
	hi.PutStringValue(e.RemoteVersion)
	hi.PutStringValue(e.LocalVersion)
	hi.PutString(peerKexInitPayload)
	hi.PutString(localKexInitPayload)
	hi.PutString(hostKeyBlob)
	hi.PutString(clientPub)
	hi.PutString(serverPub)
	hi.PutMpint(k)
	sum := sha256.Sum256(hi.Bytes())
	h = sum[:]

	sig, err := hk.Sign(h)
	if err != nil {
		return nil, nil, err
	}

	reply := wire.NewBuffer(len(hostKeyBlob) + len(serverPub) + len(sig) + 16)
	reply.PutByte(byte(msg.TypeKexECDHReply))
	reply.PutString(hostKeyBlob)
	reply.PutString(serverPub)
	reply.PutString(sig)
	if err := e.Writer.WritePacket(reply.Bytes()); err != nil {
		return nil, nil, err
	}

	return h, k, nil
}
