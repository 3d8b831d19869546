// Package kex implements the key exchange engine: the KEXINIT exchange
// and negotiation (RFC 4253 §7), the per-algorithm key agreement
// sub-protocol, exchange hash construction, host key signing, NEWKEYS
// handling and the six-key derivation that feeds transport.State.
//
// Engine owns the connection's frame.Reader/frame.Writer for the
// duration of a single Run call, the same way the dispatcher hands
// exclusive stream ownership to the KEX sub-protocol described in this
// core's connection design: nothing else may read or write the wire
// while a key exchange is in progress.
package kex

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/cvsouth/sshd-go/algo"
	"github.com/cvsouth/sshd-go/frame"
	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/msg"
	"github.com/cvsouth/sshd-go/negotiate"
	"github.com/cvsouth/sshd-go/transport"
	"github.com/cvsouth/sshd-go/wire"
)

// ProtocolError indicates the peer violated the key exchange message
// order or sent a structurally invalid sub-protocol message.
type ProtocolError struct{ Reason string }

func (e ProtocolError) Error() string { return "kex: protocol error: " + e.Reason }

// NegotiationFailed indicates no algorithm was shared in some category.
type NegotiationFailed struct{ Category string }

func (e NegotiationFailed) Error() string {
	return "kex: no common algorithm for " + e.Category
}

// Engine runs one key exchange to completion against a server's fixed
// identity and preference. A fresh Engine is not required per exchange;
// the same Engine is reused across the initial exchange and any rekey.
type Engine struct {
	Reader *frame.Reader
	Writer *frame.Writer
	State  *transport.State

	// LocalVersion/RemoteVersion are the identification strings
	// exchanged by package version, without the trailing CR LF.
	LocalVersion  string
	RemoteVersion string

	HostKeys   *hostkey.Set
	Preference negotiate.Preference
}

// Run performs one full key exchange: KEXINIT exchange, negotiation,
// the negotiated sub-protocol, NEWKEYS, and key installation.
//
// peerKexInitPayload, if non-nil, is the raw payload (type byte
// included) of a SSH_MSG_KEXINIT the caller already read off the wire —
// the case when the peer unilaterally starts a rekey and the
// dispatcher's main loop recognizes the message before handing the
// connection over to the engine. If nil, Run reads the peer's KEXINIT
// itself, the case for the first key exchange right after the version
// exchange, when nothing has been read yet.
//
// Run returns the session identifier: the exchange hash of the first
// key exchange ever run on this connection, unchanged by any later
// rekey (RFC 4253 §7.2).
func (e *Engine) Run(peerKexInitPayload []byte) (sessionID []byte, err error) {
	var cookie [16]byte
	if _, err := rand.Read(cookie[:]); err != nil {
		return nil, err
	}
	localKexInit := e.Preference.ToKexInit(cookie, false)
	localPayload := msg.Marshal(localKexInit)
	if err := e.Writer.WritePacket(localPayload); err != nil {
		return nil, err
	}

	peerPayload := peerKexInitPayload
	if peerPayload == nil {
		_, payload, err := e.Reader.ReadPacket()
		if err != nil {
			return nil, err
		}
		peerPayload = payload
	}
	if len(peerPayload) == 0 || msg.Type(peerPayload[0]) != msg.TypeKexInit {
		return nil, ProtocolError{Reason: "expected SSH_MSG_KEXINIT"}
	}
	peerMsg, err := msg.Unpack(0, peerPayload)
	if err != nil {
		return nil, fmt.Errorf("kex: unpack KEXINIT: %w", err)
	}
	peerKexInit, ok := peerMsg.(*msg.KexInit)
	if !ok {
		return nil, ProtocolError{Reason: "expected SSH_MSG_KEXINIT"}
	}

	clientPref := negotiate.Preference{
		KexAlgorithms:           peerKexInit.KexAlgorithms,
		ServerHostKeyAlgorithms: peerKexInit.ServerHostKeyAlgorithms,
		EncryptionCS:            peerKexInit.EncryptionCS,
		EncryptionSC:            peerKexInit.EncryptionSC,
		MacCS:                   peerKexInit.MacCS,
		MacSC:                   peerKexInit.MacSC,
		CompressionCS:           peerKexInit.CompressionCS,
		CompressionSC:           peerKexInit.CompressionSC,
	}
	result, err := negotiate.Negotiate(clientPref, e.Preference)
	if err != nil {
		na := err.(negotiate.ErrNoCommonAlgorithm)
		return nil, NegotiationFailed{Category: na.Category}
	}

	hk, ok := e.HostKeys.Lookup(result.ServerHostKey)
	if !ok {
		return nil, ProtocolError{Reason: "no host key available for " + result.ServerHostKey}
	}

	var h []byte
	var k *big.Int
	switch result.Kex {
	case "curve25519-sha256", "curve25519-sha256@libssh.org":
		h, k, err = e.runCurve25519(localPayload, peerPayload, hk)
	case "diffie-hellman-group14-sha256":
		h, k, err = e.runDHGroup14(localPayload, peerPayload, hk)
	default:
		err = ProtocolError{Reason: "unsupported kex algorithm " + result.Kex}
	}
	if err != nil {
		return nil, err
	}

	cipherCS, err := algo.CipherByName(result.EncryptionCS)
	if err != nil {
		return nil, err
	}
	cipherSC, err := algo.CipherByName(result.EncryptionSC)
	if err != nil {
		return nil, err
	}
	macCS, err := algo.MACByName(result.MacCS)
	if err != nil {
		return nil, err
	}
	macSC, err := algo.MACByName(result.MacSC)
	if err != nil {
		return nil, err
	}
	compCS, err := algo.CompressionByName(result.CompressionCS)
	if err != nil {
		return nil, err
	}
	compSC, err := algo.CompressionByName(result.CompressionSC)
	if err != nil {
		return nil, err
	}

	e.State.PinSessionID(h)
	sid := e.State.SessionID()

	kBuf := wire.NewBuffer(len(h) + 8)
	kBuf.PutMpint(k)
	kMpint := kBuf.Bytes()

	ivCS := deriveKey(sha256.New, kMpint, h, sid, 'A', cipherCS.IVSize)
	ivSC := deriveKey(sha256.New, kMpint, h, sid, 'B', cipherSC.IVSize)
	ekCS := deriveKey(sha256.New, kMpint, h, sid, 'C', cipherCS.KeySize)
	ekSC := deriveKey(sha256.New, kMpint, h, sid, 'D', cipherSC.KeySize)
	ikCS := deriveKey(sha256.New, kMpint, h, sid, 'E', macCS.KeySize)
	ikSC := deriveKey(sha256.New, kMpint, h, sid, 'F', macSC.KeySize)

	// Send NEWKEYS under the still-current write keys, then switch: every
	// packet after our own NEWKEYS is written with the new keys (RFC 4253
	// §7.3), but inbound packets keep using the old read keys until the
	// peer's own NEWKEYS is actually received.
	if err := e.Writer.WritePacket((&msg.NewKeys{}).Marshal()); err != nil {
		return nil, err
	}

	e.State.LockWrite()
	err = e.State.InstallWrite(cipherSC, ekSC, ivSC, macSC, ikSC, compSC)
	e.State.UnlockWrite()
	if err != nil {
		return nil, err
	}

	_, payload, err := e.Reader.ReadPacket()
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 || msg.Type(payload[0]) != msg.TypeNewKeys {
		return nil, ProtocolError{Reason: "expected SSH_MSG_NEWKEYS"}
	}

	e.State.LockRead()
	err = e.State.InstallRead(cipherCS, ekCS, ivCS, macCS, ikCS, compCS)
	e.State.UnlockRead()
	if err != nil {
		return nil, err
	}

	return sid, nil
}
