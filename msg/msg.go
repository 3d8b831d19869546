// Package msg implements the typed SSH message union carried over the
// binary packet protocol: the ~25 post-version-exchange message types
// a connection dispatcher must recognize, plus an Unknown catch-all so
// the dispatcher can reply with SSH_MSG_UNIMPLEMENTED.
//
// Key-exchange sub-protocol messages (SSH_MSG_KEX_ECDH_INIT and friends,
// codes 30-49) are algorithm-specific on the wire and are decoded
// directly by package kex from raw payload bytes rather than through
// this package's union — see kex.Engine.
package msg

import "fmt"

// Type is an SSH_MSG_* type code (IANA SSH Protocol Number Registry).
type Type byte

const (
	TypeDisconnect      Type = 1
	TypeIgnore          Type = 2
	TypeUnimplemented   Type = 3
	TypeDebug           Type = 4
	TypeServiceRequest  Type = 5
	TypeServiceAccept   Type = 6
	TypeKexInit         Type = 20
	TypeNewKeys         Type = 21
	TypeKexECDHInit     Type = 30
	TypeKexECDHReply    Type = 31
	TypeUserauthRequest Type = 50
	TypeUserauthFailure Type = 51
	TypeUserauthSuccess Type = 52
	TypeUserauthBanner  Type = 53
	TypeUserauthPkOk    Type = 60 // shared code, see UserauthPkOk / UserauthPasswdChangereq

	TypeGlobalRequest  Type = 80
	TypeRequestSuccess Type = 81
	TypeRequestFailure Type = 82

	TypeChannelOpen             Type = 90
	TypeChannelOpenConfirmation Type = 91
	TypeChannelOpenFailure      Type = 92
	TypeChannelWindowAdjust     Type = 93
	TypeChannelData             Type = 94
	TypeChannelExtendedData     Type = 95
	TypeChannelEof              Type = 96
	TypeChannelClose            Type = 97
	TypeChannelRequest          Type = 98
	TypeChannelSuccess          Type = 99
	TypeChannelFailure          Type = 100
)

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MSG(%d)", byte(t))
}

var typeNames = map[Type]string{
	TypeDisconnect:              "SSH_MSG_DISCONNECT",
	TypeIgnore:                  "SSH_MSG_IGNORE",
	TypeUnimplemented:           "SSH_MSG_UNIMPLEMENTED",
	TypeDebug:                   "SSH_MSG_DEBUG",
	TypeServiceRequest:          "SSH_MSG_SERVICE_REQUEST",
	TypeServiceAccept:           "SSH_MSG_SERVICE_ACCEPT",
	TypeKexInit:                 "SSH_MSG_KEXINIT",
	TypeNewKeys:                 "SSH_MSG_NEWKEYS",
	TypeKexECDHInit:             "SSH_MSG_KEX_ECDH_INIT",
	TypeKexECDHReply:            "SSH_MSG_KEX_ECDH_REPLY",
	TypeUserauthRequest:         "SSH_MSG_USERAUTH_REQUEST",
	TypeUserauthFailure:         "SSH_MSG_USERAUTH_FAILURE",
	TypeUserauthSuccess:         "SSH_MSG_USERAUTH_SUCCESS",
	TypeUserauthBanner:          "SSH_MSG_USERAUTH_BANNER",
	TypeUserauthPkOk:            "SSH_MSG_USERAUTH_PK_OK",
	TypeGlobalRequest:           "SSH_MSG_GLOBAL_REQUEST",
	TypeRequestSuccess:          "SSH_MSG_REQUEST_SUCCESS",
	TypeRequestFailure:          "SSH_MSG_REQUEST_FAILURE",
	TypeChannelOpen:             "SSH_MSG_CHANNEL_OPEN",
	TypeChannelOpenConfirmation: "SSH_MSG_CHANNEL_OPEN_CONFIRMATION",
	TypeChannelOpenFailure:      "SSH_MSG_CHANNEL_OPEN_FAILURE",
	TypeChannelWindowAdjust:     "SSH_MSG_CHANNEL_WINDOW_ADJUST",
	TypeChannelData:             "SSH_MSG_CHANNEL_DATA",
	TypeChannelExtendedData:     "SSH_MSG_CHANNEL_EXTENDED_DATA",
	TypeChannelEof:              "SSH_MSG_CHANNEL_EOF",
	TypeChannelClose:            "SSH_MSG_CHANNEL_CLOSE",
	TypeChannelRequest:          "SSH_MSG_CHANNEL_REQUEST",
	TypeChannelSuccess:          "SSH_MSG_CHANNEL_SUCCESS",
	TypeChannelFailure:          "SSH_MSG_CHANNEL_FAILURE",
}

// Message is implemented by every concrete message variant.
type Message interface {
	Type() Type
	Marshal() []byte
}

// Marshal serializes a Message into a fresh payload buffer, type byte first.
func Marshal(m Message) []byte {
	return m.Marshal()
}
