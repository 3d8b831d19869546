package msg

import "github.com/cvsouth/sshd-go/wire"

// Unpack decodes a received message payload (type byte first) into a
// concrete Message. seq is the packet sequence number the payload
// arrived on, threaded through only so an unrecognized type can be
// echoed back in an Unknown for SSH_MSG_UNIMPLEMENTED handling.
//
// Code 60 (SSH_MSG_USERAUTH_PK_OK / SSH_MSG_USERAUTH_PASSWD_CHANGEREQ) is
// server-to-client only in this implementation and has no entry here;
// a server never needs to parse it.
//
// Codes 30-49 (key exchange sub-protocol) are never dispatched here;
// callers must route those to the active kex.Engine before reaching
// Unpack. A code in that range still decodes to Unknown rather than
// erroring, since the dispatcher may legitimately see one arrive after
// a kex method has already finished with it.
func Unpack(seq uint32, payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}
	code := Type(payload[0])
	r := wire.NewReader(payload[1:])
	switch code {
	case TypeDisconnect:
		return unpackDisconnect(r)
	case TypeIgnore:
		return unpackIgnore(r)
	case TypeUnimplemented:
		return unpackUnimplemented(r)
	case TypeDebug:
		return unpackDebug(r)
	case TypeServiceRequest:
		return unpackServiceRequest(r)
	case TypeServiceAccept:
		return unpackServiceAccept(r)
	case TypeKexInit:
		return unpackKexInit(r)
	case TypeNewKeys:
		return unpackNewKeys(r)
	case TypeUserauthRequest:
		return unpackUserauthRequest(payload[1:], r)
	case TypeUserauthFailure:
		return unpackUserauthFailure(r)
	case TypeUserauthSuccess:
		return unpackUserauthSuccess(r)
	case TypeUserauthBanner:
		return unpackUserauthBanner(r)
	case TypeGlobalRequest:
		return unpackGlobalRequest(r)
	case TypeRequestSuccess:
		return unpackRequestSuccess(r)
	case TypeRequestFailure:
		return unpackRequestFailure(r)
	case TypeChannelOpen:
		return unpackChannelOpen(r)
	case TypeChannelOpenConfirmation:
		return unpackChannelOpenConfirmation(r)
	case TypeChannelOpenFailure:
		return unpackChannelOpenFailure(r)
	case TypeChannelWindowAdjust:
		return unpackChannelWindowAdjust(r)
	case TypeChannelData:
		return unpackChannelData(r)
	case TypeChannelExtendedData:
		return unpackChannelExtendedData(r)
	case TypeChannelEof:
		return unpackChannelEof(r)
	case TypeChannelClose:
		return unpackChannelClose(r)
	case TypeChannelRequest:
		return unpackChannelRequest(r)
	case TypeChannelSuccess:
		return unpackChannelSuccess(r)
	case TypeChannelFailure:
		return unpackChannelFailure(r)
	default:
		return &Unknown{Seq: seq, Code: code, Payload: append([]byte(nil), payload[1:]...)}, nil
	}
}

var errEmptyPayload = unpackError("msg: empty payload")

type unpackError string

func (e unpackError) Error() string { return string(e) }
