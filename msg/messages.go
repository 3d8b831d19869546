package msg

import "github.com/cvsouth/sshd-go/wire"

// Channel open failure reason codes (RFC 4254 §5.1).
const (
	ChannelOpenAdministrativelyProhibited uint32 = 1
	ChannelOpenConnectFailed              uint32 = 2
	ChannelOpenUnknownChannelType         uint32 = 3
	ChannelOpenResourceShortage           uint32 = 4
)

// Disconnect reason codes, following the wording of this core's error
// taxonomy: 2 for protocol errors, 3 for crypto/key-exchange failures,
// 4 for compression failures.
const (
	DisconnectProtocolError      uint32 = 2
	DisconnectKeyExchangeFailed  uint32 = 3
	DisconnectCompressionError   uint32 = 4
	DisconnectByApplication      uint32 = 11
	DisconnectTooManyConnections uint32 = 12
)

func header(t Type, capHint int) *wire.Buffer {
	w := wire.NewBuffer(capHint + 1)
	w.PutByte(byte(t))
	return w
}

// --- Disconnect ---

type Disconnect struct {
	ReasonCode  uint32
	Description string
	LanguageTag string
}

func NewDisconnect(reason uint32, description string) *Disconnect {
	return &Disconnect{ReasonCode: reason, Description: description}
}

func (m *Disconnect) Type() Type { return TypeDisconnect }

func (m *Disconnect) Marshal() []byte {
	w := header(TypeDisconnect, 16+len(m.Description))
	w.PutUint32(m.ReasonCode)
	w.PutStringValue(m.Description)
	w.PutStringValue(m.LanguageTag)
	return w.Bytes()
}

func unpackDisconnect(r *wire.Reader) (Message, error) {
	reason, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	desc, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	lang, _ := r.GetStringValue()
	return &Disconnect{ReasonCode: reason, Description: desc, LanguageTag: lang}, nil
}

// --- Ignore ---

type Ignore struct{ Data []byte }

func (m *Ignore) Type() Type { return TypeIgnore }

func (m *Ignore) Marshal() []byte {
	w := header(TypeIgnore, len(m.Data))
	w.PutString(m.Data)
	return w.Bytes()
}

func unpackIgnore(r *wire.Reader) (Message, error) {
	d, err := r.GetString()
	if err != nil {
		return nil, err
	}
	return &Ignore{Data: append([]byte(nil), d...)}, nil
}

// --- Unimplemented ---

type Unimplemented struct{ Seq uint32 }

func NewUnimplemented(seq uint32) *Unimplemented { return &Unimplemented{Seq: seq} }

func (m *Unimplemented) Type() Type { return TypeUnimplemented }

func (m *Unimplemented) Marshal() []byte {
	w := header(TypeUnimplemented, 4)
	w.PutUint32(m.Seq)
	return w.Bytes()
}

func unpackUnimplemented(r *wire.Reader) (Message, error) {
	seq, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	return &Unimplemented{Seq: seq}, nil
}

// --- Debug ---

type Debug struct {
	AlwaysDisplay bool
	Message       string
	LanguageTag   string
}

func (m *Debug) Type() Type { return TypeDebug }

func (m *Debug) Marshal() []byte {
	w := header(TypeDebug, 8+len(m.Message))
	w.PutBool(m.AlwaysDisplay)
	w.PutStringValue(m.Message)
	w.PutStringValue(m.LanguageTag)
	return w.Bytes()
}

func unpackDebug(r *wire.Reader) (Message, error) {
	always, err := r.GetBool()
	if err != nil {
		return nil, err
	}
	text, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	lang, _ := r.GetStringValue()
	return &Debug{AlwaysDisplay: always, Message: text, LanguageTag: lang}, nil
}

// --- ServiceRequest / ServiceAccept ---

type ServiceRequest struct{ Name string }

func (m *ServiceRequest) Type() Type { return TypeServiceRequest }

func (m *ServiceRequest) Marshal() []byte {
	w := header(TypeServiceRequest, 8+len(m.Name))
	w.PutStringValue(m.Name)
	return w.Bytes()
}

func unpackServiceRequest(r *wire.Reader) (Message, error) {
	name, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	return &ServiceRequest{Name: name}, nil
}

type ServiceAccept struct{ Name string }

func NewServiceAccept(name string) *ServiceAccept { return &ServiceAccept{Name: name} }

func (m *ServiceAccept) Type() Type { return TypeServiceAccept }

func (m *ServiceAccept) Marshal() []byte {
	w := header(TypeServiceAccept, 8+len(m.Name))
	w.PutStringValue(m.Name)
	return w.Bytes()
}

func unpackServiceAccept(r *wire.Reader) (Message, error) {
	name, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	return &ServiceAccept{Name: name}, nil
}

// --- KexInit ---

// KexInit carries the algorithm preference lists exchanged at the
// start of every key exchange (RFC 4253 §7.1). It does not keep the
// raw payload; the exchange hash needs the exact bytes each side
// sent, so the caller (kex.Engine) holds on to those itself.
type KexInit struct {
	Cookie                  [16]byte
	KexAlgorithms           []string
	ServerHostKeyAlgorithms []string
	EncryptionCS            []string
	EncryptionSC            []string
	MacCS                   []string
	MacSC                   []string
	CompressionCS           []string
	CompressionSC           []string
	LanguagesCS             []string
	LanguagesSC             []string
	FirstKexPacketFollows   bool
}

func (m *KexInit) Type() Type { return TypeKexInit }

func (m *KexInit) Marshal() []byte {
	w := header(TypeKexInit, 256)
	w.PutString(m.Cookie[:])
	w.PutNameList(m.KexAlgorithms)
	w.PutNameList(m.ServerHostKeyAlgorithms)
	w.PutNameList(m.EncryptionCS)
	w.PutNameList(m.EncryptionSC)
	w.PutNameList(m.MacCS)
	w.PutNameList(m.MacSC)
	w.PutNameList(m.CompressionCS)
	w.PutNameList(m.CompressionSC)
	w.PutNameList(m.LanguagesCS)
	w.PutNameList(m.LanguagesSC)
	w.PutBool(m.FirstKexPacketFollows)
	w.PutUint32(0) // reserved
	return w.Bytes()
}

func unpackKexInit(r *wire.Reader) (Message, error) {
	m := &KexInit{}
	cookie, err := r.GetString()
	if err != nil {
		return nil, err
	}
	copy(m.Cookie[:], cookie)
	var uerr error
	getList := func() []string {
		if uerr != nil {
			return nil
		}
		var l []string
		l, uerr = r.GetNameList()
		return l
	}
	m.KexAlgorithms = getList()
	m.ServerHostKeyAlgorithms = getList()
	m.EncryptionCS = getList()
	m.EncryptionSC = getList()
	m.MacCS = getList()
	m.MacSC = getList()
	m.CompressionCS = getList()
	m.CompressionSC = getList()
	m.LanguagesCS = getList()
	m.LanguagesSC = getList()
	if uerr != nil {
		return nil, uerr
	}
	follows, err := r.GetBool()
	if err != nil {
		return nil, err
	}
	m.FirstKexPacketFollows = follows
	_, _ = r.GetUint32() // reserved
	return m, nil
}

// --- NewKeys ---

type NewKeys struct{}

func (m *NewKeys) Type() Type { return TypeNewKeys }

func (m *NewKeys) Marshal() []byte {
	return []byte{byte(TypeNewKeys)}
}

func unpackNewKeys(r *wire.Reader) (Message, error) {
	return &NewKeys{}, nil
}

// --- Userauth ---

// UserauthRequest represents SSH_MSG_USERAUTH_REQUEST for the four
// methods this core understands: none, password, publickey, hostbased.
// Fields not relevant to MethodName are zero.
type UserauthRequest struct {
	UserName    string
	ServiceName string
	MethodName  string // "none" | "password" | "publickey" | "hostbased"

	// password
	Password    string
	NewPassword string // valid only when HasNew is set
	HasNew      bool   // the boolean flag; true signals a password-change request

	// publickey
	HasSignature  bool
	PKAlgorithm   string
	PKBlob        []byte
	PKSignature   []byte
	PKSignedBlob  []byte // message bytes covered by the signature (type byte through the key blob); the verifier prepends the session identifier

	// hostbased
	HBAlgorithm  string
	HBBlob       []byte
	HBClientHost string
	HBClientUser string
	HBSignature  []byte
}

func (m *UserauthRequest) Type() Type { return TypeUserauthRequest }

func (m *UserauthRequest) Marshal() []byte {
	w := header(TypeUserauthRequest, 64)
	w.PutStringValue(m.UserName)
	w.PutStringValue(m.ServiceName)
	w.PutStringValue(m.MethodName)
	switch m.MethodName {
	case "none":
	case "password":
		w.PutBool(m.HasNew)
		w.PutStringValue(m.Password)
		if m.HasNew {
			w.PutStringValue(m.NewPassword)
		}
	case "publickey":
		w.PutBool(m.HasSignature)
		w.PutStringValue(m.PKAlgorithm)
		w.PutString(m.PKBlob)
		if m.HasSignature {
			w.PutString(m.PKSignature)
		}
	case "hostbased":
		w.PutStringValue(m.HBAlgorithm)
		w.PutString(m.HBBlob)
		w.PutStringValue(m.HBClientHost)
		w.PutStringValue(m.HBClientUser)
		w.PutString(m.HBSignature)
	}
	return w.Bytes()
}

func unpackUserauthRequest(payload []byte, r *wire.Reader) (Message, error) {
	m := &UserauthRequest{}
	var err error
	if m.UserName, err = r.GetStringValue(); err != nil {
		return nil, err
	}
	if m.ServiceName, err = r.GetStringValue(); err != nil {
		return nil, err
	}
	if m.MethodName, err = r.GetStringValue(); err != nil {
		return nil, err
	}
	switch m.MethodName {
	case "none":
	case "password":
		hasNew, err := r.GetBool()
		if err != nil {
			return nil, err
		}
		m.HasNew = hasNew
		if m.Password, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		if hasNew {
			if m.NewPassword, err = r.GetStringValue(); err != nil {
				return nil, err
			}
		}
	case "publickey":
		hasSig, err := r.GetBool()
		if err != nil {
			return nil, err
		}
		m.HasSignature = hasSig
		if m.PKAlgorithm, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		blob, err := r.GetString()
		if err != nil {
			return nil, err
		}
		m.PKBlob = append([]byte(nil), blob...)
		if hasSig {
			// RFC 4252 §7: the data actually signed is
			// string(session_id) || this message's own byte/string
			// fields up to (not including) the signature field. The
			// session_id half isn't known here (package msg has no
			// notion of a connection); callers prepend it themselves.
			// This field carries only the message-local half, type
			// byte included.
			signedLen := len(payload) - len(r.Remaining())
			m.PKSignedBlob = append([]byte{byte(TypeUserauthRequest)}, payload[:signedLen]...)
			sig, err := r.GetString()
			if err != nil {
				return nil, err
			}
			m.PKSignature = append([]byte(nil), sig...)
		}
	case "hostbased":
		var err error
		if m.HBAlgorithm, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		blob, err := r.GetString()
		if err != nil {
			return nil, err
		}
		m.HBBlob = append([]byte(nil), blob...)
		if m.HBClientHost, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		if m.HBClientUser, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		sig, err := r.GetString()
		if err != nil {
			return nil, err
		}
		m.HBSignature = append([]byte(nil), sig...)
	}
	return m, nil
}

type UserauthFailure struct {
	Methods        []string
	PartialSuccess bool
}

func NewUserauthFailure(methods []string, partial bool) *UserauthFailure {
	return &UserauthFailure{Methods: methods, PartialSuccess: partial}
}

func (m *UserauthFailure) Type() Type { return TypeUserauthFailure }

func (m *UserauthFailure) Marshal() []byte {
	w := header(TypeUserauthFailure, 32)
	w.PutNameList(m.Methods)
	w.PutBool(m.PartialSuccess)
	return w.Bytes()
}

func unpackUserauthFailure(r *wire.Reader) (Message, error) {
	methods, err := r.GetNameList()
	if err != nil {
		return nil, err
	}
	partial, err := r.GetBool()
	if err != nil {
		return nil, err
	}
	return &UserauthFailure{Methods: methods, PartialSuccess: partial}, nil
}

type UserauthSuccess struct{}

func (m *UserauthSuccess) Type() Type    { return TypeUserauthSuccess }
func (m *UserauthSuccess) Marshal() []byte { return []byte{byte(TypeUserauthSuccess)} }

func unpackUserauthSuccess(r *wire.Reader) (Message, error) { return &UserauthSuccess{}, nil }

type UserauthBanner struct {
	Message     string
	LanguageTag string
}

func NewUserauthBanner(message string) *UserauthBanner {
	return &UserauthBanner{Message: message}
}

func (m *UserauthBanner) Type() Type { return TypeUserauthBanner }

func (m *UserauthBanner) Marshal() []byte {
	w := header(TypeUserauthBanner, 16+len(m.Message))
	w.PutStringValue(m.Message)
	w.PutStringValue(m.LanguageTag)
	return w.Bytes()
}

func unpackUserauthBanner(r *wire.Reader) (Message, error) {
	text, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	lang, _ := r.GetStringValue()
	return &UserauthBanner{Message: text, LanguageTag: lang}, nil
}

// UserauthPkOk is SSH_MSG_USERAUTH_PK_OK (code 60).
type UserauthPkOk struct {
	Algorithm string
	Blob      []byte
}

func NewUserauthPkOk(algorithm string, blob []byte) *UserauthPkOk {
	return &UserauthPkOk{Algorithm: algorithm, Blob: blob}
}

func (m *UserauthPkOk) Type() Type { return TypeUserauthPkOk }

func (m *UserauthPkOk) Marshal() []byte {
	w := header(TypeUserauthPkOk, 16+len(m.Blob))
	w.PutStringValue(m.Algorithm)
	w.PutString(m.Blob)
	return w.Bytes()
}

// UserauthPasswdChangereq is also code 60: the server and client both
// know which shape to expect because the client just sent a password
// method request, never a publickey one, on this exchange.
type UserauthPasswdChangereq struct {
	Prompt      string
	LanguageTag string
}

func NewUserauthPasswdChangereq(prompt string) *UserauthPasswdChangereq {
	return &UserauthPasswdChangereq{Prompt: prompt}
}

func (m *UserauthPasswdChangereq) Type() Type { return TypeUserauthPkOk }

func (m *UserauthPasswdChangereq) Marshal() []byte {
	w := header(TypeUserauthPkOk, 16+len(m.Prompt))
	w.PutStringValue(m.Prompt)
	w.PutStringValue(m.LanguageTag)
	return w.Bytes()
}

// --- Global requests ---

type GlobalRequest struct {
	RequestName string
	WantReply   bool
	Data        []byte
}

func (m *GlobalRequest) Type() Type { return TypeGlobalRequest }

func (m *GlobalRequest) Marshal() []byte {
	w := header(TypeGlobalRequest, 16+len(m.Data))
	w.PutStringValue(m.RequestName)
	w.PutBool(m.WantReply)
	w.PutRaw(m.Data)
	return w.Bytes()
}

func unpackGlobalRequest(r *wire.Reader) (Message, error) {
	name, err := r.GetStringValue()
	if err != nil {
		return nil, err
	}
	wantReply, err := r.GetBool()
	if err != nil {
		return nil, err
	}
	return &GlobalRequest{RequestName: name, WantReply: wantReply, Data: append([]byte(nil), r.Remaining()...)}, nil
}

type RequestSuccess struct{ Data []byte }

func (m *RequestSuccess) Type() Type { return TypeRequestSuccess }

func (m *RequestSuccess) Marshal() []byte {
	w := header(TypeRequestSuccess, len(m.Data))
	w.PutRaw(m.Data)
	return w.Bytes()
}

func unpackRequestSuccess(r *wire.Reader) (Message, error) {
	return &RequestSuccess{Data: append([]byte(nil), r.Remaining()...)}, nil
}

type RequestFailure struct{}

func (m *RequestFailure) Type() Type      { return TypeRequestFailure }
func (m *RequestFailure) Marshal() []byte { return []byte{byte(TypeRequestFailure)} }

func unpackRequestFailure(r *wire.Reader) (Message, error) { return &RequestFailure{}, nil }

// --- Channels ---

type ChannelOpen struct {
	ChannelType       string
	SenderChannel     uint32
	InitialWindowSize uint32
	MaxPacketSize     uint32
	Data              []byte // channel-type-specific trailer, e.g. direct-tcpip fields
}

func (m *ChannelOpen) Type() Type { return TypeChannelOpen }

func (m *ChannelOpen) Marshal() []byte {
	w := header(TypeChannelOpen, 24+len(m.Data))
	w.PutStringValue(m.ChannelType)
	w.PutUint32(m.SenderChannel)
	w.PutUint32(m.InitialWindowSize)
	w.PutUint32(m.MaxPacketSize)
	w.PutRaw(m.Data)
	return w.Bytes()
}

func unpackChannelOpen(r *wire.Reader) (Message, error) {
	m := &ChannelOpen{}
	var err error
	if m.ChannelType, err = r.GetStringValue(); err != nil {
		return nil, err
	}
	if m.SenderChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.InitialWindowSize, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.MaxPacketSize, err = r.GetUint32(); err != nil {
		return nil, err
	}
	m.Data = append([]byte(nil), r.Remaining()...)
	return m, nil
}

type ChannelOpenConfirmation struct {
	RecipientChannel  uint32
	SenderChannel     uint32
	InitialWindowSize uint32
	MaxPacketSize     uint32
}

func (m *ChannelOpenConfirmation) Type() Type { return TypeChannelOpenConfirmation }

func (m *ChannelOpenConfirmation) Marshal() []byte {
	w := header(TypeChannelOpenConfirmation, 16)
	w.PutUint32(m.RecipientChannel)
	w.PutUint32(m.SenderChannel)
	w.PutUint32(m.InitialWindowSize)
	w.PutUint32(m.MaxPacketSize)
	return w.Bytes()
}

func unpackChannelOpenConfirmation(r *wire.Reader) (Message, error) {
	m := &ChannelOpenConfirmation{}
	var err error
	if m.RecipientChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.SenderChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.InitialWindowSize, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.MaxPacketSize, err = r.GetUint32(); err != nil {
		return nil, err
	}
	return m, nil
}

type ChannelOpenFailure struct {
	RecipientChannel uint32
	ReasonCode       uint32
	Description      string
	LanguageTag      string
}

func NewChannelOpenFailure(recipient, reason uint32, desc string) *ChannelOpenFailure {
	return &ChannelOpenFailure{RecipientChannel: recipient, ReasonCode: reason, Description: desc}
}

func (m *ChannelOpenFailure) Type() Type { return TypeChannelOpenFailure }

func (m *ChannelOpenFailure) Marshal() []byte {
	w := header(TypeChannelOpenFailure, 24+len(m.Description))
	w.PutUint32(m.RecipientChannel)
	w.PutUint32(m.ReasonCode)
	w.PutStringValue(m.Description)
	w.PutStringValue(m.LanguageTag)
	return w.Bytes()
}

func unpackChannelOpenFailure(r *wire.Reader) (Message, error) {
	m := &ChannelOpenFailure{}
	var err error
	if m.RecipientChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.ReasonCode, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.Description, err = r.GetStringValue(); err != nil {
		return nil, err
	}
	m.LanguageTag, _ = r.GetStringValue()
	return m, nil
}

type ChannelWindowAdjust struct {
	RecipientChannel uint32
	BytesToAdd       uint32
}

func NewChannelWindowAdjust(recipient, n uint32) *ChannelWindowAdjust {
	return &ChannelWindowAdjust{RecipientChannel: recipient, BytesToAdd: n}
}

func (m *ChannelWindowAdjust) Type() Type { return TypeChannelWindowAdjust }

func (m *ChannelWindowAdjust) Marshal() []byte {
	w := header(TypeChannelWindowAdjust, 8)
	w.PutUint32(m.RecipientChannel)
	w.PutUint32(m.BytesToAdd)
	return w.Bytes()
}

func unpackChannelWindowAdjust(r *wire.Reader) (Message, error) {
	m := &ChannelWindowAdjust{}
	var err error
	if m.RecipientChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.BytesToAdd, err = r.GetUint32(); err != nil {
		return nil, err
	}
	return m, nil
}

type ChannelData struct {
	RecipientChannel uint32
	Data             []byte
}

func NewChannelData(recipient uint32, data []byte) *ChannelData {
	return &ChannelData{RecipientChannel: recipient, Data: data}
}

func (m *ChannelData) Type() Type { return TypeChannelData }

func (m *ChannelData) Marshal() []byte {
	w := header(TypeChannelData, 8+len(m.Data))
	w.PutUint32(m.RecipientChannel)
	w.PutString(m.Data)
	return w.Bytes()
}

func unpackChannelData(r *wire.Reader) (Message, error) {
	m := &ChannelData{}
	var err error
	if m.RecipientChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	data, err := r.GetString()
	if err != nil {
		return nil, err
	}
	m.Data = append([]byte(nil), data...)
	return m, nil
}

// SSHExtendedDataStderr is the only data_type_code this core produces
// or recognizes for SSH_MSG_CHANNEL_EXTENDED_DATA (RFC 4254 §5.2).
const SSHExtendedDataStderr uint32 = 1

type ChannelExtendedData struct {
	RecipientChannel uint32
	DataTypeCode     uint32
	Data             []byte
}

func NewChannelExtendedData(recipient uint32, data []byte) *ChannelExtendedData {
	return &ChannelExtendedData{RecipientChannel: recipient, DataTypeCode: SSHExtendedDataStderr, Data: data}
}

func (m *ChannelExtendedData) Type() Type { return TypeChannelExtendedData }

func (m *ChannelExtendedData) Marshal() []byte {
	w := header(TypeChannelExtendedData, 12+len(m.Data))
	w.PutUint32(m.RecipientChannel)
	w.PutUint32(m.DataTypeCode)
	w.PutString(m.Data)
	return w.Bytes()
}

func unpackChannelExtendedData(r *wire.Reader) (Message, error) {
	m := &ChannelExtendedData{}
	var err error
	if m.RecipientChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.DataTypeCode, err = r.GetUint32(); err != nil {
		return nil, err
	}
	data, err := r.GetString()
	if err != nil {
		return nil, err
	}
	m.Data = append([]byte(nil), data...)
	return m, nil
}

type ChannelEof struct{ RecipientChannel uint32 }

func NewChannelEof(recipient uint32) *ChannelEof { return &ChannelEof{RecipientChannel: recipient} }

func (m *ChannelEof) Type() Type { return TypeChannelEof }

func (m *ChannelEof) Marshal() []byte {
	w := header(TypeChannelEof, 4)
	w.PutUint32(m.RecipientChannel)
	return w.Bytes()
}

func unpackChannelEof(r *wire.Reader) (Message, error) {
	id, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	return &ChannelEof{RecipientChannel: id}, nil
}

type ChannelClose struct{ RecipientChannel uint32 }

func NewChannelClose(recipient uint32) *ChannelClose { return &ChannelClose{RecipientChannel: recipient} }

func (m *ChannelClose) Type() Type { return TypeChannelClose }

func (m *ChannelClose) Marshal() []byte {
	w := header(TypeChannelClose, 4)
	w.PutUint32(m.RecipientChannel)
	return w.Bytes()
}

func unpackChannelClose(r *wire.Reader) (Message, error) {
	id, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	return &ChannelClose{RecipientChannel: id}, nil
}

// ChannelRequest carries the request-type-specific fields for the
// request types this package decodes: pty-req, shell, exec, env,
// window-change. RequestType selects which fields are valid.
type ChannelRequest struct {
	RecipientChannel uint32
	RequestType      string
	WantReply        bool

	// pty-req
	TermEnv      string
	TermWidthCh  uint32
	TermHeightCh uint32
	TermWidthPx  uint32
	TermHeightPx uint32
	TermModes    []byte

	// exec / env name
	Command string
	EnvName string
	EnvValue string

	// window-change
	WinWidthCh  uint32
	WinHeightCh uint32
	WinWidthPx  uint32
	WinHeightPx uint32

	// exit-status (server->handler only consumer; included for completeness)
	ExitStatus uint32
}

func (m *ChannelRequest) Type() Type { return TypeChannelRequest }

func (m *ChannelRequest) Marshal() []byte {
	w := header(TypeChannelRequest, 32)
	w.PutUint32(m.RecipientChannel)
	w.PutStringValue(m.RequestType)
	w.PutBool(m.WantReply)
	switch m.RequestType {
	case "pty-req":
		w.PutStringValue(m.TermEnv)
		w.PutUint32(m.TermWidthCh)
		w.PutUint32(m.TermHeightCh)
		w.PutUint32(m.TermWidthPx)
		w.PutUint32(m.TermHeightPx)
		w.PutString(m.TermModes)
	case "exec":
		w.PutStringValue(m.Command)
	case "env":
		w.PutStringValue(m.EnvName)
		w.PutStringValue(m.EnvValue)
	case "window-change":
		w.PutUint32(m.WinWidthCh)
		w.PutUint32(m.WinHeightCh)
		w.PutUint32(m.WinWidthPx)
		w.PutUint32(m.WinHeightPx)
	case "shell":
	}
	return w.Bytes()
}

func unpackChannelRequest(r *wire.Reader) (Message, error) {
	m := &ChannelRequest{}
	var err error
	if m.RecipientChannel, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.RequestType, err = r.GetStringValue(); err != nil {
		return nil, err
	}
	if m.WantReply, err = r.GetBool(); err != nil {
		return nil, err
	}
	switch m.RequestType {
	case "pty-req":
		if m.TermEnv, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		if m.TermWidthCh, err = r.GetUint32(); err != nil {
			return nil, err
		}
		if m.TermHeightCh, err = r.GetUint32(); err != nil {
			return nil, err
		}
		if m.TermWidthPx, err = r.GetUint32(); err != nil {
			return nil, err
		}
		if m.TermHeightPx, err = r.GetUint32(); err != nil {
			return nil, err
		}
		modes, err := r.GetString()
		if err != nil {
			return nil, err
		}
		m.TermModes = append([]byte(nil), modes...)
	case "exec":
		if m.Command, err = r.GetStringValue(); err != nil {
			return nil, err
		}
	case "env":
		if m.EnvName, err = r.GetStringValue(); err != nil {
			return nil, err
		}
		if m.EnvValue, err = r.GetStringValue(); err != nil {
			return nil, err
		}
	case "window-change":
		if m.WinWidthCh, err = r.GetUint32(); err != nil {
			return nil, err
		}
		if m.WinHeightCh, err = r.GetUint32(); err != nil {
			return nil, err
		}
		if m.WinWidthPx, err = r.GetUint32(); err != nil {
			return nil, err
		}
		if m.WinHeightPx, err = r.GetUint32(); err != nil {
			return nil, err
		}
	case "shell":
	default:
		// unrecognized request type: leave fields zero, caller decides
		// whether to reply with CHANNEL_FAILURE.
	}
	return m, nil
}

type ChannelSuccess struct{ RecipientChannel uint32 }

func NewChannelSuccess(recipient uint32) *ChannelSuccess {
	return &ChannelSuccess{RecipientChannel: recipient}
}

func (m *ChannelSuccess) Type() Type { return TypeChannelSuccess }

func (m *ChannelSuccess) Marshal() []byte {
	w := header(TypeChannelSuccess, 4)
	w.PutUint32(m.RecipientChannel)
	return w.Bytes()
}

func unpackChannelSuccess(r *wire.Reader) (Message, error) {
	id, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	return &ChannelSuccess{RecipientChannel: id}, nil
}

type ChannelFailure struct{ RecipientChannel uint32 }

func NewChannelFailure(recipient uint32) *ChannelFailure {
	return &ChannelFailure{RecipientChannel: recipient}
}

func (m *ChannelFailure) Type() Type { return TypeChannelFailure }

func (m *ChannelFailure) Marshal() []byte {
	w := header(TypeChannelFailure, 4)
	w.PutUint32(m.RecipientChannel)
	return w.Bytes()
}

func unpackChannelFailure(r *wire.Reader) (Message, error) {
	id, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	return &ChannelFailure{RecipientChannel: id}, nil
}

// Unknown wraps a payload whose type code this core does not
// recognize, along with the sequence number it arrived on, so the
// dispatcher can reply with SSH_MSG_UNIMPLEMENTED(seq) per RFC 4253 §11.4.
type Unknown struct {
	Seq     uint32
	Code    Type
	Payload []byte
}

func (m *Unknown) Type() Type { return m.Code }

func (m *Unknown) Marshal() []byte {
	w := wire.NewBuffer(1 + len(m.Payload))
	w.PutByte(byte(m.Code))
	w.PutRaw(m.Payload)
	return w.Bytes()
}
