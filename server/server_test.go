package server

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cvsouth/sshd-go/channel"
	"github.com/cvsouth/sshd-go/frame"
	"github.com/cvsouth/sshd-go/handler"
	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/msg"
	"github.com/cvsouth/sshd-go/negotiate"
	"github.com/cvsouth/sshd-go/transport"
	"github.com/cvsouth/sshd-go/version"
	"github.com/cvsouth/sshd-go/wire"
)

// testClient drives a minimal hand-rolled client over one side of a
// net.Pipe: identification line, a curve25519 key exchange (mirroring
// kex's own fakeClient), and raw message send/recv for everything after.
type testClient struct {
	reader *frame.Reader
	writer *frame.Writer
}

func dialTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	br := bufio.NewReader(conn)
	if _, err := version.Exchange(br, conn, "SSH-2.0-testclient"); err != nil {
		t.Fatalf("client version exchange: %v", err)
	}
	state := transport.New()
	c := &testClient{
		reader: frame.NewReader(br, state),
		writer: frame.NewWriter(conn, state),
	}
	c.kex(t)
	return c
}

func (c *testClient) kex(t *testing.T) {
	t.Helper()
	var cookie [16]byte
	local := negotiate.Default().ToKexInit(cookie, false)
	c.send(t, local)

	_, serverInit, err := c.reader.ReadPacket()
	if err != nil {
		t.Fatalf("read server KEXINIT: %v", err)
	}
	if msg.Type(serverInit[0]) != msg.TypeKexInit {
		t.Fatalf("expected KEXINIT, got %v", msg.Type(serverInit[0]))
	}

	clientPub := bytes.Repeat([]byte{0x09}, 32) // arbitrary valid-looking curve25519 point
	w := wire.NewBuffer(64)
	w.PutByte(byte(msg.TypeKexECDHInit))
	w.PutString(clientPub)
	if err := c.writer.WritePacket(w.Bytes()); err != nil {
		t.Fatalf("write KEX_ECDH_INIT: %v", err)
	}
	_, reply, err := c.reader.ReadPacket()
	if err != nil {
		t.Fatalf("read KEX_ECDH_REPLY: %v", err)
	}
	if msg.Type(reply[0]) != msg.TypeKexECDHReply {
		t.Fatalf("expected KEX_ECDH_REPLY, got %v", msg.Type(reply[0]))
	}

	if err := c.writer.WritePacket((&msg.NewKeys{}).Marshal()); err != nil {
		t.Fatalf("write NEWKEYS: %v", err)
	}
	_, payload, err := c.reader.ReadPacket()
	if err != nil {
		t.Fatalf("read NEWKEYS: %v", err)
	}
	if msg.Type(payload[0]) != msg.TypeNewKeys {
		t.Fatalf("expected NEWKEYS, got %v", msg.Type(payload[0]))
	}
}

func (c *testClient) send(t *testing.T, m msg.Message) {
	t.Helper()
	if err := c.writer.WritePacket(msg.Marshal(m)); err != nil {
		t.Fatalf("write %T: %v", m, err)
	}
}

func (c *testClient) recv(t *testing.T) msg.Message {
	t.Helper()
	seq, payload, err := c.reader.ReadPacket()
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	m, err := msg.Unpack(seq, payload)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	return m
}

// testHandler is a minimal handler.Handler: one fixed password, a
// "session" channel that records exec/data/close and echoes a line back
// synchronously so message ordering in the tests below stays
// deterministic.
type testHandler struct {
	handler.Base
	password string

	mu      sync.Mutex
	execCmd string
	data    [][]byte
	closed  bool
}

func (h *testHandler) AuthPassword(ctx context.Context, s handler.Session, password string) handler.AuthResult {
	if password == h.password {
		return handler.AuthResult{Accept: true}
	}
	return handler.Reject
}

func (h *testHandler) ChannelOpenSession(ctx context.Context, ch *channel.Handle) error {
	return nil
}

func (h *testHandler) ChannelExecRequest(ctx context.Context, ch *channel.Handle, command string) error {
	h.mu.Lock()
	h.execCmd = command
	h.mu.Unlock()
	return ch.SendData(ctx, []byte("hello\n"))
}

func (h *testHandler) ChannelData(ctx context.Context, ch *channel.Handle, data []byte) error {
	h.mu.Lock()
	h.data = append(h.data, append([]byte(nil), data...))
	h.mu.Unlock()
	return nil
}

func (h *testHandler) ChannelClose(ctx context.Context, ch *channel.Handle) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func newTestServer(t *testing.T, h handler.Handler) *Server {
	t.Helper()
	hk, err := hostkey.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return New(hostkey.NewSet(hk), h, WithTimeout(5*time.Second))
}

func TestConnMinimalSessionLifecycle(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	h := &testHandler{password: "correct horse battery staple"}
	srv := newTestServer(t, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOne(serverConn)
	}()

	client := dialTestClient(t, clientConn)

	client.send(t, &msg.ServiceRequest{Name: "ssh-userauth"})
	if acc, ok := client.recv(t).(*msg.ServiceAccept); !ok || acc.Name != "ssh-userauth" {
		t.Fatalf("expected SERVICE_ACCEPT, got %#v", acc)
	}

	client.send(t, &msg.UserauthRequest{
		UserName: "alice", ServiceName: "ssh-connection", MethodName: "password",
		Password: "correct horse battery staple",
	})
	if _, ok := client.recv(t).(*msg.UserauthSuccess); !ok {
		t.Fatalf("expected USERAUTH_SUCCESS")
	}

	client.send(t, &msg.ChannelOpen{
		ChannelType: "session", SenderChannel: 0,
		InitialWindowSize: channel.DefaultInitialWindow, MaxPacketSize: channel.DefaultMaxPacketSize,
	})
	confirm, ok := client.recv(t).(*msg.ChannelOpenConfirmation)
	if !ok {
		t.Fatalf("expected CHANNEL_OPEN_CONFIRMATION")
	}
	serverChan := confirm.SenderChannel

	client.send(t, &msg.ChannelRequest{
		RecipientChannel: serverChan, RequestType: "exec", WantReply: true, Command: "true",
	})

	data, ok := client.recv(t).(*msg.ChannelData)
	if !ok || string(data.Data) != "hello\n" {
		t.Fatalf("expected CHANNEL_DATA %q, got %#v", "hello\n", data)
	}
	if _, ok := client.recv(t).(*msg.ChannelSuccess); !ok {
		t.Fatalf("expected CHANNEL_SUCCESS")
	}

	client.send(t, &msg.ChannelData{RecipientChannel: serverChan, Data: []byte("ping")})
	client.send(t, &msg.ChannelEof{RecipientChannel: serverChan})
	client.send(t, &msg.ChannelClose{RecipientChannel: serverChan})

	if _, ok := client.recv(t).(*msg.ChannelClose); !ok {
		t.Fatalf("expected CHANNEL_CLOSE echo")
	}

	clientConn.Close()
	<-done

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.execCmd != "true" {
		t.Errorf("execCmd = %q, want %q", h.execCmd, "true")
	}
	if len(h.data) != 1 || string(h.data[0]) != "ping" {
		t.Errorf("data = %v", h.data)
	}
	if !h.closed {
		t.Error("handler ChannelClose was not called")
	}
}

func TestPasswordAuthRejected(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	h := &testHandler{password: "correct horse battery staple"}
	srv := newTestServer(t, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOne(serverConn)
	}()

	client := dialTestClient(t, clientConn)
	client.send(t, &msg.ServiceRequest{Name: "ssh-userauth"})
	client.recv(t)

	client.send(t, &msg.UserauthRequest{
		UserName: "alice", ServiceName: "ssh-connection", MethodName: "password", Password: "wrong",
	})
	fail, ok := client.recv(t).(*msg.UserauthFailure)
	if !ok {
		t.Fatalf("expected USERAUTH_FAILURE")
	}
	if fail.PartialSuccess {
		t.Error("PartialSuccess = true for a flat reject")
	}

	clientConn.Close()
	<-done
}

func TestChannelOpenBeforeAuthIsRejected(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	h := &testHandler{password: "x"}
	srv := newTestServer(t, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOne(serverConn)
	}()

	client := dialTestClient(t, clientConn)
	client.send(t, &msg.ChannelOpen{
		ChannelType: "session", SenderChannel: 0,
		InitialWindowSize: channel.DefaultInitialWindow, MaxPacketSize: channel.DefaultMaxPacketSize,
	})
	failure, ok := client.recv(t).(*msg.ChannelOpenFailure)
	if !ok {
		t.Fatalf("expected CHANNEL_OPEN_FAILURE, got %#v", failure)
	}
	if failure.ReasonCode != msg.ChannelOpenAdministrativelyProhibited {
		t.Errorf("ReasonCode = %d, want %d", failure.ReasonCode, msg.ChannelOpenAdministrativelyProhibited)
	}

	clientConn.Close()
	<-done
}

func TestKeepaliveEmitsIgnore(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	h := &testHandler{password: "x"}
	srv := newTestServer(t, h)
	srv.KeepaliveInterval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOne(serverConn)
	}()

	client := dialTestClient(t, clientConn)
	if _, ok := client.recv(t).(*msg.Ignore); !ok {
		t.Fatalf("expected SSH_MSG_IGNORE keepalive")
	}

	clientConn.Close()
	<-done
}

func TestNoCommonKexAlgorithmDisconnects(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	h := &testHandler{password: "x"}
	srv := newTestServer(t, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOne(serverConn)
	}()

	br := bufio.NewReader(clientConn)
	if _, err := version.Exchange(br, clientConn, "SSH-2.0-testclient"); err != nil {
		t.Fatalf("client version exchange: %v", err)
	}
	state := transport.New()
	reader := frame.NewReader(br, state)
	writer := frame.NewWriter(clientConn, state)

	pref := negotiate.Default()
	pref.KexAlgorithms = []string{"no-such-kex-algorithm"}
	var cookie [16]byte
	if err := writer.WritePacket(msg.Marshal(pref.ToKexInit(cookie, false))); err != nil {
		t.Fatalf("write KEXINIT: %v", err)
	}
	if _, _, err := reader.ReadPacket(); err != nil {
		t.Fatalf("read server KEXINIT: %v", err)
	}

	_, payload, err := reader.ReadPacket()
	if err != nil {
		t.Fatalf("read DISCONNECT: %v", err)
	}
	if msg.Type(payload[0]) != msg.TypeDisconnect {
		t.Fatalf("expected DISCONNECT, got %v", msg.Type(payload[0]))
	}
	dc, err := msg.Unpack(0, payload)
	if err != nil {
		t.Fatalf("unpack DISCONNECT: %v", err)
	}
	if dc.(*msg.Disconnect).ReasonCode != msg.DisconnectKeyExchangeFailed {
		t.Errorf("ReasonCode = %d, want %d", dc.(*msg.Disconnect).ReasonCode, msg.DisconnectKeyExchangeFailed)
	}

	clientConn.Close()
	<-done
}
