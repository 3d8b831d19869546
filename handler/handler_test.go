package handler

import (
	"context"
	"testing"

	"github.com/cvsouth/sshd-go/channel"
	"github.com/cvsouth/sshd-go/frame"
	"github.com/cvsouth/sshd-go/transport"
)

// compileCheck ensures Base satisfies Handler.
var _ Handler = Base{}

func TestBaseRejectsAuth(t *testing.T) {
	var b Base
	ctx := context.Background()
	s := Session{Username: "alice"}

	if got := b.AuthNone(ctx, s); got.Accept {
		t.Fatal("expected AuthNone to reject by default")
	}
	if got := b.AuthPassword(ctx, s, "hunter2"); got.Accept {
		t.Fatal("expected AuthPassword to reject by default")
	}
	if got := b.AuthPasswordChange(ctx, s, "old", "new"); got.Accept {
		t.Fatal("expected AuthPasswordChange to reject by default")
	}
	if got := b.AuthPublicKey(ctx, s, "ssh-ed25519", []byte("blob"), true); got.Accept {
		t.Fatal("expected AuthPublicKey to reject by default")
	}
}

func TestBaseChannelDefaults(t *testing.T) {
	var b Base
	ctx := context.Background()

	reg := channel.NewRegistry(frame.NewWriter(nil, transport.New()))
	ch := reg.Open(0, 32768, 32768)

	if err := b.ChannelOpenSession(ctx, ch); err != nil {
		t.Fatalf("ChannelOpenSession: %v", err)
	}
	if err := b.ChannelShellRequest(ctx, ch); err != nil {
		t.Fatalf("ChannelShellRequest: %v", err)
	}
	if err := b.ChannelExecRequest(ctx, ch, "ls"); err == nil {
		t.Fatal("expected ChannelExecRequest to reject by default")
	}
	if err := b.ChannelData(ctx, ch, []byte("x")); err != nil {
		t.Fatalf("ChannelData: %v", err)
	}
	if err := b.ChannelEOF(ctx, ch); err != nil {
		t.Fatalf("ChannelEOF: %v", err)
	}
	if err := b.ChannelClose(ctx, ch); err != nil {
		t.Fatalf("ChannelClose: %v", err)
	}
}
