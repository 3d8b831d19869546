package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cvsouth/sshd-go/channel"
	"github.com/cvsouth/sshd-go/handler"
	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	fmt.Printf("=== sshd-go %s ===\n", Version)

	hostKey, err := hostkey.GenerateEd25519()
	if err != nil {
		logger.Error("generate host key", "err", err)
		os.Exit(1)
	}

	srv := server.New(hostkey.NewSet(hostKey), &echoHandler{logger: logger}, server.WithLogger(logger))
	srv.Addr = "127.0.0.1:2222"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		logger.Error("server stopped", "err", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}

// echoHandler accepts password "demo" for any username, then echoes
// whatever it receives on a session channel's CHANNEL_DATA back to the
// client until the client sends CHANNEL_EOF.
type echoHandler struct {
	handler.Base
	logger *slog.Logger
}

func (h *echoHandler) AuthPassword(ctx context.Context, s handler.Session, password string) handler.AuthResult {
	if password == "demo" {
		return handler.AuthResult{Accept: true}
	}
	return handler.Reject
}

func (h *echoHandler) ChannelShellRequest(ctx context.Context, ch *channel.Handle) error {
	return ch.SendData(ctx, []byte("welcome to sshd-go, type to have it echoed back\r\n"))
}

func (h *echoHandler) ChannelData(ctx context.Context, ch *channel.Handle, data []byte) error {
	return ch.SendData(ctx, data)
}

func (h *echoHandler) ChannelEOF(ctx context.Context, ch *channel.Handle) error {
	return ch.Close()
}
