// Package notify delivers the "use this interpreter" instruction to the
// VS Code extension over its local unix socket.
package notify

import (
	"context"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/envs"
	"github.com/gcubed-code/buildswitch/internal/log"
	"github.com/gcubed-code/buildswitch/internal/protocol"
)

// Notifier is a best-effort client for a cooperating but independently
// failing process. Every failure mode returns false without retry; the
// provisioned environment stays valid regardless.
type Notifier struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Notifier.
func New(cfg *config.Config) *Notifier {
	return &Notifier{
		cfg:    cfg,
		logger: log.WithComponent("notify"),
	}
}

// Notify asks the extension to switch to the interpreter for buildTag.
// The configured timeout bounds both the dial and the request/response
// exchange; the connection is closed on every path.
func (n *Notifier) Notify(ctx context.Context, buildTag string) bool {
	name := envs.Name(n.cfg.VenvPrefix, buildTag)
	python := envs.Interpreter(envs.Path(n.cfg.RootDir, name))
	logger := n.logger.With("python_path", python)

	logger.Info("switching python interpreter")

	if _, err := os.Stat(n.cfg.SocketPath); err != nil {
		logger.Warn("extension socket not found, is the VS Code extension installed and running?",
			"socket", n.cfg.SocketPath)
		return false
	}

	dialer := net.Dialer{Timeout: n.cfg.NotifyTimeout}
	conn, err := dialer.DialContext(ctx, "unix", n.cfg.SocketPath)
	if err != nil {
		logger.Warn("failed to connect to the VS Code extension", "error", err)
		return false
	}
	defer conn.Close()

	// One deadline covers the whole exchange.
	_ = conn.SetDeadline(time.Now().Add(n.cfg.NotifyTimeout))

	req := &protocol.Request{
		Action:     n.cfg.NotifyAction,
		PythonPath: python,
		ShortName:  name,
	}
	if err := protocol.EncodeRequest(conn, req); err != nil {
		logger.Warn("failed to send activation request", "error", err)
		return false
	}

	resp, err := protocol.DecodeResponse(conn)
	if err != nil {
		logger.Warn("malformed or missing response from the VS Code extension", "error", err)
		return false
	}

	if !resp.Success {
		logger.Warn("extension refused interpreter switch", "error", resp.Error)
		return false
	}

	applied := resp.RequestedPath
	if applied == "" {
		applied = python
	}
	logger.Info("python interpreter set", "applied_path", applied)
	return true
}
