package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"glimpse/internal/logging"
)

// SocketEnv names the environment variable a parent process can set to
// pick the control socket path.
const SocketEnv = "GLIMPSE_CONTROL_SOCKET"

// ResolveSocketPath picks the control socket path: the configured path if
// any, then the environment, then a freshly generated unguessable name.
// generated reports whether the caller should advertise the path once on
// stdout for a parent process to capture.
func ResolveSocketPath(configured string) (path string, generated bool) {
	if configured != "" {
		return configured, false
	}
	if env := os.Getenv(SocketEnv); env != "" {
		return env, false
	}
	name := "glimpse_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".sock"
	return filepath.Join(os.TempDir(), name), true
}

// Server accepts control connections on a unix socket and answers one JSON
// response per JSON request. A connection may carry several requests in
// sequence; connections are handled concurrently with each other.
type Server struct {
	path     string
	handler  *Handler
	logger   *slog.Logger
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the control socket. Any stale socket file at the path is
// removed first; the new one is restricted to the owning user.
func NewServer(ctx context.Context, path string, handler *Handler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("command server requires a handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict control socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:     path,
		handler:  handler,
		logger:   logging.WithComponent(logger, "command"),
		listener: listener,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Path returns the bound socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve accepts connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("control socket listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "command_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.serveConn(c)
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove control socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	if !s.peerAllowed(conn) {
		s.logger.Warn("control connection from foreign user rejected",
			logging.String(logging.FieldEventType, "command_peer_rejected"))
		return
	}

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("control connection read failed", logging.Error(err))
			}
			return
		}
		resp := s.handler.Handle(s.ctx, raw)
		if err := enc.Encode(resp); err != nil {
			s.logger.Debug("control connection write failed", logging.Error(err))
			return
		}
	}
}

// peerAllowed verifies the connecting process runs as the same user via
// SO_PEERCRED. Anything that is not a unix socket peer is rejected.
func (s *Server) peerAllowed(conn net.Conn) bool {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return false
	}
	var (
		cred    *unix.Ucred
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return false
	}
	if credErr != nil || cred == nil {
		return false
	}
	return cred.Uid == uint32(os.Getuid())
}
