// Package daemon implements the Unix-socket acceptor and request dispatcher
// for scribed. One connection carries exactly one request/response exchange.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scribed/internal/protocol"
)

// maxFrameBytes bounds how much a single connection may send before the
// daemon gives up on it. A request frame is a few hundred bytes; 1 MiB
// leaves room without letting a misbehaving client grow memory unbounded.
const maxFrameBytes = 1 << 20

// writeTimeout bounds how long a response write may block on a stalled peer.
const writeTimeout = 10 * time.Second

// Server accepts connections on a filesystem-addressed Unix socket and runs
// each through the dispatcher. Accepting is concurrent; serialization happens
// inside the residency cache, so a long transcription only backs up the
// cache queue, never the accept loop.
type Server struct {
	socketPath string
	dispatcher *Dispatcher

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer constructs a Server for the given socket path.
func NewServer(socketPath string, dispatcher *Dispatcher) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		dispatcher: dispatcher,
		conns:      make(map[net.Conn]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SocketPath returns the endpoint path the server binds.
func (s *Server) SocketPath() string { return s.socketPath }

// Context is canceled when the server stops; background work tied to the
// server's lifetime should derive from it.
func (s *Server) Context() context.Context { return s.ctx }

// Start binds the socket and begins accepting. Any stale socket file from a
// crashed prior instance is removed first; parent directories are created as
// needed. Bind failure is the only fatal condition.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return err
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ln.Close()
		os.Remove(s.socketPath)
		return errors.New("server already stopped")
	}
	s.ln = ln
	s.mu.Unlock()

	if zlog != nil {
		zlog.Info().Str("event", "listening").Str("socket", s.socketPath).Msg("ipc")
	} else {
		log.Printf("ipc event=listening socket=%s", s.socketPath)
	}

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if zlog != nil {
				zlog.Error().Str("event", "accept_error").Err(err).Msg("ipc")
			} else {
				log.Printf("ipc event=accept_error err=%v", err)
			}
			continue
		}
		if !s.trackConn(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackConn(conn)
			s.handleConn(conn)
		}()
	}
}

// handleConn runs one connection through its full lifecycle:
// Idle -> Reading -> Dispatching -> Writing -> Closed, with Idle -> Closed
// on an empty read. The connection is closed exactly once, on every path.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	ipcOpenConnections.Inc()
	defer ipcOpenConnections.Dec()

	frame, err := readFrame(conn)
	if err != nil {
		if len(frame) == 0 {
			// No-op disconnect: the peer connected and went away
			// without sending anything.
			return
		}
		// A partial frame with no terminator is still dispatchable:
		// the codec accepts terminator-less input. Anything else is
		// unrecoverable; just close.
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			if zlog != nil {
				zlog.Error().Str("event", "read_error").Err(err).Msg("ipc")
			} else {
				log.Printf("ipc event=read_error err=%v", err)
			}
			return
		}
	}
	if len(frame) == 0 {
		return
	}

	resp := s.dispatcher.Handle(s.ctx, frame)

	buf, err := protocol.EncodeResponse(resp)
	if err != nil {
		// Should never happen for our response shapes.
		log.Printf("ipc event=encode_error err=%v", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(buf); err != nil {
		if zlog != nil {
			zlog.Error().Str("event", "write_error").Err(err).Msg("ipc")
		} else {
			log.Printf("ipc event=write_error err=%v", err)
		}
	}
}

// trackConn registers an accepted connection so Stop can close it. Returns
// false when the server is already stopped.
func (s *Server) trackConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// readFrame reads until one newline-terminated frame arrives, EOF ends the
// stream, or the size ceiling is hit. On EOF the bytes read so far are
// returned so terminator-less clients still work.
func readFrame(conn net.Conn) ([]byte, error) {
	r := bufio.NewReaderSize(io.LimitReader(conn, maxFrameBytes), 4096)
	line, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return line, io.EOF
		}
		return line, err
	}
	return line, nil
}

// Stop cancels accepting and removes the socket file. Idempotent: safe to
// call multiple times or concurrently; later calls are no-ops.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	ln := s.ln
	s.ln = nil
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	if ln != nil {
		ln.Close()
	}
	// Unblock handlers stuck reading from clients that never sent a frame;
	// without this a single idle connection would stall shutdown forever.
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("ipc event=socket_remove_error err=%v", err)
	}
	if zlog != nil {
		zlog.Info().Str("event", "stopped").Str("socket", s.socketPath).Msg("ipc")
	} else {
		log.Printf("ipc event=stopped socket=%s", s.socketPath)
	}
}
