package daemon

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribed/internal/protocol"
	"scribed/pkg/types"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "scribed.sock")
	srv := NewServer(sock, newTestDispatcher(newFakeEngine()))
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func exchange(t *testing.T, sock string, payload []byte) types.Response {
	t.Helper()
	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := readFrame(conn)
	if err != nil && len(frame) == 0 {
		t.Fatalf("read: %v", err)
	}
	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestServerStatusExchange(t *testing.T) {
	srv := startTestServer(t)
	for i := 0; i < 5; i++ {
		resp := exchange(t, srv.SocketPath(), []byte(`{"action":"status"}`+"\n"))
		if !resp.OK {
			t.Fatalf("status %d failed: %+v", i, resp)
		}
		if resp.Models == nil {
			t.Fatalf("status %d: models is null", i)
		}
	}
}

func TestServerHandlesTerminatorlessFrame(t *testing.T) {
	srv := startTestServer(t)
	conn, err := net.Dial("unix", srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"action":"status"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Half-close signals end of request to the reader.
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := readFrame(conn)
	if err != nil && len(frame) == 0 {
		t.Fatalf("read: %v", err)
	}
	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServerMalformedFrameGetsErrorResponse(t *testing.T) {
	srv := startTestServer(t)
	resp := exchange(t, srv.SocketPath(), []byte("this is not json\n"))
	if resp.OK || resp.Error == "" {
		t.Fatalf("expected error response, got %+v", resp)
	}
}

func TestServerEmptyConnectionIsNoop(t *testing.T) {
	srv := startTestServer(t)
	conn, err := net.Dial("unix", srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
	// The daemon must survive and keep serving.
	resp := exchange(t, srv.SocketPath(), []byte(`{"action":"status"}`+"\n"))
	if !resp.OK {
		t.Fatalf("status after empty conn failed: %+v", resp)
	}
}

func TestServerReplacesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "scribed.sock")
	// Simulate a crashed prior instance leaving its socket behind.
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("pre-bind: %v", err)
	}
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()
	if _, err := os.Stat(sock); err != nil {
		t.Fatalf("stale socket missing: %v", err)
	}

	srv := NewServer(sock, newTestDispatcher(newFakeEngine()))
	if err := srv.Start(); err != nil {
		t.Fatalf("start over stale socket: %v", err)
	}
	defer srv.Stop()
	resp := exchange(t, sock, []byte(`{"action":"status"}`+"\n"))
	if !resp.OK {
		t.Fatalf("status failed: %+v", resp)
	}
}

func TestServerCreatesParentDirs(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "nested", "run", "scribed.sock")
	srv := NewServer(sock, newTestDispatcher(newFakeEngine()))
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()
	if _, err := os.Stat(sock); err != nil {
		t.Fatalf("socket not created: %v", err)
	}
}

func TestStopRemovesSocketAndIsIdempotent(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "scribed.sock")
	srv := NewServer(sock, newTestDispatcher(newFakeEngine()))
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Stop()
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Fatalf("socket still present after stop: %v", err)
	}
	// Second stop must not fault.
	srv.Stop()

	// A client dialing after stop fails immediately.
	start := time.Now()
	if _, err := net.Dial("unix", sock); err == nil {
		t.Fatalf("dial should fail after stop")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("dial failure took too long")
	}
}

func TestStopClosesIdleConnections(t *testing.T) {
	srv := startTestServer(t)
	// A client that connects and never sends anything must not be able to
	// hold up shutdown.
	conn, err := net.Dial("unix", srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop blocked on an idle connection")
	}
}

func TestStopConcurrent(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "scribed.sock")
	srv := NewServer(sock, newTestDispatcher(newFakeEngine()))
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			srv.Stop()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("concurrent stop deadlocked")
		}
	}
}
