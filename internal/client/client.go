// Package client implements the one-shot request/response client used by
// short-lived invocations to reach a running scribed daemon. Every failure
// mode (encode error, missing socket, connect refusal, timeout, transport
// error, undecodable reply) surfaces as absence (ok == false), never as an
// error value, so callers can uniformly fall back to local execution.
package client

import (
	"bufio"
	"net"
	"os"
	"time"

	"scribed/internal/protocol"
	"scribed/pkg/types"
)

// DefaultTimeout applies when a call passes no positive timeout. It is
// generous because a first transcription may download and load a model.
const DefaultTimeout = 120 * time.Second

// StatusTimeout is the short timeout used for liveness checks.
const StatusTimeout = 3 * time.Second

// maxFrameBytes mirrors the daemon's read ceiling.
const maxFrameBytes = 1 << 20

// Client performs one-shot exchanges against a daemon socket.
type Client struct {
	socketPath string
}

// New constructs a Client for the given socket path.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// SocketPath returns the daemon endpoint this client targets.
func (c *Client) SocketPath() string { return c.socketPath }

// Call sends one request and waits up to timeout for the response. Exactly
// one of {response, absence} is produced per call: the exchange runs in a
// goroutine that writes a single-slot result channel, raced against a timer;
// whichever side loses the race is abandoned and cannot fire a second
// outcome.
func (c *Client) Call(req types.Request, timeout time.Duration) (types.Response, bool) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	frame, err := protocol.EncodeRequest(req)
	if err != nil {
		return types.Response{}, false
	}

	type result struct {
		resp types.Response
		ok   bool
	}
	done := make(chan result, 1)
	go func() {
		resp, ok := c.exchange(frame, timeout)
		done <- result{resp: resp, ok: ok}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.resp, r.ok
	case <-timer.C:
		// The abandoned exchange goroutine finishes against its own
		// connection deadline and its result is dropped.
		return types.Response{}, false
	}
}

func (c *Client) exchange(frame []byte, timeout time.Duration) (types.Response, bool) {
	conn, err := net.DialTimeout("unix", c.socketPath, timeout)
	if err != nil {
		return types.Response{}, false
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(frame); err != nil {
		return types.Response{}, false
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)
	if !scanner.Scan() {
		return types.Response{}, false
	}
	resp, err := protocol.DecodeResponse(scanner.Bytes())
	if err != nil {
		return types.Response{}, false
	}
	return resp, true
}

// Status performs a short-timeout status call.
func (c *Client) Status() (types.Response, bool) {
	return c.Call(types.Request{Action: types.ActionStatus}, StatusTimeout)
}

// IsRunning reports whether a daemon is serving on the socket: the endpoint
// file must exist and a short status call must return ok.
func (c *Client) IsRunning() bool {
	if _, err := os.Stat(c.socketPath); err != nil {
		return false
	}
	resp, ok := c.Status()
	return ok && resp.OK
}
