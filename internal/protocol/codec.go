// Package protocol implements the newline-framed JSON wire codec used on
// the scribed Unix socket. One frame is one JSON object terminated by a
// single '\n'.
package protocol

import (
	"bytes"
	"encoding/json"

	"scribed/pkg/types"
)

// protocolError signals a malformed frame: empty input, invalid JSON, or an
// unknown action. It never carries partial decode results.
type protocolError struct{ msg string }

func (e protocolError) Error() string { return e.msg }

// ErrProtocol constructs a protocolError.
func ErrProtocol(msg string) error { return protocolError{msg: msg} }

// IsProtocolError reports whether err indicates a malformed frame.
func IsProtocolError(err error) bool {
	_, ok := err.(protocolError)
	return ok
}

// EncodeRequest serializes req as one canonical JSON object followed by
// exactly one newline. Field order follows the struct declaration and is
// stable across calls.
func EncodeRequest(req types.Request) ([]byte, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// EncodeResponse serializes resp as one newline-terminated JSON object.
func EncodeResponse(resp types.Response) ([]byte, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// DecodeRequest parses one frame into a Request. Trailing CR/LF bytes are
// stripped first, so input is accepted with '\n', '\r\n', or no terminator.
// Unrecognized extra fields are ignored; an unrecognized action fails, so a
// Request with an invalid action is never constructed.
func DecodeRequest(b []byte) (types.Request, error) {
	var req types.Request
	line, err := trimFrame(b)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(line, &req); err != nil {
		return req, ErrProtocol("invalid JSON: " + err.Error())
	}
	if !req.Action.Valid() {
		return types.Request{}, ErrProtocol("unknown action: " + string(req.Action))
	}
	return req, nil
}

// DecodeResponse parses one frame into a Response.
func DecodeResponse(b []byte) (types.Response, error) {
	var resp types.Response
	line, err := trimFrame(b)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, ErrProtocol("invalid JSON: " + err.Error())
	}
	return resp, nil
}

func trimFrame(b []byte) ([]byte, error) {
	line := bytes.TrimRight(b, "\r\n")
	if len(line) == 0 {
		return nil, ErrProtocol("empty frame")
	}
	return line, nil
}
