package types

// Action identifies the kind of request carried by one socket frame.
type Action string

const (
	ActionTranscribe Action = "transcribe"
	ActionStatus     Action = "status"
	ActionPreload    Action = "preload"
)

// Valid reports whether a is one of the known request actions.
func (a Action) Valid() bool {
	switch a {
	case ActionTranscribe, ActionStatus, ActionPreload:
		return true
	}
	return false
}

// Request is one command sent over the local Unix-domain socket.
// Optional fields are meaningful depending on Action: transcribe needs
// Audio and Model, preload needs Model, status needs nothing.
type Request struct {
	// Action is required and determines which optional fields apply.
	// example: transcribe
	Action Action `json:"action"`
	// Audio is the path to the audio file to transcribe.
	// example: /tmp/test.wav
	Audio string `json:"audio,omitempty"`
	// Model is the model identifier to transcribe or preload with.
	// example: tiny.en
	Model string `json:"model,omitempty"`
	// Language is an optional language code; the daemon default applies
	// when empty.
	// example: en
	Language string `json:"language,omitempty"`
}

// Response is the single reply written for every request. Fields that do
// not apply to a given outcome are omitted or null on the wire, never
// zero-defaulted. Models and Loaded carry explicit nulls so that status
// replies can distinguish "empty set" ([]) from "not a status reply" (null).
type Response struct {
	// OK reports whether the request succeeded.
	OK bool `json:"ok"`
	// Text is the transcript, present only on successful transcription.
	Text *string `json:"text,omitempty"`
	// Seconds is the wall-clock transcription duration, present only on
	// successful transcription.
	Seconds *float64 `json:"seconds,omitempty"`
	// Error is a human-readable failure reason, present only when OK is
	// false. Validation failures name the offending field.
	Error string `json:"error,omitempty"`
	// Models is the set of model ids loaded at least once this session.
	// Present ([] when empty) on status and preload replies.
	Models []string `json:"models"`
	// Loaded is the currently hot model id, or null when none is loaded.
	Loaded *string `json:"loaded"`
}

// OKText builds a successful transcription response.
func OKText(text string, seconds float64) Response {
	return Response{OK: true, Text: &text, Seconds: &seconds}
}

// OKStatus builds a status-shaped success response. models must be non-nil
// so an empty history serializes as [] rather than null.
func OKStatus(models []string, loaded string) Response {
	if models == nil {
		models = []string{}
	}
	resp := Response{OK: true, Models: models}
	if loaded != "" {
		resp.Loaded = &loaded
	}
	return resp
}

// Err builds a failure response.
func Err(msg string) Response {
	return Response{OK: false, Error: msg}
}
