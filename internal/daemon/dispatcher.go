package daemon

import (
	"context"
	"log"
	"os"
	"time"

	"scribed/internal/protocol"
	"scribed/internal/residency"
	"scribed/pkg/types"
)

// Dispatcher validates decoded requests and routes them to the residency
// cache. It is pure routing plus validation: every error is converted to a
// well-formed error Response, nothing propagates to the acceptor.
type Dispatcher struct {
	cache           *residency.Cache
	defaultLanguage string
}

// NewDispatcher constructs a Dispatcher. defaultLanguage applies when a
// transcribe request omits language; empty means "auto".
func NewDispatcher(cache *residency.Cache, defaultLanguage string) *Dispatcher {
	return &Dispatcher{cache: cache, defaultLanguage: defaultLanguage}
}

// Handle decodes one frame and produces exactly one Response. A frame that
// was read but cannot be decoded yields an "Invalid request" error response
// rather than a dropped connection.
func (d *Dispatcher) Handle(ctx context.Context, frame []byte) types.Response {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		observeRequest("invalid", "error", 0)
		return types.Err("Invalid request: " + err.Error())
	}

	start := time.Now()
	resp := d.route(ctx, req)
	outcome := "ok"
	if !resp.OK {
		outcome = "error"
	}
	observeRequest(string(req.Action), outcome, time.Since(start).Seconds())

	if zlog != nil {
		zlog.Info().
			Str("action", string(req.Action)).
			Str("model", req.Model).
			Bool("ok", resp.OK).
			Dur("dur", time.Since(start)).
			Msg("request")
	} else {
		log.Printf("ipc event=request action=%s model=%q ok=%v dur_ms=%d", req.Action, req.Model, resp.OK, time.Since(start)/time.Millisecond)
	}
	return resp
}

func (d *Dispatcher) route(ctx context.Context, req types.Request) types.Response {
	switch req.Action {
	case types.ActionStatus:
		return d.handleStatus()
	case types.ActionPreload:
		return d.handlePreload(ctx, req)
	case types.ActionTranscribe:
		return d.handleTranscribe(ctx, req)
	}
	// Unreachable: DecodeRequest rejects unknown actions.
	return types.Err("Invalid request: unknown action: " + string(req.Action))
}

func (d *Dispatcher) handleStatus() types.Response {
	return types.OKStatus(d.cache.EverLoaded(), d.cache.Hot())
}

func (d *Dispatcher) handlePreload(ctx context.Context, req types.Request) types.Response {
	if req.Model == "" {
		return types.Err("Missing 'model' field")
	}
	if err := d.cache.EnsureResident(ctx, req.Model); err != nil {
		return types.Err("Preload failed: " + err.Error())
	}
	return d.handleStatus()
}

func (d *Dispatcher) handleTranscribe(ctx context.Context, req types.Request) types.Response {
	// Audio is checked before model, consistently.
	if req.Audio == "" {
		return types.Err("Missing 'audio' field")
	}
	if req.Model == "" {
		return types.Err("Missing 'model' field")
	}
	if !readableFile(req.Audio) {
		return types.Err("Audio file not found: " + req.Audio)
	}
	language := req.Language
	if language == "" {
		language = d.defaultLanguage
	}

	text, seconds, err := d.cache.Transcribe(ctx, req.Model, req.Audio, language)
	if err != nil {
		// Covers download/load failures on the way in as well as the
		// inference itself.
		return types.Err("Transcription failed: " + err.Error())
	}
	transcribeDuration.Observe(seconds)
	return types.OKText(text, seconds)
}

// readableFile reports whether path names an existing regular file the
// daemon can open.
func readableFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
