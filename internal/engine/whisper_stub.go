//go:build !whisper

package engine

// This file provides a no-CGO stub for the whisper bindings backend. It is
// compiled when the 'whisper' build tag is NOT set, keeping default builds
// and CI CGO-free. The real backend lives in whisper_cgo.go (tagged
// 'whisper'); default builds use the subprocess backend instead.

import "context"

// whisperBuilt indicates whether this binary carries the cgo backend.
var whisperBuilt = false

type whisperEngine struct{}

// NewWhisperEngine returns a stub that refuses to run without the 'whisper'
// build tag. No mocked behavior in production binaries.
func NewWhisperEngine(modelsDir string, threads int, baseURL string) Engine {
	return &whisperEngine{}
}

func (e *whisperEngine) IsDownloaded(model string) bool { return false }

func (e *whisperEngine) Download(ctx context.Context, model string, onProgress ProgressFunc) error {
	return ErrDependencyUnavailable("whisper support not built (missing 'whisper' build tag)")
}

func (e *whisperEngine) Load(ctx context.Context, model string) error {
	return ErrDependencyUnavailable("whisper support not built (missing 'whisper' build tag)")
}

func (e *whisperEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	return "", ErrDependencyUnavailable("whisper support not built (missing 'whisper' build tag)")
}

func (e *whisperEngine) Close() error { return nil }
