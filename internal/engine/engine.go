// Package engine abstracts the speech-recognition runtime consumed by the
// residency cache. The daemon never talks to whisper.cpp directly; it goes
// through the Engine interface so backends can be swapped (subprocess CLI,
// cgo bindings, fakes in tests).
package engine

import "context"

// ProgressFunc receives download progress. total is -1 when unknown.
type ProgressFunc func(received, total int64)

// Engine is the narrow interface the daemon requires from a transcription
// backend. Implementations hold at most one loaded model instance; Load
// replaces it. Callers are expected to serialize access.
type Engine interface {
	// IsDownloaded reports whether the model's assets are present on disk.
	IsDownloaded(model string) bool
	// Download fetches the model's assets. onProgress may be nil.
	Download(ctx context.Context, model string, onProgress ProgressFunc) error
	// Load instantiates the single resident model, releasing any previous one.
	Load(ctx context.Context, model string) error
	// Transcribe runs inference on the audio file. language may be "auto".
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
	// Close releases the resident instance, if any.
	Close() error
}

// CgoAvailable reports whether this binary was compiled with the cgo whisper
// backend ('whisper' build tag).
func CgoAvailable() bool { return whisperBuilt }

// dependencyUnavailableError signals a missing runtime dependency (binary or
// build tag) as opposed to a failed download/load/inference.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

// unknownModelError signals a model id outside the preset registry.
type unknownModelError struct{ id string }

func (e unknownModelError) Error() string { return "unknown model: " + e.id }

// ErrUnknownModel constructs an unknownModelError.
func ErrUnknownModel(id string) error { return unknownModelError{id: id} }

// IsUnknownModel reports whether err indicates an unrecognized model id.
func IsUnknownModel(err error) bool {
	_, ok := err.(unknownModelError)
	return ok
}
