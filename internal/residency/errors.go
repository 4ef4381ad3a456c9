package residency

// downloadFailedError signals that fetching model assets failed.
type downloadFailedError struct {
	model string
	cause error
}

func (e downloadFailedError) Error() string { return "download " + e.model + ": " + e.cause.Error() }
func (e downloadFailedError) Unwrap() error { return e.cause }

// ErrDownloadFailed constructs a downloadFailedError.
func ErrDownloadFailed(model string, cause error) error {
	return downloadFailedError{model: model, cause: cause}
}

// IsDownloadFailed reports whether err indicates a failed asset download.
func IsDownloadFailed(err error) bool {
	_, ok := err.(downloadFailedError)
	return ok
}

// loadFailedError signals that instantiating the engine failed.
type loadFailedError struct {
	model string
	cause error
}

func (e loadFailedError) Error() string { return "load " + e.model + ": " + e.cause.Error() }
func (e loadFailedError) Unwrap() error { return e.cause }

// ErrLoadFailed constructs a loadFailedError.
func ErrLoadFailed(model string, cause error) error {
	return loadFailedError{model: model, cause: cause}
}

// IsLoadFailed reports whether err indicates a failed engine load.
func IsLoadFailed(err error) bool {
	_, ok := err.(loadFailedError)
	return ok
}

// transcribeFailedError signals that inference itself failed.
type transcribeFailedError struct {
	model string
	cause error
}

func (e transcribeFailedError) Error() string { return e.cause.Error() }
func (e transcribeFailedError) Unwrap() error { return e.cause }

// ErrTranscribeFailed constructs a transcribeFailedError.
func ErrTranscribeFailed(model string, cause error) error {
	return transcribeFailedError{model: model, cause: cause}
}

// IsTranscribeFailed reports whether err indicates a failed inference run.
func IsTranscribeFailed(err error) bool {
	_, ok := err.(transcribeFailedError)
	return ok
}
