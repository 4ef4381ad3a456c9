package types

// ModelStatus summarizes one known model preset for GET /models.
type ModelStatus struct {
	// Stable identifier for the model.
	// example: tiny.en
	ID string `json:"id" example:"tiny.en"`
	// Download URL for the model assets.
	// example: https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin
	URL string `json:"url,omitempty"`
	// Approximate download size label.
	// example: 75 MiB
	SizeLabel string `json:"size_label,omitempty" example:"75 MiB"`
	// Whether the model assets are present on disk.
	// example: true
	Downloaded bool `json:"downloaded"`
	// Absolute path of the assets when downloaded.
	LocalPath string `json:"local_path,omitempty"`
}

// StatusResponse is returned by GET /status on the observability listener.
type StatusResponse struct {
	// Currently hot model id, empty when none is loaded.
	// example: tiny.en
	Loaded string `json:"loaded,omitempty" example:"tiny.en"`
	// Model ids loaded at least once this session.
	Models []string `json:"models"`
	// Unix-domain socket path the daemon serves on.
	// example: /run/user/1000/scribed.sock
	SocketPath string `json:"socket_path"`
	// Engine backend in use (subprocess or cgo).
	// example: subprocess
	Engine string `json:"engine,omitempty" example:"subprocess"`
	// Total number of engine loads this session.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
