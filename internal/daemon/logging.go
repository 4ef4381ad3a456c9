package daemon

import (
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the socket layer.
func SetLogger(l zerolog.Logger) { zlog = &l }
