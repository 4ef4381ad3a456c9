package engine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// SubprocessConfig configures the whisper.cpp CLI backend.
type SubprocessConfig struct {
	// Bin is the whisper.cpp CLI binary. Defaults to "whisper-cli" on PATH.
	Bin string
	// ModelsDir is where ggml model files live.
	ModelsDir string
	// Threads limits inference threads; 0 lets the CLI decide.
	Threads int
	// BaseURL overrides the model download origin (tests point it at a
	// local httptest server).
	BaseURL string
	// HTTPClient overrides the downloader client. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// subprocessEngine shells out to the whisper.cpp CLI per transcription. The
// "resident instance" is the validated model file path; per-call process
// startup re-reads the model, which is the cost the cgo backend avoids.
type subprocessEngine struct {
	cfg SubprocessConfig

	mu        sync.Mutex
	modelPath string
}

// NewSubprocessEngine constructs the CLI-backed engine.
func NewSubprocessEngine(cfg SubprocessConfig) Engine {
	if strings.TrimSpace(cfg.Bin) == "" {
		cfg.Bin = "whisper-cli"
	}
	return &subprocessEngine{cfg: cfg}
}

func (e *subprocessEngine) IsDownloaded(model string) bool {
	fi, err := os.Stat(ModelPath(e.cfg.ModelsDir, model))
	return err == nil && fi.Size() > 0
}

func (e *subprocessEngine) Download(ctx context.Context, model string, onProgress ProgressFunc) error {
	p, ok := LookupPreset(model)
	if !ok {
		return ErrUnknownModel(model)
	}
	base := e.cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return download(ctx, e.cfg.HTTPClient, base+"/"+p.FileName, ModelPath(e.cfg.ModelsDir, model), onProgress)
}

func (e *subprocessEngine) Load(ctx context.Context, model string) error {
	if _, err := exec.LookPath(e.cfg.Bin); err != nil {
		return ErrDependencyUnavailable("whisper binary not found: " + e.cfg.Bin)
	}
	path := ModelPath(e.cfg.ModelsDir, model)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model %s: %w", model, err)
	}
	f.Close()
	e.mu.Lock()
	e.modelPath = path
	e.mu.Unlock()
	return nil
}

func (e *subprocessEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	e.mu.Lock()
	modelPath := e.modelPath
	e.mu.Unlock()
	if modelPath == "" {
		return "", fmt.Errorf("no model loaded")
	}
	if strings.TrimSpace(language) == "" {
		language = "auto"
	}

	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-l", language,
		"-nt", // no timestamps
		"-np", // no progress prints
	}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.cfg.Threads))
	}

	cmd := exec.CommandContext(ctx, e.cfg.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Include a small stderr tail for context.
		tail := stderr.String()
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		return "", fmt.Errorf("%s: %v: %s", e.cfg.Bin, err, strings.TrimSpace(tail))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (e *subprocessEngine) Close() error {
	e.mu.Lock()
	e.modelPath = ""
	e.mu.Unlock()
	return nil
}
