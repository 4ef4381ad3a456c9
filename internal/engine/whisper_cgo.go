//go:build whisper

package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperBuilt indicates this binary was compiled with real whisper support.
var whisperBuilt = true

// whisperEngine keeps one whisper.cpp model resident in memory via the cgo
// bindings. Load replaces the resident model; Transcribe reuses it, which is
// the whole point of the daemon.
type whisperEngine struct {
	modelsDir  string
	threads    int
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperEngine constructs the cgo-backed engine.
func NewWhisperEngine(modelsDir string, threads int, baseURL string) Engine {
	return &whisperEngine{modelsDir: modelsDir, threads: threads, baseURL: baseURL}
}

func (e *whisperEngine) IsDownloaded(model string) bool {
	fi, err := os.Stat(ModelPath(e.modelsDir, model))
	return err == nil && fi.Size() > 0
}

func (e *whisperEngine) Download(ctx context.Context, model string, onProgress ProgressFunc) error {
	p, ok := LookupPreset(model)
	if !ok {
		return ErrUnknownModel(model)
	}
	base := e.baseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return download(ctx, e.httpClient, base+"/"+p.FileName, ModelPath(e.modelsDir, model), onProgress)
}

func (e *whisperEngine) Load(ctx context.Context, model string) error {
	m, err := whisper.New(ModelPath(e.modelsDir, model))
	if err != nil {
		return fmt.Errorf("load model %s: %w", model, err)
	}
	e.mu.Lock()
	prev := e.model
	e.model = m
	e.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

func (e *whisperEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("no model loaded")
	}
	samples, err := readWavMono16k(audioPath)
	if err != nil {
		return "", err
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(language) == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return "", err
	}
	if e.threads > 0 {
		wctx.SetThreads(uint(e.threads))
	}
	if err := wctx.Process(samples, nil, nil); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return sb.String(), nil
}

func (e *whisperEngine) Close() error {
	e.mu.Lock()
	model := e.model
	e.model = nil
	e.mu.Unlock()
	if model != nil {
		model.Close()
	}
	return nil
}

// readWavMono16k decodes a 16-bit PCM mono 16 kHz WAV file into the float32
// samples the bindings expect. Other formats are rejected; the recorder side
// of the pipeline produces exactly this format.
func readWavMono16k(path string) ([]float32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%s: not a WAV file", path)
	}
	// Walk chunks for fmt and data.
	var sampleRate, channels, bits int
	var data []byte
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := b[off+8:]
		if size > len(body) {
			size = len(body)
		}
		switch id {
		case "fmt ":
			if size >= 16 {
				channels = int(binary.LittleEndian.Uint16(body[2:4]))
				sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
				bits = int(binary.LittleEndian.Uint16(body[14:16]))
			}
		case "data":
			data = body[:size]
		}
		off += 8 + size
		if size%2 == 1 {
			off++
		}
	}
	if channels != 1 || sampleRate != whisper.SampleRate || bits != 16 {
		return nil, fmt.Errorf("%s: want 16-bit mono %d Hz PCM, got %d-bit %dch %d Hz", path, whisper.SampleRate, bits, channels, sampleRate)
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768.0
	}
	return samples, nil
}
