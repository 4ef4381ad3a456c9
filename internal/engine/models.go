package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scribed/pkg/types"
)

// DefaultBaseURL is where preset model assets are fetched from.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Preset describes one downloadable ggml model.
type Preset struct {
	ID        string
	FileName  string
	SizeLabel string
}

// presets lists the ggml conversions published for whisper.cpp. IDs match
// the upstream naming (tiny.en, base, large-v3, ...).
var presets = []Preset{
	{ID: "tiny", FileName: "ggml-tiny.bin", SizeLabel: "75 MiB"},
	{ID: "tiny.en", FileName: "ggml-tiny.en.bin", SizeLabel: "75 MiB"},
	{ID: "base", FileName: "ggml-base.bin", SizeLabel: "142 MiB"},
	{ID: "base.en", FileName: "ggml-base.en.bin", SizeLabel: "142 MiB"},
	{ID: "small", FileName: "ggml-small.bin", SizeLabel: "466 MiB"},
	{ID: "small.en", FileName: "ggml-small.en.bin", SizeLabel: "466 MiB"},
	{ID: "medium", FileName: "ggml-medium.bin", SizeLabel: "1.5 GiB"},
	{ID: "medium.en", FileName: "ggml-medium.en.bin", SizeLabel: "1.5 GiB"},
	{ID: "large-v2", FileName: "ggml-large-v2.bin", SizeLabel: "2.9 GiB"},
	{ID: "large-v3", FileName: "ggml-large-v3.bin", SizeLabel: "2.9 GiB"},
	{ID: "large-v3-turbo", FileName: "ggml-large-v3-turbo.bin", SizeLabel: "1.5 GiB"},
}

// LookupPreset resolves a model id to its preset.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// PresetIDs returns the known model ids in listing order.
func PresetIDs() []string {
	out := make([]string, 0, len(presets))
	for _, p := range presets {
		out = append(out, p.ID)
	}
	return out
}

// ModelPath returns the on-disk path for a model id under dir. The id does
// not have to be a preset: unknown ids map to ggml-<id>.bin so sideloaded
// conversions work too.
func ModelPath(dir, id string) string {
	if p, ok := LookupPreset(id); ok {
		return filepath.Join(dir, p.FileName)
	}
	return filepath.Join(dir, "ggml-"+id+".bin")
}

// ListStatuses reports every preset with its download state under dir.
func ListStatuses(dir, baseURL string) []types.ModelStatus {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	out := make([]types.ModelStatus, 0, len(presets))
	for _, p := range presets {
		path := filepath.Join(dir, p.FileName)
		st := types.ModelStatus{
			ID:        p.ID,
			URL:       baseURL + "/" + p.FileName,
			SizeLabel: p.SizeLabel,
		}
		if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
			st.Downloaded = true
			st.LocalPath = path
		}
		out = append(out, st)
	}
	return out
}

// ListDownloaded scans dir for ggml-*.bin files and returns their model ids.
func ListDownloaded(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "ggml-") || !strings.HasSuffix(name, ".bin") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "ggml-"), ".bin"))
	}
	sort.Strings(ids)
	return ids, nil
}
