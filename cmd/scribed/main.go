package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"scribed/internal/common/fsutil"
	"scribed/internal/config"
	"scribed/internal/daemon"
	"scribed/internal/engine"
	"scribed/internal/httpapi"
	"scribed/internal/residency"
	"scribed/pkg/types"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	// Flags with environment variable defaults
	socketPath := flag.String("socket", envDefault("SCRIBED_SOCKET", fsutil.DefaultSocketPath()), "Unix socket path to serve on")
	modelsDir := flag.String("models-dir", envDefault("SCRIBED_MODELS_DIR", fsutil.DefaultModelsDir()), "Directory holding downloaded model files")
	language := flag.String("language", envDefault("SCRIBED_LANGUAGE", "auto"), "Default transcription language when requests omit one")
	preload := flag.String("preload", envDefault("SCRIBED_PRELOAD", ""), "Comma-separated model ids to load at startup (known: "+strings.Join(engine.PresetIDs(), ", ")+")")
	engineKind := flag.String("engine", envDefault("SCRIBED_ENGINE", "subprocess"), "Engine backend: subprocess or cgo")
	whisperBin := flag.String("whisper-bin", envDefault("SCRIBED_WHISPER_BIN", ""), "whisper-cli binary for the subprocess backend")
	threads := flag.Int("threads", 0, "Inference threads (0 = engine default)")
	debugAddr := flag.String("debug-addr", envDefault("SCRIBED_DEBUG_ADDR", ""), "Optional HTTP listen address for status/metrics (empty = disabled)")
	configPath := flag.String("config", envDefault("SCRIBED_CONFIG", ""), "Optional config file (.yaml/.json/.toml); flags override")
	logJSON := flag.Bool("log-json", false, "Emit structured JSON logs")
	flag.Parse()

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		applyConfig(cfg, socketPath, modelsDir, language, preload, engineKind, whisperBin, threads, debugAddr)
	}

	// Structured logging when requested; the packages fall back to log.Printf
	// otherwise.
	if *logJSON {
		zl := zerolog.New(os.Stderr).With().Timestamp().Str("service", "scribed").Logger()
		daemon.SetLogger(zl)
	}

	dir := fsutil.ExpandHome(*modelsDir)
	var eng engine.Engine
	switch *engineKind {
	case "cgo", "whisper":
		if !engine.CgoAvailable() {
			log.Printf("cgo backend requested but not compiled in; rebuild with -tags=whisper")
		}
		eng = engine.NewWhisperEngine(dir, *threads, engine.DefaultBaseURL)
	case "subprocess", "":
		eng = engine.NewSubprocessEngine(engine.SubprocessConfig{
			Bin:       *whisperBin,
			ModelsDir: dir,
			Threads:   *threads,
		})
	default:
		log.Fatalf("unknown engine backend %q (want subprocess or cgo)", *engineKind)
	}

	cache := residency.New(eng)
	cache.SetPublisher(daemon.MetricsPublisher{})

	srv := daemon.NewServer(*socketPath, daemon.NewDispatcher(cache, *language))
	if err := srv.Start(); err != nil {
		log.Fatalf("failed to start daemon: %v", err)
	}
	log.Printf("scribed listening on %s (models dir: %s, engine: %s)", *socketPath, dir, *engineKind)

	// Warm requested models before accepting real traffic matters less than
	// simplicity here: preloads queue on the same residency mutex as requests.
	for _, model := range splitCSV(*preload) {
		if err := cache.EnsureResident(srv.Context(), model); err != nil {
			log.Printf("preload %s failed: %v", model, err)
		}
	}

	var debugSrv *http.Server
	if *debugAddr != "" {
		svc := &daemonService{
			cache:      cache,
			socketPath: *socketPath,
			engine:     *engineKind,
			modelsDir:  dir,
			started:    time.Now(),
		}
		debugSrv = &http.Server{Addr: *debugAddr, Handler: httpapi.NewMux(svc)}
		go func() {
			log.Printf("debug listener on %s", *debugAddr)
			if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("debug listener error: %v", err)
			}
		}()
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutting down")
	srv.Stop()
	if debugSrv != nil {
		debugSrv.Close()
	}
	if err := cache.Close(); err != nil {
		log.Printf("engine close error: %v", err)
	}
}

// applyConfig fills in flag values the user did not set explicitly.
func applyConfig(cfg config.Config, socketPath, modelsDir, language, preload, engineKind, whisperBin *string, threads *int, debugAddr *string) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["socket"] && cfg.SocketPath != "" {
		*socketPath = cfg.SocketPath
	}
	if !set["models-dir"] && cfg.ModelsDir != "" {
		*modelsDir = cfg.ModelsDir
	}
	if !set["language"] && cfg.Language != "" {
		*language = cfg.Language
	}
	if !set["preload"] && len(cfg.Preload) > 0 {
		*preload = strings.Join(cfg.Preload, ",")
	}
	if !set["engine"] && cfg.Engine != "" {
		*engineKind = cfg.Engine
	}
	if !set["whisper-bin"] && cfg.WhisperBin != "" {
		*whisperBin = cfg.WhisperBin
	}
	if !set["threads"] && cfg.Threads > 0 {
		*threads = cfg.Threads
	}
	if !set["debug-addr"] && cfg.DebugAddr != "" {
		*debugAddr = cfg.DebugAddr
	}
}

// daemonService adapts daemon state to the httpapi.Service interface.
type daemonService struct {
	cache      *residency.Cache
	socketPath string
	engine     string
	modelsDir  string
	started    time.Time
}

func (s *daemonService) Status() types.StatusResponse {
	now := time.Now()
	return types.StatusResponse{
		Loaded:         s.cache.Hot(),
		Models:         s.cache.EverLoaded(),
		SocketPath:     s.socketPath,
		Engine:         s.engine,
		LoadsTotal:     s.cache.LoadsTotal(),
		UptimeSeconds:  int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

func (s *daemonService) Models() []types.ModelStatus {
	return engine.ListStatuses(s.modelsDir, engine.DefaultBaseURL)
}

func (s *daemonService) Ready() bool { return true }
