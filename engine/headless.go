package engine

import (
	"log/slog"
	"sync"
)

// Headless is an in-memory Sink used by tests and the standalone daemon.
// It records every call so callers can assert on engine interactions
// without a real engine process.
type Headless struct {
	mu sync.Mutex

	quality      map[string]int
	currentLevel string
	paused       bool
	quit         bool
	console      []string
	loadedLevels []string

	logger *slog.Logger
}

// NewHeadless creates a headless engine sink with mid-tier defaults.
func NewHeadless(logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{
		quality: map[string]int{
			KeyQualityLevel: 2,
			KeyAntiAliasing: 2,
			KeyShadow:       2,
			KeyPostProcess:  2,
			KeyTexture:      2,
			KeyEffects:      2,
			KeyFoliage:      2,
			KeyViewDistance: 2,
		},
		logger: logger.With("component", "engine.headless"),
	}
}

// ApplyQuality applies every field that is not Unchanged. A Level change
// also propagates to all individual settings, matching how engines apply
// an overall scalability tier before individual overrides.
func (h *Headless) ApplyQuality(q QualityRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if q.Level != Unchanged {
		for key := range h.quality {
			h.quality[key] = q.Level
		}
	}

	apply := func(key string, value int) {
		if value != Unchanged {
			h.quality[key] = value
		}
	}
	apply(KeyAntiAliasing, q.AntiAliasing)
	apply(KeyShadow, q.Shadow)
	apply(KeyPostProcess, q.PostProcess)
	apply(KeyTexture, q.Texture)
	apply(KeyEffects, q.Effects)
	apply(KeyFoliage, q.Foliage)
	apply(KeyViewDistance, q.ViewDistance)

	h.logger.Debug("applied quality settings", "level", q.Level)
}

// Quality returns a copy of the current quality settings.
func (h *Headless) Quality() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(h.quality))
	for k, v := range h.quality {
		out[k] = v
	}
	return out
}

// LoadLevel records the level as loaded and makes it current.
func (h *Headless) LoadLevel(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentLevel = name
	h.loadedLevels = append(h.loadedLevels, name)
	h.logger.Info("loaded level", "level", name)
}

// ExecuteConsole records the console command.
func (h *Headless) ExecuteConsole(cmd string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.console = append(h.console, cmd)
	h.logger.Debug("executed console command", "command", cmd)
}

// Pause marks the engine paused.
func (h *Headless) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
}

// Resume clears the paused flag.
func (h *Headless) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
}

// Quit marks the engine as torn down.
func (h *Headless) Quit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.quit = true
}

// CurrentLevel returns the most recently loaded level name.
func (h *Headless) CurrentLevel() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentLevel
}

// LoadedLevels returns every level loaded, in order.
func (h *Headless) LoadedLevels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loadedLevels...)
}

// ConsoleCommands returns every console command executed, in order.
func (h *Headless) ConsoleCommands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.console...)
}

// Paused reports whether the engine is currently paused.
func (h *Headless) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// QuitCalled reports whether Quit has been invoked.
func (h *Headless) QuitCalled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.quit
}
