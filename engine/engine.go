package engine

// Unchanged is the sentinel for quality fields that should keep their
// current value when a QualityRequest is applied.
const Unchanged = -1

// Quality setting keys as reported by Quality(). These match the field
// names the UI side sends in applyQualitySettings payloads.
const (
	KeyQualityLevel = "qualityLevel"
	KeyAntiAliasing = "antiAliasing"
	KeyShadow       = "shadow"
	KeyPostProcess  = "postProcess"
	KeyTexture      = "texture"
	KeyEffects      = "effects"
	KeyFoliage      = "foliage"
	KeyViewDistance = "viewDistance"
)

// QualityRequest carries a partial quality update. Each field is a
// quality tier (0-4) or Unchanged to leave the current value as is.
type QualityRequest struct {
	Level        int `json:"qualityLevel"`
	AntiAliasing int `json:"antiAliasing"`
	Shadow       int `json:"shadow"`
	PostProcess  int `json:"postProcess"`
	Texture      int `json:"texture"`
	Effects      int `json:"effects"`
	Foliage      int `json:"foliage"`
	ViewDistance int `json:"viewDistance"`
}

// UnchangedQuality returns a QualityRequest that leaves every setting
// untouched. Callers set only the fields they want to change.
func UnchangedQuality() QualityRequest {
	return QualityRequest{
		Level:        Unchanged,
		AntiAliasing: Unchanged,
		Shadow:       Unchanged,
		PostProcess:  Unchanged,
		Texture:      Unchanged,
		Effects:      Unchanged,
		Foliage:      Unchanged,
		ViewDistance: Unchanged,
	}
}

// Sink is the surface the bridge uses to control an embedded engine
// instance. Implementations must tolerate calls from any goroutine.
//
// All methods are fire-and-forget from the bridge's point of view: the
// engine applies what it can and the bridge never blocks on engine
// internals.
type Sink interface {
	// ApplyQuality applies a partial quality update. Fields set to
	// Unchanged keep their current value.
	ApplyQuality(q QualityRequest)

	// Quality reports the current quality settings keyed by the Key*
	// constants.
	Quality() map[string]int

	// LoadLevel asks the engine to open the named level/map.
	LoadLevel(name string)

	// ExecuteConsole runs an engine console command.
	ExecuteConsole(cmd string)

	// Pause suspends engine ticking/rendering.
	Pause()

	// Resume resumes a paused engine.
	Resume()

	// Quit tears the engine instance down.
	Quit()
}
