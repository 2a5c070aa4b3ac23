// Package catalog holds the static model and voice tables the service
// selects from. Everything here is loaded once at init and never mutated;
// lookups are pure and deterministic.
package catalog

// ModelType distinguishes the two Gemini Live capability tiers.
type ModelType string

const (
	// TypeHalfCascade models run the classic STT->LLM->TTS cascade with a
	// small fixed voice set.
	TypeHalfCascade ModelType = "half-cascade"
	// TypeNativeAudio models synthesize speech natively and expose the
	// extended 30-voice set.
	TypeNativeAudio ModelType = "native-audio"
	// TypeUnknown is returned for ids absent from both tables.
	TypeUnknown ModelType = "unknown"
)

// Voice describes one selectable prebuilt voice.
type Voice struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Languages   []string `json:"languages"`
}

// Model describes one selectable hosted conversational model.
type Model struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        ModelType `json:"type"`
	Description string    `json:"description"`
	Features    []string  `json:"features"`
	Tier        string    `json:"tier"`
}

// DefaultModelID is the model used when a connect request omits model_id.
const DefaultModelID = "gemini-2.0-flash-live-001"

// halfCascadeVoices is ordered; DefaultVoice relies on a stable first entry.
var halfCascadeVoices = []Voice{
	{ID: "Puck", Description: "Upbeat voice", Languages: []string{"multi"}},
	{ID: "Charon", Description: "Informative voice", Languages: []string{"multi"}},
	{ID: "Kore", Description: "Firm voice", Languages: []string{"multi"}},
	{ID: "Fenrir", Description: "Excitable voice", Languages: []string{"multi"}},
	{ID: "Aoede", Description: "Breezy voice", Languages: []string{"multi"}},
	{ID: "Leda", Description: "Youthful voice", Languages: []string{"multi"}},
	{ID: "Orus", Description: "Firm voice", Languages: []string{"multi"}},
	{ID: "Zephyr", Description: "Bright voice", Languages: []string{"multi"}},
}

// nativeAudioVoices is the extended set: every half-cascade voice plus the
// voices only available on native-audio models.
var nativeAudioVoices = append(append([]Voice{}, halfCascadeVoices...), []Voice{
	{ID: "Callirrhoe", Description: "Easy-going voice", Languages: []string{"multi"}},
	{ID: "Autonoe", Description: "Bright voice", Languages: []string{"multi"}},
	{ID: "Enceladus", Description: "Breathy voice", Languages: []string{"multi"}},
	{ID: "Iapetus", Description: "Clear voice", Languages: []string{"multi"}},
	{ID: "Umbriel", Description: "Easy-going voice", Languages: []string{"multi"}},
	{ID: "Algieba", Description: "Smooth voice", Languages: []string{"multi"}},
	{ID: "Despina", Description: "Smooth voice", Languages: []string{"multi"}},
	{ID: "Erinome", Description: "Clear voice", Languages: []string{"multi"}},
	{ID: "Algenib", Description: "Gravelly voice", Languages: []string{"multi"}},
	{ID: "Rasalgethi", Description: "Informative voice", Languages: []string{"multi"}},
	{ID: "Laomedeia", Description: "Upbeat voice", Languages: []string{"multi"}},
	{ID: "Achernar", Description: "Soft voice", Languages: []string{"multi"}},
	{ID: "Alnilam", Description: "Firm voice", Languages: []string{"multi"}},
	{ID: "Schedar", Description: "Even voice", Languages: []string{"multi"}},
	{ID: "Gacrux", Description: "Mature voice", Languages: []string{"multi"}},
	{ID: "Pulcherrima", Description: "Forward voice", Languages: []string{"multi"}},
	{ID: "Achird", Description: "Friendly voice", Languages: []string{"multi"}},
	{ID: "Zubenelgenubi", Description: "Casual voice", Languages: []string{"multi"}},
	{ID: "Vindemiatrix", Description: "Gentle voice", Languages: []string{"multi"}},
	{ID: "Sadachbia", Description: "Lively voice", Languages: []string{"multi"}},
	{ID: "Sadaltager", Description: "Knowledgeable voice", Languages: []string{"multi"}},
	{ID: "Sulafat", Description: "Warm voice", Languages: []string{"multi"}},
}...)

// models is ordered: half-cascade tier first, then native-audio. Order is
// what clients see from /models.
var models = []Model{
	{
		ID:          "gemini-2.0-flash-exp",
		Name:        "Gemini 2.0 Flash Experimental",
		Type:        TypeHalfCascade,
		Description: "Confirmed Live API support (bidiGenerateContent)",
		Features:    []string{"streaming", "interruption", "low_latency"},
		Tier:        "free",
	},
	{
		ID:          "gemini-2.0-flash-live-001",
		Name:        "Gemini 2.0 Flash Live",
		Type:        TypeHalfCascade,
		Description: "Confirmed Live API support, used in production",
		Features:    []string{"streaming", "interruption", "low_latency", "production"},
		Tier:        "free",
	},
	{
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Type:        TypeHalfCascade,
		Description: "Latest half-cascade model with documented Live API support",
		Features:    []string{"streaming", "interruption", "low_latency", "latest"},
		Tier:        "free",
	},
	{
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
		Type:        TypeHalfCascade,
		Description: "Stable half-cascade model with documented Live API support",
		Features:    []string{"streaming", "interruption", "low_latency"},
		Tier:        "free",
	},
	{
		ID:          "gemini-2.5-flash-preview-native-audio-dialog",
		Name:        "Gemini 2.5 Flash Native Audio Dialog",
		Type:        TypeNativeAudio,
		Description: "Native audio with emotion-aware responses (paid tier)",
		Features:    []string{"native_audio", "all_voices", "emotion_aware"},
		Tier:        "paid",
	},
	{
		ID:          "gemini-live-2.5-flash",
		Name:        "Gemini Live 2.5 Flash",
		Type:        TypeNativeAudio,
		Description: "Production native audio model (private GA, requires approval)",
		Features:    []string{"native_audio", "all_voices", "production_ready"},
		Tier:        "paid_ga",
	},
	{
		ID:          "gemini-live-2.5-flash-preview-native-audio-09-2025",
		Name:        "Gemini Live 2.5 Flash Native Audio Preview",
		Type:        TypeNativeAudio,
		Description: "Public preview of native audio capabilities (paid tier)",
		Features:    []string{"native_audio", "all_voices", "preview"},
		Tier:        "paid",
	},
}

var modelsByID = func() map[string]Model {
	m := make(map[string]Model, len(models))
	for _, md := range models {
		m[md.ID] = md
	}
	return m
}()

// AllModels returns the full model table in catalog order.
func AllModels() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// ModelIDs returns every configured model id in catalog order.
func ModelIDs() []string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}

// Lookup returns the descriptor for a model id.
func Lookup(modelID string) (Model, bool) {
	m, ok := modelsByID[modelID]
	return m, ok
}

// ResolveModelType maps a model id to its capability tier, or TypeUnknown.
func ResolveModelType(modelID string) ModelType {
	m, ok := modelsByID[modelID]
	if !ok {
		return TypeUnknown
	}
	return m.Type
}

// VoicesFor returns the ordered voice set for a model, nil for unknown ids.
func VoicesFor(modelID string) []Voice {
	switch ResolveModelType(modelID) {
	case TypeHalfCascade:
		out := make([]Voice, len(halfCascadeVoices))
		copy(out, halfCascadeVoices)
		return out
	case TypeNativeAudio:
		out := make([]Voice, len(nativeAudioVoices))
		copy(out, nativeAudioVoices)
		return out
	default:
		return nil
	}
}

// VoiceIDsFor returns just the ids of VoicesFor, in table order.
func VoiceIDsFor(modelID string) []string {
	voices := VoicesFor(modelID)
	ids := make([]string, 0, len(voices))
	for _, v := range voices {
		ids = append(ids, v.ID)
	}
	return ids
}

// AllVoices returns the full extended voice table in catalog order.
func AllVoices() []Voice {
	out := make([]Voice, len(nativeAudioVoices))
	copy(out, nativeAudioVoices)
	return out
}

// FindVoice locates a voice by id across the full table.
func FindVoice(voiceID string) (Voice, bool) {
	for _, v := range nativeAudioVoices {
		if v.ID == voiceID {
			return v, true
		}
	}
	return Voice{}, false
}

// LookupVoice finds a voice within a model's set.
func LookupVoice(modelID, voiceID string) (Voice, bool) {
	for _, v := range VoicesFor(modelID) {
		if v.ID == voiceID {
			return v, true
		}
	}
	return Voice{}, false
}

// IsVoiceSupported reports whether voiceID belongs to modelID's voice set.
func IsVoiceSupported(modelID, voiceID string) bool {
	_, ok := LookupVoice(modelID, voiceID)
	return ok
}

// DefaultVoice prefers Puck when the model's set contains it, otherwise the
// first entry of the ordered table. Returns "" for unknown models.
func DefaultVoice(modelID string) string {
	voices := VoicesFor(modelID)
	if len(voices) == 0 {
		return ""
	}
	for _, v := range voices {
		if v.ID == "Puck" {
			return v.ID
		}
	}
	return voices[0].ID
}
