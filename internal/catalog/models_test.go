package catalog

import (
	"strings"
	"testing"
)

func TestVoicesForEveryModelNonEmptyWithValidDefault(t *testing.T) {
	for _, m := range AllModels() {
		voices := VoicesFor(m.ID)
		if len(voices) == 0 {
			t.Fatalf("VoicesFor(%q) is empty", m.ID)
		}
		def := DefaultVoice(m.ID)
		if def == "" {
			t.Fatalf("DefaultVoice(%q) is empty", m.ID)
		}
		if !IsVoiceSupported(m.ID, def) {
			t.Fatalf("DefaultVoice(%q) = %q not in the model's voice set", m.ID, def)
		}
	}
}

func TestIsVoiceSupportedMatchesMembership(t *testing.T) {
	probes := []string{"Puck", "Sulafat", "Aoede", "not-a-voice", ""}
	for _, m := range AllModels() {
		members := make(map[string]bool)
		for _, v := range VoicesFor(m.ID) {
			members[v.ID] = true
		}
		for _, probe := range probes {
			if got, want := IsVoiceSupported(m.ID, probe), members[probe]; got != want {
				t.Fatalf("IsVoiceSupported(%q, %q) = %v, want %v", m.ID, probe, got, want)
			}
		}
	}
}

func TestResolveModelType(t *testing.T) {
	tests := []struct {
		modelID string
		want    ModelType
	}{
		{"gemini-2.0-flash-live-001", TypeHalfCascade},
		{"gemini-2.5-flash", TypeHalfCascade},
		{"gemini-live-2.5-flash", TypeNativeAudio},
		{"gemini-2.5-flash-preview-native-audio-dialog", TypeNativeAudio},
		{"unknown-model", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tt := range tests {
		if got := ResolveModelType(tt.modelID); got != tt.want {
			t.Fatalf("ResolveModelType(%q) = %q, want %q", tt.modelID, got, tt.want)
		}
	}
}

func TestNativeAudioVoicesSupersetOfHalfCascade(t *testing.T) {
	native := make(map[string]bool)
	for _, v := range VoicesFor("gemini-live-2.5-flash") {
		native[v.ID] = true
	}
	for _, v := range VoicesFor("gemini-2.0-flash-live-001") {
		if !native[v.ID] {
			t.Fatalf("half-cascade voice %q missing from native-audio set", v.ID)
		}
	}
	if len(native) != 30 {
		t.Fatalf("native-audio voice count = %d, want 30", len(native))
	}
}

func TestDefaultVoicePrefersPuck(t *testing.T) {
	if got := DefaultVoice(DefaultModelID); got != "Puck" {
		t.Fatalf("DefaultVoice(%q) = %q, want Puck", DefaultModelID, got)
	}
	if got := DefaultVoice("unknown-model"); got != "" {
		t.Fatalf("DefaultVoice(unknown) = %q, want empty", got)
	}
}

func TestVoiceForLanguage(t *testing.T) {
	tests := []struct {
		language string
		want     string
	}{
		{"nl-NL", "Aoede"},
		{"en-GB", "Charon"},
		{"de-DE", "Orus"},
		{"xx-XX", "Puck"},
		{"", "Puck"},
	}
	for _, tt := range tests {
		if got := VoiceForLanguage(DefaultModelID, tt.language); got != tt.want {
			t.Fatalf("VoiceForLanguage(%q, %q) = %q, want %q", DefaultModelID, tt.language, got, tt.want)
		}
	}
}

func TestSystemInstructionLocalization(t *testing.T) {
	nl := SystemInstruction("nl-NL", "Aoede", TypeHalfCascade)
	if nl == "" || nl[:2] != "Je" {
		t.Fatalf("Dutch instruction looks wrong: %q", nl)
	}
	en := SystemInstruction("en-US", "Puck", TypeNativeAudio)
	if want := "native audio"; !strings.Contains(en, want) {
		t.Fatalf("native-audio instruction missing %q: %q", want, en)
	}
	if !strings.Contains(en, "Puck") {
		t.Fatalf("instruction missing voice id: %q", en)
	}
}
