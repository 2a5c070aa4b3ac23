// Package protocol defines the app-message payloads the bot publishes into
// the room for clients to render.
package protocol

// MessageType identifies app-message payload variants.
type MessageType string

const (
	TypeTranscript MessageType = "transcript"
	TypeBotStatus  MessageType = "bot_status"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Transcript is one line of conversation text, tagged with the voice that
// was active when it was produced.
type Transcript struct {
	Type      MessageType `json:"type"`
	Speaker   Speaker     `json:"speaker"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"ts_ms"`
	VoiceID   string      `json:"voice_id,omitempty"`
}

// BotStatus reports bot lifecycle transitions to room participants.
type BotStatus struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// NewTranscript builds a transcript payload ready to marshal.
func NewTranscript(speaker Speaker, text, voiceID string, tsMs int64) Transcript {
	return Transcript{
		Type:      TypeTranscript,
		Speaker:   speaker,
		Text:      text,
		Timestamp: tsMs,
		VoiceID:   voiceID,
	}
}

// NewBotStatus builds a lifecycle payload ready to marshal.
func NewBotStatus(status, detail string) BotStatus {
	return BotStatus{Type: TypeBotStatus, Status: status, Detail: detail}
}
