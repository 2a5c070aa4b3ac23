package catalog

import "strings"

// voiceByLanguage maps BCP-47 tags to a preferred default voice when the
// caller did not pick one. Tags outside this map fall back to Puck.
var voiceByLanguage = map[string]string{
	"en-US": "Puck",
	"en-GB": "Charon",
	"nl-NL": "Aoede",
	"es-ES": "Fenrir",
	"fr-FR": "Kore",
	"de-DE": "Orus",
	"it-IT": "Puck",
	"pt-BR": "Puck",
}

// VoiceForLanguage derives a language-appropriate default voice, constrained
// to the given model's voice set.
func VoiceForLanguage(modelID, language string) string {
	if v, ok := voiceByLanguage[language]; ok && IsVoiceSupported(modelID, v) {
		return v
	}
	return DefaultVoice(modelID)
}

// SystemInstruction builds the localized system prompt for a session. The
// native-audio tier gets the expanded wording about emotional range.
func SystemInstruction(language, voiceID string, modelType ModelType) string {
	switch language {
	case "nl-NL":
		return "Je bent een behulpzame Nederlandse AI-assistent. " +
			"Spreek natuurlijk Nederlands en houd je antwoorden beknopt en vriendelijk. " +
			"Je helpt gebruikers met hun vragen en taken."
	case "de-DE":
		return "Du bist ein hilfreicher deutscher KI-Assistent. " +
			"Sprich natürliches Deutsch und halte deine Antworten prägnant und freundlich."
	case "fr-FR":
		return "Tu es un assistant IA français serviable. " +
			"Parle un français naturel et garde tes réponses concises et amicales."
	}

	var b strings.Builder
	b.WriteString("You are a helpful voice assistant using the ")
	b.WriteString(voiceID)
	b.WriteString(" voice")
	if modelType == TypeNativeAudio {
		b.WriteString(" with native audio capabilities. You can express emotions naturally " +
			"and provide high-quality conversational responses.")
	} else {
		b.WriteString(".")
	}
	b.WriteString(" Keep responses concise and natural.")
	return b.String()
}
