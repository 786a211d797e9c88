package usecase

import (
	"strings"

	"medata/internal/domain"
)

// finalizeTranscription maps the transcription outcome onto the text the
// draft keeps and the reason reported to the frontend. Failure degrades
// to an explicit notice instead of losing the draft; empty text becomes
// the no-speech placeholder rather than a blank field.
func finalizeTranscription(text string, err error) (string, domain.StateReason) {
	if err != nil {
		return domain.TranscriptionFailedText, domain.ReasonTranscriptionFailed
	}
	if strings.TrimSpace(text) == "" {
		return domain.NoSpeechPlaceholder, domain.ReasonNoSpeechDetected
	}
	return text, domain.ReasonTranscriptReady
}
