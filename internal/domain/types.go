package domain

import (
	"strings"
	"time"
)

// PipelineState models the record-capture lifecycle.
type PipelineState string

const (
	StateIdle            PipelineState = "idle"
	StatePermissionCheck PipelineState = "permission_check"
	StateRecording       PipelineState = "recording"
	StateStopped         PipelineState = "stopped"
	StateTranscribing    PipelineState = "transcribing"
	StateReady           PipelineState = "ready"
)

// StateReason provides a structured reason for pipeline transitions.
type StateReason string

const (
	ReasonRecordingStarted    StateReason = "recording_started"
	ReasonRecordingStopped    StateReason = "recording_stopped"
	ReasonTranscribing        StateReason = "transcribing"
	ReasonTranscriptReady     StateReason = "transcript_ready"
	ReasonTranscriptionFailed StateReason = "transcription_failed"
	ReasonNoSpeechDetected    StateReason = "no_speech_detected"
	ReasonValidationFailed    StateReason = "validation_failed"
	ReasonPermissionDenied    StateReason = "permission_denied"
	ReasonCaptureEmpty        StateReason = "capture_empty"
	ReasonCaptureFailed       StateReason = "capture_failed"
)

// ErrorCode identifies user-surfaced failure categories.
type ErrorCode string

const (
	ErrorCodeValidation    ErrorCode = "validation"
	ErrorCodePermission    ErrorCode = "permission_denied"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeLocation      ErrorCode = "location"
	ErrorCodeNetwork       ErrorCode = "network"
	ErrorCodeServer        ErrorCode = "server"
	ErrorCodeStorage       ErrorCode = "storage"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeShare         ErrorCode = "share"
)

// User-visible placeholder texts, kept verbatim from the product.
const (
	NoSpeechPlaceholder           = "Nenhum áudio detectado..."
	TranscriptionFailedText       = "A transcrição falhou, mas você ainda pode salvar o registro."
	AnonymousPatientName          = "Paciente Anônimo"
	UnknownPatientName            = "Paciente"
	CircularReferenceErrorMessage = "Erro interno: loop de referência nas entidades. Ajuste o backend para retornar DTO ou usar ReferenceHandler.IgnoreCycles."
)

// Geolocation is an optional capture attached to a draft.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// DraftRecord is the in-progress, locally persisted encounter capture.
type DraftRecord struct {
	PatientName       string       `json:"patientName"`
	PatientCPF        string       `json:"patientCpf"`
	AudioPath         string       `json:"audioPath,omitempty"`
	TranscriptionText string       `json:"transcriptionText"`
	Geolocation       *Geolocation `json:"geolocation,omitempty"`
	ConsentAccepted   bool         `json:"consentAccepted"`
}

// CanRecord reports whether the draft satisfies the recording gate.
func (d DraftRecord) CanRecord() bool {
	if strings.TrimSpace(d.PatientName) == "" {
		return false
	}
	if len(CPFDigits(d.PatientCPF)) != CPFLength {
		return false
	}
	return d.ConsentAccepted
}

// CanonicalRecord is the reconciled, uniformly-shaped server record.
type CanonicalRecord struct {
	ID            string   `json:"id"`
	PatientName   string   `json:"patientName"`
	PatientCPF    string   `json:"patientCpf,omitempty"`
	RecordedAt    string   `json:"recordedAt"`
	Transcription string   `json:"transcription"`
	AudioPath     string   `json:"audioPath,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Address       string   `json:"address,omitempty"`
}

// Session is the time-bounded authenticated-doctor context.
type Session struct {
	DoctorID  string
	ExpiresAt time.Time
}

// Valid reports whether the session is usable at the given instant.
func (s Session) Valid(now time.Time) bool {
	return s.DoctorID != "" && now.Before(s.ExpiresAt)
}

// Status summarizes the current pipeline status for the frontend.
type Status struct {
	State   PipelineState `json:"state"`
	Active  bool          `json:"active"`
	Message string        `json:"message,omitempty"`
}
