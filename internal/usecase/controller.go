package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"medata/internal/domain"
	"medata/internal/ports"
)

var (
	ErrNoActiveRecording = errors.New("nenhuma gravação ativa")
	ErrValidation        = errors.New("dados do registro incompletos")
	ErrPermissionDenied  = errors.New("permissão do microfone negada")
)

// Validation messages surfaced before any I/O happens.
const (
	msgConsentRequired = "Você precisa declarar que revisou as informações antes de gravar."
	msgPatientRequired = "Informe o nome do paciente e um CPF com 11 dígitos."
)

// MicMemo remembers whether the one-time microphone confirmation was
// already shown. The session store implements it.
type MicMemo interface {
	MicAsked() bool
	SetMicAsked() error
}

// Config controls capture behavior.
type Config struct {
	Audio ports.AudioConfig
}

// Controller orchestrates the record-capture pipeline: permission check,
// audio capture, transcription, optional geolocation and draft autosave.
type Controller struct {
	audio       ports.AudioCapture
	transcriber ports.Transcriber
	locator     ports.Locator
	geocoder    ports.Geocoder
	events      ports.EventSink
	memo        MicMemo
	autosave    *Autosaver
	cfg         Config

	mu        sync.Mutex
	state     domain.PipelineState
	draft     domain.DraftRecord
	capture   ports.AudioSession
	lastError string
}

func NewController(
	audio ports.AudioCapture,
	transcriber ports.Transcriber,
	locator ports.Locator,
	geocoder ports.Geocoder,
	events ports.EventSink,
	memo MicMemo,
	autosave *Autosaver,
	cfg Config,
) *Controller {
	return &Controller{
		audio:       audio,
		transcriber: transcriber,
		locator:     locator,
		geocoder:    geocoder,
		events:      events,
		memo:        memo,
		autosave:    autosave,
		cfg:         cfg,
		state:       domain.StateIdle,
	}
}

// RestoreDraft loads a persisted draft from a previous run, if any.
func (c *Controller) RestoreDraft() bool {
	draft, ok, err := c.autosave.Load()
	if err != nil || !ok {
		return false
	}
	c.mu.Lock()
	c.draft = draft
	c.mu.Unlock()
	return true
}

// SetPatient updates the patient identification on the draft.
func (c *Controller) SetPatient(name, cpf string) {
	c.mu.Lock()
	c.draft.PatientName = name
	c.draft.PatientCPF = domain.FormatCPF(cpf)
	draft := c.draft
	c.mu.Unlock()
	c.autosave.Save(draft)
}

// SetConsent records the responsibility declaration.
func (c *Controller) SetConsent(accepted bool) {
	c.mu.Lock()
	c.draft.ConsentAccepted = accepted
	draft := c.draft
	c.mu.Unlock()
	c.autosave.Save(draft)
}

// Draft returns a copy of the working draft.
func (c *Controller) Draft() domain.DraftRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// ClearDraft resets the working draft and its persisted copy. Called
// after a confirmed successful submission.
func (c *Controller) ClearDraft() {
	c.mu.Lock()
	c.draft = domain.DraftRecord{}
	c.state = domain.StateIdle
	c.mu.Unlock()
	if err := c.autosave.Clear(); err != nil {
		log.Printf("[rascunho] falha ao limpar rascunho persistido: %v", err)
	}
}

// Start begins a capture. The draft gate (name, CPF, consent) is checked
// before any permission prompt or I/O.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	draft := c.draft
	recording := c.capture != nil
	c.mu.Unlock()

	// The capture handle is not touched until the gate passes: a refused
	// Start must leave a running recording reachable by Stop/Abort.
	if message, ok := validationMessage(draft); !ok {
		c.reportError(domain.ErrorCodeValidation, message)
		if !recording {
			c.setState(domain.StateIdle, domain.ReasonValidationFailed)
		}
		return ErrValidation
	}

	c.mu.Lock()
	previous := c.capture
	c.capture = nil
	c.mu.Unlock()

	// A new capture always tears down the previous handle first so two
	// recordings never overlap.
	if previous != nil {
		_ = previous.Abort()
	}

	c.setState(domain.StatePermissionCheck, domain.ReasonRecordingStarted)

	if !c.memo.MicAsked() {
		if !c.events.ConfirmMicrophoneUse(ctx) {
			c.setState(domain.StateIdle, domain.ReasonPermissionDenied)
			return ErrPermissionDenied
		}
		if err := c.memo.SetMicAsked(); err != nil {
			log.Printf("[gravacao] falha ao memorizar confirmação do microfone: %v", err)
		}
	}

	if err := c.audio.RequestPermission(ctx); err != nil {
		c.reportError(domain.ErrorCodePermission, err.Error())
		c.setState(domain.StateIdle, domain.ReasonPermissionDenied)
		return ErrPermissionDenied
	}

	capture, err := c.audio.Start(ctx, c.cfg.Audio)
	if err != nil {
		c.reportError(domain.ErrorCodeCapture, err.Error())
		c.setState(domain.StateIdle, domain.ReasonCaptureFailed)
		return err
	}

	c.mu.Lock()
	c.capture = capture
	c.mu.Unlock()
	c.setState(domain.StateRecording, domain.ReasonRecordingStarted)
	return nil
}

// Stop finalizes the capture and automatically submits it for
// transcription. The transcription failure path degrades to a usable
// draft instead of discarding the recording.
func (c *Controller) Stop(ctx context.Context) (domain.DraftRecord, error) {
	c.mu.Lock()
	capture := c.capture
	c.capture = nil
	c.mu.Unlock()

	if capture == nil {
		return domain.DraftRecord{}, ErrNoActiveRecording
	}

	audioPath, err := capture.Stop()
	if err != nil {
		c.reportError(domain.ErrorCodeCapture, err.Error())
		reason := domain.ReasonCaptureFailed
		if errors.Is(err, ports.ErrEmptyCapture) {
			reason = domain.ReasonCaptureEmpty
		}
		c.setState(domain.StateIdle, reason)
		return domain.DraftRecord{}, err
	}
	c.setState(domain.StateStopped, domain.ReasonRecordingStopped)

	c.mu.Lock()
	c.draft.AudioPath = audioPath
	c.mu.Unlock()

	c.setState(domain.StateTranscribing, domain.ReasonTranscribing)
	text, transcribeErr := c.transcriber.Transcribe(ctx, audioPath)
	if transcribeErr != nil {
		c.reportError(domain.ErrorCodeTranscription, transcribeErr.Error())
	}
	finalText, reason := finalizeTranscription(text, transcribeErr)

	c.mu.Lock()
	c.draft.TranscriptionText = finalText
	draft := c.draft
	c.mu.Unlock()
	c.autosave.Save(draft)

	c.setState(domain.StateReady, reason)
	return draft, nil
}

// Abort discards an in-progress capture without transcription.
func (c *Controller) Abort() error {
	c.mu.Lock()
	capture := c.capture
	c.capture = nil
	c.mu.Unlock()

	if capture == nil {
		return ErrNoActiveRecording
	}
	err := capture.Abort()
	c.setState(domain.StateIdle, domain.ReasonRecordingStopped)
	return err
}

// CaptureLocation optionally attaches the current position to the draft.
// It is independent of the transcription result: failures fall back to
// bare coordinates or, when no fix is possible, leave the draft as is.
func (c *Controller) CaptureLocation(ctx context.Context) bool {
	if !c.events.ConfirmLocationCapture(ctx) {
		return false
	}

	latitude, longitude, err := c.locator.Current(ctx)
	if err != nil {
		c.reportError(domain.ErrorCodeLocation, err.Error())
		return false
	}

	address, err := c.geocoder.Reverse(ctx, latitude, longitude)
	if err != nil {
		log.Printf("[localizacao] geocodificação falhou, mantendo coordenadas: %v", err)
		address = ""
	}

	c.mu.Lock()
	c.draft.Geolocation = &domain.Geolocation{Latitude: latitude, Longitude: longitude, Address: address}
	draft := c.draft
	c.mu.Unlock()
	c.autosave.Save(draft)
	return true
}

// Status returns the current pipeline status. Message carries the last
// reported error until the pipeline makes progress again.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:   c.state,
		Active:  c.state != domain.StateIdle && c.state != domain.StateReady,
		Message: c.lastError,
	}
}

func (c *Controller) reportError(code domain.ErrorCode, detail string) {
	c.mu.Lock()
	c.lastError = detail
	c.mu.Unlock()
	c.events.PipelineError(code, detail)
}

func (c *Controller) setState(state domain.PipelineState, reason domain.StateReason) {
	c.mu.Lock()
	c.state = state
	if state == domain.StateRecording || state == domain.StateReady {
		c.lastError = ""
	}
	c.mu.Unlock()
	c.events.PipelineStateChanged(state, reason)
}

func validationMessage(draft domain.DraftRecord) (string, bool) {
	if strings.TrimSpace(draft.PatientName) == "" || !domain.ValidCPF(draft.PatientCPF) {
		return msgPatientRequired, false
	}
	if !draft.ConsentAccepted {
		return msgConsentRequired, false
	}
	return "", true
}
