package ports

import (
	"context"
	"errors"

	"medata/internal/domain"
)

// ErrEmptyCapture is returned by AudioSession.Stop when the finalized
// recording contains no audio.
var ErrEmptyCapture = errors.New("gravação vazia, nenhum áudio capturado")

// KeyValue is the persisted string key-value store backing session and
// draft state.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session writing to a local file.
type AudioSession interface {
	// Stop finalizes the capture and returns the path of the recorded file.
	Stop() (string, error)
	// Abort discards the capture and removes any partial file.
	Abort() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	// RequestPermission checks that the capture backend is usable. A denial
	// is reported as an error.
	RequestPermission(ctx context.Context) error
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcriber converts a recorded audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Locator reads the device's current coordinates.
type Locator interface {
	Current(ctx context.Context) (latitude, longitude float64, err error)
}

// Geocoder resolves coordinates to a human-readable address.
type Geocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// ShareTarget hands a file or raw text to the platform share mechanism.
type ShareTarget interface {
	ShareText(ctx context.Context, text string) error
	ShareFile(ctx context.Context, path string) error
}

// EventSink emits pipeline state and errors to the frontend.
type EventSink interface {
	PipelineStateChanged(state domain.PipelineState, reason domain.StateReason)
	PipelineError(code domain.ErrorCode, detail string)
	// ConfirmMicrophoneUse raises the one-time confirmation shown before the
	// first platform permission prompt. Returning false aborts the start.
	ConfirmMicrophoneUse(ctx context.Context) bool
	// ConfirmLocationCapture asks whether geolocation should be attached.
	ConfirmLocationCapture(ctx context.Context) bool
}
