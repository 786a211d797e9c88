package bootstrap

import (
	"path/filepath"

	"medata/internal/api"
	"medata/internal/audio"
	"medata/internal/config"
	"medata/internal/export"
	"medata/internal/location"
	"medata/internal/ports"
	"medata/internal/session"
	"medata/internal/storage"
	"medata/internal/transcribe"
	"medata/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Store      *storage.FileStore
	Session    *session.Store
	API        *api.Client
	Controller *usecase.Controller
	Clipboard  ports.Clipboard
	Share      ports.ShareTarget
}

// Build wires all backend dependencies for the current runtime. The
// session is restored (and an expiry timer armed) before it is returned.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return Services{}, err
	}

	sess := session.NewStore(store, storage.KeyDoctorID, storage.KeyExpiry, storage.KeyMicAsked)
	sess.Restore()

	autosave := usecase.NewAutosaver(store, storage.KeyDraft, cfg.Autosave.Debounce)

	controller := usecase.NewController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, filepath.Join(cfg.Storage.DataDir, "audio")),
		transcribe.New(cfg.Transcribe.URL, cfg.Transcribe.Timeout),
		location.NewLocator(cfg.Location.GeolocateURL, cfg.API.Timeout),
		location.NewGeocoder(cfg.Location.GeocodeURL, cfg.API.Timeout),
		events,
		sess,
		autosave,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
		},
	)
	controller.RestoreDraft()

	return Services{
		Config:     cfg,
		Store:      store,
		Session:    sess,
		API:        api.NewClient(cfg.API.BaseURL, cfg.API.Timeout),
		Controller: controller,
		Clipboard:  export.CommandClipboard{},
		Share:      export.SystemShare{Dir: cfg.Storage.DataDir},
	}, nil
}
