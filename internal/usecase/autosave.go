package usecase

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"

	"medata/internal/domain"
	"medata/internal/ports"
)

// Autosaver persists the in-progress draft with a debounce so an app
// restart can recover an interrupted capture. Writes reflect the last
// state after a quiet period, not every intermediate edit.
type Autosaver struct {
	kv        ports.KeyValue
	key       string
	debounced func(func())

	mu         sync.Mutex
	pending    domain.DraftRecord
	hasPending bool
}

// NewAutosaver builds an autosaver flushing to key after interval of
// inactivity.
func NewAutosaver(kv ports.KeyValue, key string, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = time.Second
	}
	return &Autosaver{
		kv:        kv,
		key:       key,
		debounced: debounce.New(interval),
	}
}

// Save schedules a debounced write of draft.
func (a *Autosaver) Save(draft domain.DraftRecord) {
	a.mu.Lock()
	a.pending = draft
	a.hasPending = true
	a.mu.Unlock()
	a.debounced(a.flush)
}

// Flush writes any pending draft immediately.
func (a *Autosaver) Flush() {
	a.flush()
}

// Load reads the persisted draft, if any.
func (a *Autosaver) Load() (domain.DraftRecord, bool, error) {
	raw, ok, err := a.kv.Get(a.key)
	if err != nil || !ok {
		return domain.DraftRecord{}, false, err
	}
	var draft domain.DraftRecord
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return domain.DraftRecord{}, false, nil
	}
	return draft, true, nil
}

// Clear drops the persisted draft and any pending write. Called only
// after a confirmed successful submission.
func (a *Autosaver) Clear() error {
	a.mu.Lock()
	a.hasPending = false
	a.mu.Unlock()
	return a.kv.Delete(a.key)
}

func (a *Autosaver) flush() {
	a.mu.Lock()
	if !a.hasPending {
		a.mu.Unlock()
		return
	}
	draft := a.pending
	a.hasPending = false
	a.mu.Unlock()

	blob, err := json.Marshal(draft)
	if err != nil {
		log.Printf("[rascunho] falha ao serializar rascunho: %v", err)
		return
	}
	if err := a.kv.Set(a.key, string(blob)); err != nil {
		log.Printf("[rascunho] falha ao salvar rascunho: %v", err)
	}
}
