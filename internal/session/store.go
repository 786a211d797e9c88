package session

import (
	"log"
	"strconv"
	"sync"
	"time"

	"medata/internal/ports"
)

// TTL is the fixed session lifetime. It slides only on explicit sign-in.
const TTL = 10 * time.Minute

// Store owns the authenticated-doctor session: it persists and restores
// itself against the key-value store and auto-expires via an armed timer.
type Store struct {
	kv storageKeys

	mu        sync.Mutex
	doctorID  string
	expiresAt time.Time
	timer     stopper
	gen       uint64
	loading   bool

	onExpire func()

	// injectable for tests
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
}

type stopper interface{ Stop() bool }

type storageKeys struct {
	store    ports.KeyValue
	doctorID string
	expiry   string
	micAsked string
}

// NewStore builds a session store over kv using the given persisted keys.
func NewStore(kv ports.KeyValue, doctorIDKey, expiryKey, micAskedKey string) *Store {
	return &Store{
		kv:      storageKeys{store: kv, doctorID: doctorIDKey, expiry: expiryKey, micAsked: micAskedKey},
		loading: true,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// OnExpire registers a callback invoked after the expiry timer clears the
// session. Intended for frontend refresh only; may be nil.
func (s *Store) OnExpire(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// Restore reinstates a persisted session on process start. An expired or
// partial persisted session is purged. Storage faults never propagate;
// restore always completes and clears the loading flag.
func (s *Store) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.loading = false }()

	id, okID, err := s.kv.store.Get(s.kv.doctorID)
	if err != nil {
		log.Printf("[sessao] falha ao ler sessão persistida: %v", err)
		return
	}
	rawExpiry, okExpiry, err := s.kv.store.Get(s.kv.expiry)
	if err != nil {
		log.Printf("[sessao] falha ao ler expiração persistida: %v", err)
		return
	}
	if !okID || !okExpiry || id == "" {
		s.purgeSessionKeysLocked()
		return
	}

	expiryMs, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		s.purgeSessionKeysLocked()
		return
	}
	expiresAt := time.UnixMilli(expiryMs)
	now := s.now()
	if !now.Before(expiresAt) {
		s.purgeSessionKeysLocked()
		return
	}

	s.doctorID = id
	s.expiresAt = expiresAt
	s.armLocked(expiresAt.Sub(now))
}

// SignIn establishes a fresh session for doctorID with the full TTL.
func (s *Store) SignIn(doctorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.doctorID = doctorID
	s.expiresAt = now.Add(TTL)

	if err := s.kv.store.Set(s.kv.doctorID, doctorID); err != nil {
		return err
	}
	if err := s.kv.store.Set(s.kv.expiry, strconv.FormatInt(s.expiresAt.UnixMilli(), 10)); err != nil {
		return err
	}

	s.armLocked(TTL)
	return nil
}

// SignOut clears the session. Cleanup is best-effort: a failed purge is
// logged and swallowed so sign-out never fails back to the caller.
func (s *Store) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// DoctorID returns the active doctor identifier, or "" when signed out.
func (s *Store) DoctorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doctorID
}

// Valid reports whether a non-expired session is active.
func (s *Store) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doctorID != "" && s.now().Before(s.expiresAt)
}

// Loading reports whether Restore has not completed yet.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// MicAsked reports whether the one-time microphone confirmation was shown.
// The memo shares the session teardown path even though it is device-level
// state; see the design notes.
func (s *Store) MicAsked() bool {
	value, ok, err := s.kv.store.Get(s.kv.micAsked)
	if err != nil {
		return false
	}
	return ok && value == "1"
}

// SetMicAsked records that the microphone confirmation was shown.
func (s *Store) SetMicAsked() error {
	return s.kv.store.Set(s.kv.micAsked, "1")
}

func (s *Store) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.afterFunc(d, func() { s.expire(gen) })
}

// expire runs on timer fire. A stale timer (superseded by a newer sign-in)
// is a no-op; clearing an already-cleared session is also a no-op, so the
// race with explicit sign-out needs no extra coordination.
func (s *Store) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.doctorID == "" {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	fn := s.onExpire
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Store) clearLocked() {
	s.doctorID = ""
	s.expiresAt = time.Time{}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.purgeSessionKeysLocked()
	if err := s.kv.store.Delete(s.kv.micAsked); err != nil {
		log.Printf("[sessao] falha ao limpar memo do microfone: %v", err)
	}
}

func (s *Store) purgeSessionKeysLocked() {
	if err := s.kv.store.Delete(s.kv.doctorID); err != nil {
		log.Printf("[sessao] falha ao limpar identificador persistido: %v", err)
	}
	if err := s.kv.store.Delete(s.kv.expiry); err != nil {
		log.Printf("[sessao] falha ao limpar expiração persistida: %v", err)
	}
}
