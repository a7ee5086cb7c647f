// internal/draft/store.go
package draft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Annany2002/nebula-cms/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Transport is the external request/response API backing a collection.
// The store never sends partial diffs: SaveAgentConfig receives the full map.
type Transport interface {
	FetchAgentConfig(ctx context.Context) (Collection, error)
	FetchAgent(ctx context.Context, key string) (Record, error)
	SaveAgentConfig(ctx context.Context, all Collection) error
}

// Observer is notified after each call that crosses the transport boundary.
type Observer interface {
	ObserveTransport(collection, op string, elapsed time.Duration, err error)
}

// State is the load state of a collection.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "empty"
	}
}

// Option configures a Store.
type Option func(*Store)

// WithName sets the collection name used in logs and metrics.
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// WithObserver registers an observer for transport calls.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Store keeps a working copy of a collection isolated from the committed
// snapshot. It is safe for concurrent use; transport calls run without
// holding the lock.
type Store struct {
	transport Transport
	name      string
	observer  Observer

	mu         sync.Mutex
	state      State
	loaded     bool // a FetchAll has succeeded at least once
	fetchToken string
	edits      uint64 // create/update/delete count, to spot edits during a fetch
	working    Collection
	committed  Collection
	dirty      bool
	saving     bool

	selectedKey   string
	selected      Record
	selectedToken string
}

// NewStore creates an empty store backed by transport.
func NewStore(transport Transport, opts ...Option) *Store {
	s := &Store{
		transport: transport,
		name:      "agents",
		working:   Collection{},
		committed: Collection{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll loads the whole collection into the committed snapshot and the
// working copy. Only the latest call applies its response; an earlier one
// that finishes late returns ErrStaleResponse. Edits made while the request
// was in flight are kept and leave the store dirty. On failure the data are
// kept and the state falls back to loaded or empty.
func (s *Store) FetchAll(ctx context.Context) error {
	token := uuid.New().String()
	s.mu.Lock()
	s.fetchToken = token
	s.state = StateLoading
	editsAtStart := s.edits
	s.mu.Unlock()

	start := time.Now()
	all, err := s.transport.FetchAgentConfig(ctx)
	s.observe("fetch_all", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchToken != token {
		customLog.Debugf("Draft: Dropping stale fetch of collection '%s'", s.name)
		return ErrStaleResponse
	}
	s.fetchToken = ""

	if err != nil {
		s.state = StateEmpty
		if s.loaded {
			s.state = StateLoaded
		}
		customLog.Warnf("Draft: Failed to fetch collection '%s': %v", s.name, err)
		return &TransportError{Op: "fetch " + s.name, Err: err}
	}

	s.committed = all.Clone()
	if s.edits == editsAtStart {
		s.working = all.Clone()
		s.dirty = false
	} else {
		s.dirty = !s.working.Equal(s.committed)
		customLog.Printf("Draft: Kept local edits made while fetching collection '%s'", s.name)
	}
	s.loaded = true
	s.state = StateLoaded
	customLog.Printf("Draft: Loaded %d record(s) into collection '%s'", len(all), s.name)
	return nil
}

// FetchOne loads a single record into the selected slot without touching
// the working copy or snapshot. A response that arrives after a newer
// FetchOne or a ClearSelection is dropped and ErrStaleResponse returned.
func (s *Store) FetchOne(ctx context.Context, key string) (Record, error) {
	token := uuid.New().String()
	s.mu.Lock()
	s.selectedToken = token
	s.mu.Unlock()

	start := time.Now()
	rec, err := s.transport.FetchAgent(ctx, key)
	s.observe("fetch_one", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedToken != token {
		customLog.Debugf("Draft: Dropping stale response for '%s' in '%s'", key, s.name)
		return nil, ErrStaleResponse
	}
	if err != nil {
		s.selectedKey, s.selected = "", nil
		return nil, &TransportError{Op: "fetch " + s.name + "/" + key, Err: err}
	}

	s.selectedKey = key
	s.selected = rec.Clone()
	return rec.Clone(), nil
}

// ClearSelection forgets the selected record and invalidates any pending
// FetchOne, e.g. when the user navigates away from a detail view.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedKey, s.selected, s.selectedToken = "", nil, ""
}

// Selected returns the currently selected record, if any.
func (s *Store) Selected() (string, Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return "", nil, false
	}
	return s.selectedKey, s.selected.Clone(), true
}

// Create inserts a new record into the working copy. Existing keys are
// rejected with ErrRecordExists and left untouched.
func (s *Store) Create(key string, body Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.working[key]; exists {
		return ErrRecordExists
	}
	s.working[key] = body.Clone()
	s.dirty = true
	s.edits++
	return nil
}

// Update replaces an existing record. It never creates one.
func (s *Store) Update(key string, body Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.working[key]; !exists {
		return ErrRecordNotFound
	}
	s.working[key] = body.Clone()
	s.dirty = true
	s.edits++
	return nil
}

// Delete removes a record from the working copy; absent keys are a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.working, key)
	s.dirty = true
	s.edits++
}

// SaveChanges persists the full working copy. Only one save runs at a time;
// a concurrent call gets ErrSaveInProgress. On failure the working copy is
// untouched and the store stays dirty so the caller can retry.
func (s *Store) SaveChanges(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.saving = true
	payload := s.working.Clone()
	s.mu.Unlock()

	start := time.Now()
	err := s.transport.SaveAgentConfig(ctx, payload)
	s.observe("save", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		customLog.Warnf("Draft: Failed to save collection '%s': %v", s.name, err)
		return &TransportError{Op: "save " + s.name, Err: err}
	}

	s.committed = payload.Clone()
	// edits made while the request was in flight keep the store dirty
	s.dirty = !s.working.Equal(s.committed)
	customLog.Printf("Draft: Saved %d record(s) in collection '%s'", len(payload), s.name)
	return nil
}

// DiscardChanges restores the working copy from the committed snapshot.
func (s *Store) DiscardChanges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = s.committed.Clone()
	s.dirty = false
}

// IsDirty reports whether the working copy was edited since the last
// fetch, save or discard.
func (s *Store) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Differs compares the working copy and snapshot structurally.
func (s *Store) Differs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.working.Equal(s.committed)
}

// State returns the load state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Saving reports whether a save is in flight.
func (s *Store) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Has reports whether key exists in the working copy.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.working[key]
	return ok
}

// Get returns a copy of a working record.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.working[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Working returns a deep copy of the working collection.
func (s *Store) Working() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

// Committed returns a deep copy of the committed snapshot.
func (s *Store) Committed() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.Clone()
}

// Name returns the collection name.
func (s *Store) Name() string {
	return s.name
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveTransport(s.name, op, time.Since(start), err)
	}
}
