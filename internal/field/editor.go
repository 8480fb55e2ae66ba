// Package field implements the track field editor: it holds the reference an
// editor typed, resolves it on request and applies the result to the field
// slot so that only the most recent request ever lands.
package field

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trackmeta/internal/metadata"
	"trackmeta/internal/store"
	"trackmeta/pkg/soundcloud"
)

const (
	// editorIdleTimeout is how long an editor with nothing in flight is kept
	// after its last use. Its typed reference is forgotten with it.
	editorIdleTimeout = 30 * time.Minute
	// editorCleanupInterval is the minimum time between idle sweeps
	editorCleanupInterval = 5 * time.Minute
)

var (
	// ErrStale is returned when a newer request superseded this one.
	ErrStale = errors.New("resolution superseded by a newer request")
	// ErrEmpty is returned when the field holds no metadata.
	ErrEmpty = errors.New("field has no metadata")
)

// Resolver produces metadata for a reference.
type Resolver interface {
	Resolve(ctx context.Context, ref soundcloud.TrackReference, credential string) (*metadata.TrackMetadata, error)
}

// Editor owns one field slot.
type Editor struct {
	key      Key
	store    store.Store
	resolver Resolver
	config   InstallationConfig
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mutex      sync.Mutex
	reference  string
	generation uint64
	cancel     context.CancelFunc
	inflight   int
	lastUsed   time.Time
}

// State is what the editor shows: the typed reference and the stored value.
type State struct {
	Reference string                  `json:"reference"`
	Metadata  *metadata.TrackMetadata `json:"metadata,omitempty"`
}

// Load reads the current value of the slot. An empty slot returns ErrEmpty.
func (e *Editor) Load(ctx context.Context) (*metadata.TrackMetadata, error) {
	data, err := e.store.Get(ctx, e.key.String())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", e.key, err)
	}
	md, err := metadata.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", e.key, err)
	}
	return md, nil
}

// State returns the reference and the stored value. An empty slot is not an
// error here.
func (e *Editor) State(ctx context.Context) (State, error) {
	e.mutex.Lock()
	reference := e.reference
	e.mutex.Unlock()

	md, err := e.Load(ctx)
	if err != nil && !errors.Is(err, ErrEmpty) {
		return State{}, err
	}
	return State{Reference: reference, Metadata: md}, nil
}

// Reference returns the reference currently typed into the field.
func (e *Editor) Reference() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.reference
}

// SetReference replaces the typed reference. The stored value no longer
// matches it, so the slot is cleared and any in-flight resolution is
// abandoned.
func (e *Editor) SetReference(ctx context.Context, raw string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.setReferenceLocked(ctx, raw)
}

func (e *Editor) setReferenceLocked(ctx context.Context, raw string) error {
	e.reference = raw
	e.lastUsed = e.now()
	e.supersedeLocked()

	if err := e.store.Clear(ctx, e.key.String()); err != nil {
		return fmt.Errorf("failed to clear %s: %w", e.key, err)
	}
	e.logger.Debug("Reference changed, field cleared", zap.String("field", e.key.String()))
	return nil
}

// supersedeLocked invalidates whatever resolution is in flight.
func (e *Editor) supersedeLocked() uint64 {
	e.generation++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return e.generation
}

// Generate resolves the reference and stores the result. A non-empty raw
// reference that differs from the current one replaces it first.
//
// Only the latest call may write: an earlier call still in flight is
// cancelled and returns ErrStale. A failed resolution leaves the stored
// value as it was.
func (e *Editor) Generate(ctx context.Context, raw string) (*metadata.TrackMetadata, error) {
	e.mutex.Lock()
	if raw != "" && raw != e.reference {
		if err := e.setReferenceLocked(ctx, raw); err != nil {
			e.mutex.Unlock()
			return nil, err
		}
	}
	reference := e.reference

	ref, err := soundcloud.ParseReference(reference)
	if err != nil {
		e.mutex.Unlock()
		return nil, err
	}

	generation := e.supersedeLocked()
	var (
		resolveCtx context.Context
		cancel     context.CancelFunc
	)
	if e.timeout > 0 {
		resolveCtx, cancel = context.WithTimeout(ctx, e.timeout)
	} else {
		resolveCtx, cancel = context.WithCancel(ctx)
	}
	e.cancel = cancel
	e.inflight++
	e.mutex.Unlock()

	defer e.finish()
	defer cancel()

	params, err := e.config.Get(resolveCtx)
	if err != nil {
		return nil, err
	}

	md, resolveErr := e.resolver.Resolve(resolveCtx, ref, params.ClientID)

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if generation != e.generation {
		e.logger.Debug("Discarding superseded resolution",
			zap.String("field", e.key.String()),
			zap.Uint64("generation", generation))
		return nil, ErrStale
	}
	e.cancel = nil

	if resolveErr != nil {
		return nil, resolveErr
	}

	data, err := metadata.Encode(md)
	if err != nil {
		return nil, err
	}
	if err := e.store.Set(ctx, e.key.String(), data); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", e.key, err)
	}

	e.logger.Info("Track metadata stored",
		zap.String("field", e.key.String()),
		zap.String("reference", ref.String()),
		zap.Int("samples", len(md.Samples)))
	return md, nil
}

// finish marks one Generate call as done.
func (e *Editor) finish() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.inflight--
	e.lastUsed = e.now()
}

// touch records a use of the editor.
func (e *Editor) touch(now time.Time) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.lastUsed = now
}

// idleSince reports whether nothing is in flight and the editor has been
// unused since cutoff.
func (e *Editor) idleSince(cutoff time.Time) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.inflight == 0 && e.lastUsed.Before(cutoff)
}

// Manager hands out one Editor per field slot. Editors left idle are dropped.
type Manager struct {
	store    store.Store
	resolver Resolver
	config   InstallationConfig
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mutex       sync.Mutex
	editors     map[Key]*Editor
	lastCleanup time.Time
}

// NewManager creates a Manager. timeout bounds each resolution; zero means
// only the caller's context applies.
func NewManager(s store.Store, resolver Resolver, config InstallationConfig,
	timeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    s,
		resolver: resolver,
		config:   config,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		editors:  make(map[Key]*Editor),
	}
}

// Editor returns the editor for key, creating it on first use.
func (m *Manager) Editor(key Key) *Editor {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	if now.Sub(m.lastCleanup) >= editorCleanupInterval {
		m.performCleanupLocked(now)
	}

	if editor, ok := m.editors[key]; ok {
		editor.touch(now)
		return editor
	}
	editor := &Editor{
		key:      key,
		store:    m.store,
		resolver: m.resolver,
		config:   m.config,
		timeout:  m.timeout,
		logger:   m.logger,
		now:      m.now,
		lastUsed: now,
	}
	m.editors[key] = editor
	return editor
}

// performCleanupLocked drops editors idle for longer than editorIdleTimeout.
// An editor with a Generate in flight is always kept.
func (m *Manager) performCleanupLocked(now time.Time) {
	m.lastCleanup = now
	cutoff := now.Add(-editorIdleTimeout)
	removed := 0
	for key, editor := range m.editors {
		if editor.idleSince(cutoff) {
			delete(m.editors, key)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Dropped idle field editors",
			zap.Int("removed", removed),
			zap.Int("remaining", len(m.editors)))
	}
}

// Size returns the number of live editors.
func (m *Manager) Size() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.editors)
}
