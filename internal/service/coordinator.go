package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"

	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrEmptyPatientID = errors.New("patient id is empty")
	// ErrConnectivity matches every *ConnectivityError via errors.Is.
	ErrConnectivity = errors.New("record store unreachable")
)

// ConnectivityError reports a transport failure talking to the record store.
// It is never used for a document that simply does not exist.
type ConnectivityError struct {
	Op  string // "get", "put" or "subscribe"
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("record store %s failed: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// snapshot is an immutable view of the whole collection. It is replaced, never mutated.
type snapshot struct {
	records    map[string]*domain.PatientData
	receivedAt time.Time
	live       bool // false when seeded from the offline cache
}

// SyncStatus describes the background mirror.
type SyncStatus struct {
	Ready          bool      `json:"ready"`
	Records        int       `json:"records"`
	LastSnapshotAt time.Time `json:"lastSnapshotAt,omitempty"`
	FromCache      bool      `json:"fromCache"`
	LastError      string    `json:"lastError,omitempty"`
}

// Coordinator answers "what is the prescription for patient X" from a
// background-synced mirror first and the record store second.
//
// The mirror has exactly one writer, the subscription callback, which swaps in a
// whole new snapshot. Readers load the pointer and never see a partial update.
type Coordinator struct {
	store repository.PatientRepository
	cache repository.SnapshotCache // optional
	log   *zap.Logger
	now   func() time.Time

	current   atomic.Pointer[snapshot]
	ready     atomic.Bool
	lastError atomic.Pointer[string]

	startMu sync.Mutex
	sub     *Subscription

	// persisted snapshots are written newest-wins
	snapSeq      atomic.Uint64
	persistMu    sync.Mutex
	persistedSeq uint64
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSnapshotCache enables cold-start seeding and write-back of live snapshots.
func WithSnapshotCache(cache repository.SnapshotCache) CoordinatorOption {
	return func(c *Coordinator) { c.cache = cache }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator over an explicitly owned store client.
func NewCoordinator(store repository.PatientRepository, log *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store: store,
		log:   log.Named("coordinator"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&snapshot{records: map[string]*domain.PatientData{}})
	return c
}

// Subscription is the handle of the background sync.
type Subscription struct {
	coord   *Coordinator
	cancel  func()
	stopped atomic.Bool
	// mu serialises snapshot application with Stop so nothing lands after Stop returns.
	mu       sync.Mutex
	stopOnce sync.Once
	persists sync.WaitGroup // snapshot write-backs still running
}

// Stop detaches the subscription and waits for pending snapshot write-backs.
// No mapping updates happen after it returns. Calling it more than once is safe.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped.Store(true)
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
		s.persists.Wait()
		s.coord.log.Info("Background sync stopped")
	})
}

// Stopped reports whether Stop has been called.
func (s *Subscription) Stopped() bool { return s.stopped.Load() }

// StartBackgroundSync subscribes to the entire collection. It runs once per
// Coordinator; later calls return the same handle.
func (c *Coordinator) StartBackgroundSync(ctx context.Context) (*Subscription, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.sub != nil {
		return c.sub, nil
	}

	c.seedFromCache(ctx)

	sub := &Subscription{coord: c}
	cancel, err := c.store.Subscribe(ctx,
		func(records []domain.PatientData) { c.applySnapshot(sub, records) },
		func(err error) { c.recordSyncError(sub, err) },
	)
	if err != nil {
		c.recordSyncError(sub, err)
		return nil, &ConnectivityError{Op: "subscribe", Err: err}
	}
	sub.cancel = cancel
	c.sub = sub
	c.log.Info("Background sync started")
	return sub, nil
}

// seedFromCache loads the persisted snapshot, if any. It never flips Ready.
func (c *Coordinator) seedFromCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	records, err := c.cache.Load(ctx)
	if err != nil {
		c.log.Info("No persisted snapshot used", zap.Error(err))
		return
	}
	snap := buildSnapshot(records, c.now())
	snap.live = false
	c.current.Store(snap)
	c.log.Info("Seeded mirror from persisted snapshot", zap.Int("records", len(snap.records)))
}

func (c *Coordinator) applySnapshot(sub *Subscription, records []domain.PatientData) {
	sub.mu.Lock()
	if sub.stopped.Load() {
		sub.mu.Unlock()
		return
	}
	snap := buildSnapshot(records, c.now())
	c.current.Store(snap)
	c.lastError.Store(nil)
	if c.ready.CompareAndSwap(false, true) {
		c.log.Info("Background sync ready", zap.Int("records", len(snap.records)))
	}
	if c.cache != nil {
		seq := c.snapSeq.Add(1)
		sub.persists.Add(1)
		go func() {
			defer sub.persists.Done()
			c.persist(seq, records)
		}()
	}
	sub.mu.Unlock()
}

func (c *Coordinator) persist(seq uint64, records []domain.PatientData) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if seq <= c.persistedSeq {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.cache.Store(ctx, records); err != nil {
		c.log.Warn("Failed to persist snapshot", zap.Error(err))
		return
	}
	c.persistedSeq = seq
}

func (c *Coordinator) recordSyncError(sub *Subscription, err error) {
	if sub.Stopped() {
		return
	}
	msg := err.Error()
	c.lastError.Store(&msg)
	c.log.Warn("Background sync error", zap.Error(err))
}

func buildSnapshot(records []domain.PatientData, at time.Time) *snapshot {
	m := make(map[string]*domain.PatientData, len(records))
	for i := range records {
		rec := records[i].Clone()
		m[rec.ID] = rec
	}
	return &snapshot{records: m, receivedAt: at, live: true}
}

// Ready reports whether a live snapshot has arrived.
func (c *Coordinator) Ready() bool { return c.ready.Load() }

// Status reports the state of the background mirror.
func (c *Coordinator) Status() SyncStatus {
	snap := c.current.Load()
	st := SyncStatus{
		Ready:          c.ready.Load(),
		Records:        len(snap.records),
		LastSnapshotAt: snap.receivedAt,
		FromCache:      !snap.live && len(snap.records) > 0,
	}
	if msg := c.lastError.Load(); msg != nil {
		st.LastError = *msg
	}
	return st
}

// Cached returns the mirrored record without touching the store.
func (c *Coordinator) Cached(id string) (*domain.PatientData, bool) {
	rec, ok := c.current.Load().records[domain.NormalizePatientID(id)]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Resolve returns the patient's record: from the mirror when present, else by a
// point read. The point-read result is not written into the mirror.
//
// A missing document yields repository.ErrNotFound; a transport failure yields a
// *ConnectivityError. A cancelled ctx returns the context error.
func (c *Coordinator) Resolve(ctx context.Context, rawID string) (*domain.PatientData, error) {
	id := domain.NormalizePatientID(rawID)
	if id == "" {
		return nil, ErrEmptyPatientID
	}

	if rec, ok := c.Cached(id); ok {
		return rec, nil
	}

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Warn("Point read failed", zap.String("patientId", id), zap.Error(err))
		return nil, &ConnectivityError{Op: "get", Err: err}
	}
	return rec, nil
}

// Save stamps lastUpdated and overwrites the whole document. The mirror is left
// alone; the returned copy is what a caller should show until the next snapshot.
func (c *Coordinator) Save(ctx context.Context, record *domain.PatientData) (*domain.PatientData, error) {
	if record == nil {
		return nil, repository.ErrInvalidRecord
	}
	out := record.Clone()
	out.ID = domain.NormalizePatientID(out.ID)
	if out.ID == "" {
		return nil, ErrEmptyPatientID
	}
	if out.Exercises == nil {
		out.Exercises = []domain.PrescribedExercise{}
	}
	out.LastUpdated = domain.NowMillis(c.now())

	if err := c.store.Put(ctx, out); err != nil {
		if errors.Is(err, repository.ErrInvalidRecord) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Error("Save failed", zap.String("patientId", out.ID), zap.Error(err))
		return nil, &ConnectivityError{Op: "put", Err: err}
	}

	c.log.Info("Saved prescription", zap.String("patientId", out.ID), zap.Int("exercises", len(out.Exercises)))
	return out, nil
}
