package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"
	"alcyxob/physiotrack/internal/repository/memory"

	"go.uber.org/zap"
)

// stubStore lets a test drive snapshots by hand and counts store access.
type stubStore struct {
	mu         sync.Mutex
	getErr     error
	putErr     error
	getCalls   atomic.Int32
	putCalls   atomic.Int32
	docs       map[string]*domain.PatientData
	onSnapshot repository.SnapshotFunc
	onError    repository.ErrorFunc
	subErr     error
	cancels    atomic.Int32
}

func newStubStore() *stubStore {
	return &stubStore{docs: map[string]*domain.PatientData{}}
}

func (s *stubStore) Get(_ context.Context, id string) (*domain.PatientData, error) {
	s.getCalls.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *stubStore) Put(_ context.Context, p *domain.PatientData) error {
	s.putCalls.Add(1)
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[p.ID] = p.Clone()
	return nil
}

func (s *stubStore) Subscribe(_ context.Context, onSnapshot repository.SnapshotFunc, onError repository.ErrorFunc) (func(), error) {
	if s.subErr != nil {
		return nil, s.subErr
	}
	s.onSnapshot = onSnapshot
	s.onError = onError
	return func() { s.cancels.Add(1) }, nil
}

func (s *stubStore) push(records ...domain.PatientData) {
	s.onSnapshot(records)
}

type stubCache struct {
	mu      sync.Mutex
	records []domain.PatientData
	loadErr error
	stored  chan []domain.PatientData
}

func (c *stubCache) Load(context.Context) ([]domain.PatientData, error) {
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records, nil
}

func (c *stubCache) Store(_ context.Context, records []domain.PatientData) error {
	if c.stored != nil {
		c.stored <- records
	}
	return nil
}

func patient(id, name string) domain.PatientData {
	return domain.PatientData{ID: id, Name: name, TherapistName: "Dr. Lee", Exercises: []domain.PrescribedExercise{}}
}

func TestResolve_CacheHitSkipsStore(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("dial tcp: connection refused")
	coord := NewCoordinator(store, zap.NewNop())

	if _, err := coord.StartBackgroundSync(context.Background()); err != nil {
		t.Fatalf("StartBackgroundSync() error = %v", err)
	}
	store.push(patient("PHYA1", "Chan Tai Man"))

	got, err := coord.Resolve(context.Background(), "  PHYA1\n")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Name != "Chan Tai Man" {
		t.Errorf("Resolve() name = %q, want %q", got.Name, "Chan Tai Man")
	}
	if n := store.getCalls.Load(); n != 0 {
		t.Errorf("store.Get called %d times on cache hit, want 0", n)
	}
}

func TestResolve_NotFoundAndConnectivityAreDistinct(t *testing.T) {
	tests := []struct {
		name       string
		getErr     error
		wantNotFnd bool
		wantConn   bool
	}{
		{name: "missing document", getErr: nil, wantNotFnd: true},
		{name: "transport failure", getErr: errors.New("server selection timeout"), wantConn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			store.getErr = tt.getErr
			coord := NewCoordinator(store, zap.NewNop())

			_, err := coord.Resolve(context.Background(), "PHYA404")
			if err == nil {
				t.Fatal("Resolve() error = nil, want error")
			}
			if got := errors.Is(err, repository.ErrNotFound); got != tt.wantNotFnd {
				t.Errorf("errors.Is(err, ErrNotFound) = %v, want %v (err=%v)", got, tt.wantNotFnd, err)
			}
			var connErr *ConnectivityError
			if got := errors.As(err, &connErr); got != tt.wantConn {
				t.Errorf("errors.As(err, *ConnectivityError) = %v, want %v", got, tt.wantConn)
			}
			if got := errors.Is(err, ErrConnectivity); got != tt.wantConn {
				t.Errorf("errors.Is(err, ErrConnectivity) = %v, want %v", got, tt.wantConn)
			}
		})
	}
}

func TestResolve_PointReadIsNotCached(t *testing.T) {
	store := newStubStore()
	store.docs["PHYA2"] = &domain.PatientData{ID: "PHYA2", Name: "Wong"}
	coord := NewCoordinator(store, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := coord.Resolve(context.Background(), "PHYA2"); err != nil {
			t.Fatalf("Resolve() #%d error = %v", i, err)
		}
	}
	if n := store.getCalls.Load(); n != 2 {
		t.Errorf("store.Get calls = %d, want 2", n)
	}
	if _, ok := coord.Cached("PHYA2"); ok {
		t.Error("point read result was written into the mirror")
	}
}

func TestResolve_EmptyID(t *testing.T) {
	coord := NewCoordinator(newStubStore(), zap.NewNop())
	if _, err := coord.Resolve(context.Background(), " \t\n"); !errors.Is(err, ErrEmptyPatientID) {
		t.Errorf("Resolve(blank) error = %v, want ErrEmptyPatientID", err)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	store := newStubStore()
	store.getErr = context.Canceled
	coord := NewCoordinator(store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := coord.Resolve(ctx, "PHYA3")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrConnectivity) {
		t.Error("cancellation reported as connectivity failure")
	}
}

func TestSave_StampsAndTrims(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_123)
	store := newStubStore()
	coord := NewCoordinator(store, zap.NewNop(), WithClock(func() time.Time { return fixed }))

	in := &domain.PatientData{ID: " PHYA5 ", Name: "Lam", TherapistName: "Dr. Ho", LastUpdated: 1}
	out, err := coord.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if out.ID != "PHYA5" {
		t.Errorf("Save() id = %q, want %q", out.ID, "PHYA5")
	}
	if out.LastUpdated != fixed.UnixMilli() {
		t.Errorf("Save() lastUpdated = %d, want %d", out.LastUpdated, fixed.UnixMilli())
	}
	if in.LastUpdated != 1 {
		t.Error("Save() mutated its input")
	}
	if out.Exercises == nil {
		t.Error("Save() left exercises nil")
	}
	if _, ok := coord.Cached("PHYA5"); ok {
		t.Error("Save() wrote into the mirror")
	}
	if _, ok := store.docs["PHYA5"]; !ok {
		t.Error("store has no document under the trimmed id")
	}
}

func TestSave_TransportFailure(t *testing.T) {
	store := newStubStore()
	store.putErr = errors.New("connection reset by peer")
	coord := NewCoordinator(store, zap.NewNop())

	_, err := coord.Save(context.Background(), &domain.PatientData{ID: "PHYA6", Name: "a", TherapistName: "b"})
	var connErr *ConnectivityError
	if !errors.As(err, &connErr) || connErr.Op != "put" {
		t.Fatalf("Save() error = %v, want *ConnectivityError{Op: put}", err)
	}
}

func TestSave_NonFiniteNumberIsInvalidNotConnectivity(t *testing.T) {
	store := memory.NewPatientRepository()
	coord := NewCoordinator(store, zap.NewNop())

	_, err := coord.Save(context.Background(), &domain.PatientData{
		ID: "PHYA9", Name: "a", TherapistName: "b",
		Exercises: []domain.PrescribedExercise{
			{ExerciseID: "treadmill", Data: domain.FieldValues{"mins": domain.NumberValue(math.Inf(1))}},
		},
	})
	if !errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("Save() error = %v, want ErrInvalidRecord", err)
	}
	if errors.Is(err, ErrConnectivity) {
		t.Error("invalid record reported as a connectivity failure")
	}
	if store.Len() != 0 {
		t.Error("invalid record was written")
	}
}

func TestSave_EmptyID(t *testing.T) {
	store := newStubStore()
	coord := NewCoordinator(store, zap.NewNop())
	if _, err := coord.Save(context.Background(), &domain.PatientData{ID: "  "}); !errors.Is(err, ErrEmptyPatientID) {
		t.Errorf("Save(blank id) error = %v, want ErrEmptyPatientID", err)
	}
	if n := store.putCalls.Load(); n != 0 {
		t.Errorf("store.Put calls = %d, want 0", n)
	}
}

func TestStartBackgroundSync_Idempotent(t *testing.T) {
	store := newStubStore()
	coord := NewCoordinator(store, zap.NewNop())

	first, err := coord.StartBackgroundSync(context.Background())
	if err != nil {
		t.Fatalf("first StartBackgroundSync() error = %v", err)
	}
	second, err := coord.StartBackgroundSync(context.Background())
	if err != nil {
		t.Fatalf("second StartBackgroundSync() error = %v", err)
	}
	if first != second {
		t.Error("StartBackgroundSync() returned a different handle on the second call")
	}
}

func TestStartBackgroundSync_SubscribeFailure(t *testing.T) {
	store := newStubStore()
	store.subErr = errors.New("no reachable servers")
	coord := NewCoordinator(store, zap.NewNop())

	_, err := coord.StartBackgroundSync(context.Background())
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("StartBackgroundSync() error = %v, want connectivity error", err)
	}
	if coord.Status().LastError == "" {
		t.Error("Status().LastError is empty after subscribe failure")
	}
}

func TestSubscription_StopIsIdempotentAndFinal(t *testing.T) {
	store := newStubStore()
	coord := NewCoordinator(store, zap.NewNop())

	sub, err := coord.StartBackgroundSync(context.Background())
	if err != nil {
		t.Fatalf("StartBackgroundSync() error = %v", err)
	}
	store.push(patient("PHYA1", "Before"))

	sub.Stop()
	sub.Stop()
	if n := store.cancels.Load(); n != 1 {
		t.Errorf("store cancel called %d times, want 1", n)
	}

	store.push(patient("PHYA1", "After"))
	got, _ := coord.Cached("PHYA1")
	if got == nil || got.Name != "Before" {
		t.Errorf("mirror changed after Stop: %+v", got)
	}
}

func TestSnapshotReplacesMapping(t *testing.T) {
	store := newStubStore()
	coord := NewCoordinator(store, zap.NewNop())
	if _, err := coord.StartBackgroundSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if coord.Ready() {
		t.Error("Ready() = true before any snapshot")
	}
	store.push(patient("PHYA1", "One"), patient("PHYA2", "Two"))
	if !coord.Ready() {
		t.Error("Ready() = false after first snapshot")
	}
	store.push(patient("PHYA2", "Two v2"))

	if _, ok := coord.Cached("PHYA1"); ok {
		t.Error("record absent from the latest snapshot is still mirrored")
	}
	got, ok := coord.Cached("PHYA2")
	if !ok || got.Name != "Two v2" {
		t.Errorf("Cached(PHYA2) = %+v, %v; want latest snapshot value", got, ok)
	}
	if st := coord.Status(); st.Records != 1 || !st.Ready {
		t.Errorf("Status() = %+v, want 1 ready record", st)
	}
}

func TestSeedFromCache_DoesNotFlipReady(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("offline")
	cache := &stubCache{records: []domain.PatientData{patient("PHYA9", "Seeded")}}
	coord := NewCoordinator(store, zap.NewNop(), WithSnapshotCache(cache))

	if _, err := coord.StartBackgroundSync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if coord.Ready() {
		t.Error("Ready() = true after seeding from cache")
	}
	got, err := coord.Resolve(context.Background(), "PHYA9")
	if err != nil {
		t.Fatalf("Resolve() seeded record error = %v", err)
	}
	if got.Name != "Seeded" {
		t.Errorf("Resolve() name = %q, want Seeded", got.Name)
	}
	if st := coord.Status(); !st.FromCache {
		t.Errorf("Status().FromCache = false, want true")
	}
}

func TestLiveSnapshotIsPersisted(t *testing.T) {
	store := newStubStore()
	cache := &stubCache{loadErr: errors.New("empty"), stored: make(chan []domain.PatientData, 1)}
	coord := NewCoordinator(store, zap.NewNop(), WithSnapshotCache(cache))
	if _, err := coord.StartBackgroundSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	store.push(patient("PHYA7", "Persist me"))

	select {
	case recs := <-cache.stored:
		if len(recs) != 1 || recs[0].ID != "PHYA7" {
			t.Errorf("persisted snapshot = %+v", recs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live snapshot was not written to the snapshot cache")
	}
}

// blockingCache holds every Store until release is closed.
type blockingCache struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (c *blockingCache) Load(context.Context) ([]domain.PatientData, error) {
	return nil, errors.New("empty")
}

func (c *blockingCache) Store(context.Context, []domain.PatientData) error {
	close(c.started)
	<-c.release
	c.finished.Store(true)
	return nil
}

func TestSubscription_StopWaitsForPendingPersist(t *testing.T) {
	store := newStubStore()
	cache := &blockingCache{started: make(chan struct{}), release: make(chan struct{})}
	coord := NewCoordinator(store, zap.NewNop(), WithSnapshotCache(cache))
	sub, err := coord.StartBackgroundSync(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	store.push(patient("PHYA7", "Persist me"))
	select {
	case <-cache.started:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot write-back never started")
	}

	stopped := make(chan struct{})
	go func() {
		sub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned while a write-back was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(cache.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after the write-back finished")
	}
	if !cache.finished.Load() {
		t.Error("write-back did not complete before Stop() returned")
	}
}

func TestSavedRecordAppearsInNextSnapshot(t *testing.T) {
	store := memory.NewPatientRepository()
	coord := NewCoordinator(store, zap.NewNop())
	sub, err := coord.StartBackgroundSync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Stop()

	before := time.Now().UnixMilli()
	if _, err := coord.Save(context.Background(), &domain.PatientData{ID: "PHYA8", Name: "n", TherapistName: "t"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := coord.Cached("PHYA8"); ok {
			if rec.LastUpdated < before {
				t.Errorf("lastUpdated = %d, want >= %d", rec.LastUpdated, before)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("saved record never reached the mirror")
}
