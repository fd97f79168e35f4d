// Package memory is a process-local patient store used in development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"
)

type subscriber struct {
	onSnapshot repository.SnapshotFunc
	queue      chan []domain.PatientData
	done       chan struct{}
}

// PatientRepository keeps documents in a map and fans out snapshots to subscribers.
type PatientRepository struct {
	mu     sync.RWMutex
	docs   map[string]*domain.PatientData
	subs   map[int]*subscriber
	nextID int
}

// NewPatientRepository creates an empty store.
func NewPatientRepository() *PatientRepository {
	return &PatientRepository{
		docs: make(map[string]*domain.PatientData),
		subs: make(map[int]*subscriber),
	}
}

var _ repository.PatientRepository = (*PatientRepository)(nil)

func (r *PatientRepository) Get(ctx context.Context, id string) (*domain.PatientData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return doc.Clone(), nil
}

func (r *PatientRepository) Put(ctx context.Context, patient *domain.PatientData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateForWrite(patient); err != nil {
		return err
	}
	r.mu.Lock()
	r.docs[patient.ID] = patient.Clone()
	for _, s := range r.subs {
		s.push(r.snapshotLocked())
	}
	r.mu.Unlock()
	return nil
}

// Subscribe delivers snapshots on a dedicated goroutine per subscriber. When the
// subscriber falls behind, intermediate snapshots are dropped in favour of the latest.
func (r *PatientRepository) Subscribe(ctx context.Context, onSnapshot repository.SnapshotFunc, _ repository.ErrorFunc) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &subscriber{
		onSnapshot: onSnapshot,
		queue:      make(chan []domain.PatientData, 1),
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = s
	s.push(r.snapshotLocked())
	r.mu.Unlock()

	go s.run(ctx)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(s.done)
		})
	}
	return cancel, nil
}

// Len returns the number of stored documents.
func (r *PatientRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *PatientRepository) snapshotLocked() []domain.PatientData {
	out := make([]domain.PatientData, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, *doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// push replaces any undelivered snapshot with snap. Callers hold the repository lock.
func (s *subscriber) push(snap []domain.PatientData) {
	select {
	case <-s.queue:
	default:
	}
	s.queue <- snap
}

func (s *subscriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case snap := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.onSnapshot(snap)
		}
	}
}
