package repository

import (
	"alcyxob/physiotrack/internal/domain" // Import our defined domain models
	"context"
	"sort"
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrInvalidRecord = RepositoryError("invalid patient record")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// SnapshotFunc receives the full contents of the patients collection.
// The slice is owned by the receiver.
type SnapshotFunc func(records []domain.PatientData)

// ErrorFunc receives subscription failures. The subscription keeps retrying after reporting.
type ErrorFunc func(err error)

// PatientRepository is the hosted record store boundary.
// Every implementation returns ErrNotFound when a document is missing; any other
// error from Get or Put is a transport failure.
type PatientRepository interface {
	// Get reads one patient document by its (trimmed) ID.
	Get(ctx context.Context, id string) (*domain.PatientData, error)
	// Put overwrites the whole document keyed by patient.ID, creating it if needed.
	Put(ctx context.Context, patient *domain.PatientData) error
	// Subscribe pushes the full collection on subscribe and again after every change,
	// until ctx is cancelled or the returned cancel func is called.
	Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (cancel func(), err error)
}

// SnapshotCache persists the last synced collection so a cold start can serve
// lookups before the store answers.
type SnapshotCache interface {
	Load(ctx context.Context) ([]domain.PatientData, error)
	Store(ctx context.Context, records []domain.PatientData) error
}

// ValidateForWrite checks the invariants every store enforces before writing.
func ValidateForWrite(p *domain.PatientData) error {
	if p == nil || p.ID == "" || p.ID != domain.NormalizePatientID(p.ID) {
		return ErrInvalidRecord
	}
	for _, ex := range p.Exercises {
		if !ex.Data.AllFinite() {
			return ErrInvalidRecord
		}
	}
	return nil
}

// SnapshotOf copies docs into a slice ordered by ID, sharing no state with docs.
func SnapshotOf(docs map[string]domain.PatientData) []domain.PatientData {
	out := make([]domain.PatientData, 0, len(docs))
	for _, p := range docs {
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
