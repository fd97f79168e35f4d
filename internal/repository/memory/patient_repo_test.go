package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"
)

func TestGet_NotFound(t *testing.T) {
	r := NewPatientRepository()
	_, err := r.Get(context.Background(), "PHYA0000000X")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPut_OverwritesWholeDocument(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()

	first := &domain.PatientData{ID: "PHYA1", Name: "A", Exercises: []domain.PrescribedExercise{{ExerciseID: "hot_pack"}, {ExerciseID: "tens"}}}
	if err := r.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := &domain.PatientData{ID: "PHYA1", Name: "B", Exercises: []domain.PrescribedExercise{{ExerciseID: "ice_pack"}}}
	if err := r.Put(ctx, second); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := r.Get(ctx, "PHYA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "B" || len(got.Exercises) != 1 || got.Exercises[0].ExerciseID != "ice_pack" {
		t.Errorf("expected full replace, got %+v", got)
	}
}

func TestPut_RejectsUntrimmedID(t *testing.T) {
	r := NewPatientRepository()
	err := r.Put(context.Background(), &domain.PatientData{ID: " PHYA1\n"})
	if !errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestSubscribe_InitialAndChangeSnapshots(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()
	_ = r.Put(ctx, &domain.PatientData{ID: "PHYA1"})

	snaps := make(chan []domain.PatientData, 8)
	cancel, err := r.Subscribe(ctx, func(records []domain.PatientData) { snaps <- records }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	first := waitSnapshot(t, snaps)
	if len(first) != 1 || first[0].ID != "PHYA1" {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	_ = r.Put(ctx, &domain.PatientData{ID: "PHYA2"})
	second := waitSnapshot(t, snaps)
	if len(second) != 2 {
		t.Fatalf("expected 2 records after put, got %d", len(second))
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()

	snaps := make(chan []domain.PatientData, 8)
	cancel, _ := r.Subscribe(ctx, func(records []domain.PatientData) { snaps <- records }, nil)
	waitSnapshot(t, snaps)

	cancel()
	cancel() // second call is a no-op

	_ = r.Put(ctx, &domain.PatientData{ID: "PHYA9"})
	select {
	case s := <-snaps:
		t.Fatalf("unexpected snapshot after cancel: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitSnapshot(t *testing.T, ch <-chan []domain.PatientData) []domain.PatientData {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
