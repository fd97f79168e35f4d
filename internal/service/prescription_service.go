package service

import (
	"context"
	"errors"
	"sort"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/prescription"
	"alcyxob/physiotrack/internal/repository"

	"go.uber.org/zap"
)

// PrescriptionInput is a whole authoring form as submitted by the web client.
// Field values arrive as raw input and are checked against the catalog.
type PrescriptionInput struct {
	Details    prescription.Details
	Selections map[string]domain.FieldValues
	FreeText   []prescription.FreeTextRow
}

// --- Service Interface ---
type PrescriptionService interface {
	// GetRecord resolves a patient record cache-first.
	GetRecord(ctx context.Context, patientID string) (*domain.PatientData, error)
	// GetView returns the grouped read-only view of a patient record.
	GetView(ctx context.Context, patientID string) (*prescription.PatientView, error)
	// GetForm returns the authoring form, empty when the patient has no record yet.
	GetForm(ctx context.Context, patientID string) (*prescription.Form, error)
	// SaveForm validates the form and overwrites the patient's record.
	SaveForm(ctx context.Context, patientID string, in PrescriptionInput) (*domain.PatientData, error)
}

// --- Service Implementation ---

type prescriptionService struct {
	coord   *Coordinator
	catalog *catalog.Catalog
	log     *zap.Logger
}

// NewPrescriptionService creates a new instance of prescriptionService.
func NewPrescriptionService(coord *Coordinator, cat *catalog.Catalog, log *zap.Logger) PrescriptionService {
	return &prescriptionService{coord: coord, catalog: cat, log: log.Named("prescription")}
}

func (s *prescriptionService) GetRecord(ctx context.Context, patientID string) (*domain.PatientData, error) {
	return s.coord.Resolve(ctx, patientID)
}

func (s *prescriptionService) GetView(ctx context.Context, patientID string) (*prescription.PatientView, error) {
	rec, err := s.coord.Resolve(ctx, patientID)
	if err != nil {
		return nil, err
	}
	view := prescription.Group(rec, s.catalog)
	return &view, nil
}

func (s *prescriptionService) GetForm(ctx context.Context, patientID string) (*prescription.Form, error) {
	rec, err := s.coord.Resolve(ctx, patientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	// rec is nil for a patient seen for the first time.
	form := prescription.NewSession(s.catalog, patientID, rec).Form()
	return &form, nil
}

func (s *prescriptionService) SaveForm(ctx context.Context, patientID string, in PrescriptionInput) (*domain.PatientData, error) {
	session := prescription.NewSession(s.catalog, patientID, nil)
	if session.PatientID() == "" {
		return nil, ErrEmptyPatientID
	}
	session.SetDetails(in.Details)

	ids := make([]string, 0, len(in.Selections))
	for id := range in.Selections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := session.Select(id); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(in.Selections[id]))
		for key := range in.Selections[id] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := session.SetField(id, key, in.Selections[id][key].String()); err != nil {
				return nil, err
			}
		}
	}
	session.ReplaceFreeText(in.FreeText)

	saved, err := session.Submit(ctx, s.coord)
	if err != nil {
		var vErr *prescription.ValidationError
		if errors.As(err, &vErr) {
			s.log.Info("Rejected incomplete prescription", zap.String("patientId", session.PatientID()), zap.Strings("missing", vErr.Missing))
		}
		return nil, err
	}
	return saved, nil
}
