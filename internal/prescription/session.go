// Package prescription turns a clinician's selections into a patient record and
// back, and groups a saved record for the read-only view.
package prescription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrInvalidField    = errors.New("invalid exercise field")
	ErrUnknownExercise = errors.New("unknown exercise")
	ErrUnknownRow      = errors.New("unknown free text row")
)

// Required patient detail names, as reported in ValidationError.Missing.
const (
	FieldName          = "name"
	FieldTherapistName = "therapistName"
)

// ValidationError lists the required details that were left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// FreeTextRow is one clinician-typed exercise line.
type FreeTextRow struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Details are the patient header fields of the form.
type Details struct {
	Name          string `json:"name"`
	TherapistName string `json:"therapistName"`
	Class         string `json:"class,omitempty"`
	HR            string `json:"hr,omitempty"`
}

// Form is the editable state of a session.
type Form struct {
	PatientID  string                        `json:"patientId"`
	Details    Details                       `json:"details"`
	Selections map[string]domain.FieldValues `json:"selections"`
	FreeText   []FreeTextRow                 `json:"freeText"`
	Existing   bool                          `json:"existing"`
}

// Saver persists a built record. *service.Coordinator satisfies it.
type Saver interface {
	Save(ctx context.Context, record *domain.PatientData) (*domain.PatientData, error)
}

// Session is the authoring state for one patient. It is not safe for concurrent use.
type Session struct {
	catalog    *catalog.Catalog
	patientID  string
	details    Details
	selections map[string]domain.FieldValues
	rows       []FreeTextRow
	existing   bool
	now        func() time.Time
}

// NewSession starts authoring for patientID. When existing is non-nil the
// selections and free-text rows are reconstructed from its exercises.
func NewSession(cat *catalog.Catalog, patientID string, existing *domain.PatientData) *Session {
	s := &Session{
		catalog:    cat,
		patientID:  domain.NormalizePatientID(patientID),
		selections: make(map[string]domain.FieldValues),
		now:        time.Now,
	}
	if existing != nil {
		s.existing = true
		s.details = Details{
			Name:          existing.Name,
			TherapistName: existing.TherapistName,
			Class:         existing.Class,
			HR:            existing.HR,
		}
		for _, ex := range existing.Exercises {
			if ex.IsFreeText() {
				s.rows = append(s.rows, FreeTextRow{ID: ex.ExerciseID, Text: ex.Name})
				continue
			}
			s.selections[ex.ExerciseID] = ex.Data.Clone()
		}
	}
	if len(s.rows) == 0 {
		s.rows = []FreeTextRow{newRow()}
	}
	return s
}

func newRow() FreeTextRow {
	return FreeTextRow{ID: uuid.NewString()}
}

// PatientID is the trimmed barcode the session writes to.
func (s *Session) PatientID() string { return s.patientID }

// SetDetails replaces the patient header fields.
func (s *Session) SetDetails(d Details) { s.details = d }

// Select marks a catalog exercise as prescribed. Selecting twice keeps the entered values.
func (s *Session) Select(exerciseID string) error {
	if _, ok := s.catalog.FindByID(exerciseID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseID)
	}
	if _, ok := s.selections[exerciseID]; !ok {
		s.selections[exerciseID] = domain.FieldValues{}
	}
	return nil
}

// Deselect drops an exercise and everything entered for it.
func (s *Session) Deselect(exerciseID string) {
	delete(s.selections, exerciseID)
}

// Selected reports whether exerciseID is prescribed.
func (s *Session) Selected(exerciseID string) bool {
	_, ok := s.selections[exerciseID]
	return ok
}

// SetField stores raw input for a field of a selected exercise, converted by the
// field's declared kind. An empty raw value clears the field.
func (s *Session) SetField(exerciseID, key, raw string) error {
	def, ok := s.catalog.FindByID(exerciseID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseID)
	}
	data, ok := s.selections[exerciseID]
	if !ok {
		return fmt.Errorf("%w: %q is not selected", ErrInvalidField, exerciseID)
	}
	field, ok := def.Field(key)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrInvalidField, exerciseID, key)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		delete(data, key)
		return nil
	}
	v, err := parseFieldValue(field, raw)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidField, exerciseID, key, err)
	}
	data[key] = v
	return nil
}

func parseFieldValue(f domain.ExerciseField, raw string) (domain.FieldValue, error) {
	switch f.Kind {
	case domain.InputNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return domain.FieldValue{}, fmt.Errorf("%q is not a number", raw)
		}
		return domain.NumberValue(n), nil
	case domain.InputCheckbox:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("%q is not a checkbox value", raw)
		}
		return domain.FlagValue(b), nil
	case domain.InputSelect:
		for _, opt := range f.Options {
			if opt == raw {
				return domain.TextValue(raw), nil
			}
		}
		return domain.FieldValue{}, fmt.Errorf("%q is not one of %v", raw, f.Options)
	default:
		return domain.TextValue(raw), nil
	}
}

// AddFreeTextRow appends an empty row and returns its id.
func (s *Session) AddFreeTextRow() string {
	row := newRow()
	s.rows = append(s.rows, row)
	return row.ID
}

// SetFreeText replaces the text of a row.
func (s *Session) SetFreeText(rowID, text string) error {
	for i := range s.rows {
		if s.rows[i].ID == rowID {
			s.rows[i].Text = text
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownRow, rowID)
}

// ReplaceFreeText swaps in rows submitted as a whole. Rows without an id get one.
func (s *Session) ReplaceFreeText(rows []FreeTextRow) {
	s.rows = make([]FreeTextRow, 0, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		s.rows = append(s.rows, row)
	}
	if len(s.rows) == 0 {
		s.rows = []FreeTextRow{newRow()}
	}
}

// RemoveFreeTextRow deletes a row. Removing the only row leaves a fresh empty one.
func (s *Session) RemoveFreeTextRow(rowID string) error {
	for i := range s.rows {
		if s.rows[i].ID != rowID {
			continue
		}
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
		if len(s.rows) == 0 {
			s.rows = []FreeTextRow{newRow()}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownRow, rowID)
}

// Form returns a copy of the editable state.
func (s *Session) Form() Form {
	sel := make(map[string]domain.FieldValues, len(s.selections))
	for id, data := range s.selections {
		sel[id] = data.Clone()
	}
	return Form{
		PatientID:  s.patientID,
		Details:    s.details,
		Selections: sel,
		FreeText:   append([]FreeTextRow(nil), s.rows...),
		Existing:   s.existing,
	}
}

// Validate checks the required patient details.
func (s *Session) Validate() error {
	var missing []string
	if strings.TrimSpace(s.details.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(s.details.TherapistName) == "" {
		missing = append(missing, FieldTherapistName)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Build materialises the record to save: selected catalog exercises in catalog
// order, then non-blank free-text rows. Every entry carries the same timestamp.
// Selections whose id is no longer in the catalog are dropped.
func (s *Session) Build() (*domain.PatientData, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	stamp := domain.NowMillis(s.now())

	exercises := make([]domain.PrescribedExercise, 0, len(s.selections)+len(s.rows))
	for _, def := range s.catalog.List() {
		data, ok := s.selections[def.ID]
		if !ok {
			continue
		}
		exercises = append(exercises, domain.PrescribedExercise{
			ExerciseID: def.ID,
			Name:       def.Name,
			Category:   def.Category,
			Data:       data.Clone(),
			Timestamp:  stamp,
		})
	}
	for _, row := range s.rows {
		if strings.TrimSpace(row.Text) == "" {
			continue
		}
		exercises = append(exercises, domain.PrescribedExercise{
			ExerciseID: row.ID,
			Name:       row.Text,
			Category:   domain.CategoryFreeText,
			Data:       domain.FieldValues{},
			Timestamp:  stamp,
		})
	}

	return &domain.PatientData{
		ID:            s.patientID,
		Name:          s.details.Name,
		TherapistName: s.details.TherapistName,
		Class:         s.details.Class,
		HR:            s.details.HR,
		Exercises:     exercises,
	}, nil
}

// Submit builds the record and hands it to saver. A validation failure never
// reaches saver.
func (s *Session) Submit(ctx context.Context, saver Saver) (*domain.PatientData, error) {
	record, err := s.Build()
	if err != nil {
		return nil, err
	}
	saved, err := saver.Save(ctx, record)
	if err != nil {
		return nil, err
	}
	s.existing = true
	return saved, nil
}
