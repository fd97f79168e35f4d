package domain

import (
	"strings"
	"time"
)

// PrescribedExercise is one catalog or free-text activity in a patient's prescription.
type PrescribedExercise struct {
	ExerciseID string           `bson:"exerciseId" json:"exerciseId"` // catalog id, or a synthetic id for free text
	Name       string           `bson:"name" json:"name"`             // free text rows carry the clinician's text here
	Category   ExerciseCategory `bson:"category" json:"category"`
	Data       FieldValues      `bson:"data" json:"data"`
	Timestamp  int64            `bson:"timestamp" json:"timestamp"` // epoch milliseconds
}

// IsFreeText reports whether the entry was typed in rather than picked from the catalog.
func (e PrescribedExercise) IsFreeText() bool {
	return e.Category == CategoryFreeText
}

// PatientData is the full prescription document for one patient.
// The ID is the scanned barcode (e.g. PHYA1234567A) and is the document key.
type PatientData struct {
	ID            string               `bson:"_id" json:"id"`
	Name          string               `bson:"name" json:"name"`
	TherapistName string               `bson:"therapistName" json:"therapistName"`
	Class         string               `bson:"class,omitempty" json:"class,omitempty"`
	HR            string               `bson:"hr,omitempty" json:"hr,omitempty"` // heart-rate note
	Exercises     []PrescribedExercise `bson:"exercises" json:"exercises"`
	LastUpdated   int64                `bson:"lastUpdated" json:"lastUpdated"` // epoch milliseconds, stamped on save
}

// Clone returns a deep copy so callers can't mutate a shared snapshot.
func (p *PatientData) Clone() *PatientData {
	if p == nil {
		return nil
	}
	out := *p
	out.Exercises = make([]PrescribedExercise, len(p.Exercises))
	for i, ex := range p.Exercises {
		ex.Data = ex.Data.Clone()
		out.Exercises[i] = ex
	}
	return &out
}

// NormalizePatientID strips the whitespace and line breaks hardware scanners append.
func NormalizePatientID(raw string) string {
	return strings.TrimSpace(raw)
}

// NowMillis returns t as epoch milliseconds.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
