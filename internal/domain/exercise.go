// internal/domain/exercise.go
package domain

// ExerciseCategory groups exercises on the prescription sheet.
type ExerciseCategory string

// Declaration order is the display order of the sheet.
const (
	CategoryElectrotherapy ExerciseCategory = "Electrotherapy"
	CategoryAerobic        ExerciseCategory = "Aerobic"
	CategoryStrengthening  ExerciseCategory = "Strengthening"
	CategoryMobilization   ExerciseCategory = "Mobilization"
	CategoryBalance        ExerciseCategory = "Balance"
	CategoryHand           ExerciseCategory = "Hand"
	CategoryOthers         ExerciseCategory = "Others"
	// CategoryFreeText holds clinician-authored rows that are not in the catalog.
	CategoryFreeText ExerciseCategory = "Additional Exercises"
)

// AllCategories lists every category in declaration order, free text last.
var AllCategories = []ExerciseCategory{
	CategoryElectrotherapy,
	CategoryAerobic,
	CategoryStrengthening,
	CategoryMobilization,
	CategoryBalance,
	CategoryHand,
	CategoryOthers,
	CategoryFreeText,
}

// IsValid reports whether c is one of the known categories.
func (c ExerciseCategory) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// InputKind is the type of input a catalog field collects.
type InputKind string

const (
	InputCheckbox InputKind = "checkbox"
	InputText     InputKind = "text"
	InputNumber   InputKind = "number"
	InputSelect   InputKind = "select"
)

// ExerciseField describes one extra input of a catalog exercise (side, weight, reps...).
type ExerciseField struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        InputKind `json:"type"`
	Options     []string  `json:"options,omitempty"`     // select inputs only
	Placeholder string    `json:"placeholder,omitempty"`
	Width       string    `json:"width,omitempty"` // layout hint for the web client
}

// ExerciseDefinition is a prescribable exercise from the static catalog.
type ExerciseDefinition struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"` // may carry the Chinese name in parentheses
	Category ExerciseCategory `json:"category"`
	Fields   []ExerciseField  `json:"fields"`
}

// Field returns the field with the given key.
func (d ExerciseDefinition) Field(key string) (ExerciseField, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return ExerciseField{}, false
}
