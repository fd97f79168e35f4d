package prescription

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/domain"
)

// Detail is one "label: value" chip of an exercise. A ticked checkbox has no Value.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
}

func (d Detail) String() string {
	if d.Value == "" {
		return d.Label
	}
	return d.Label + ": " + d.Value
}

// ViewItem is a prescribed exercise as the assistant sees it.
type ViewItem struct {
	ExerciseID string   `json:"exerciseId"`
	Name       string   `json:"name"`
	Details    []Detail `json:"details"`
}

// CategoryGroup holds the items of one category in record order.
type CategoryGroup struct {
	Category domain.ExerciseCategory `json:"category"`
	Items    []ViewItem              `json:"items"`
}

// PatientView is the read-only rendering of a patient record.
type PatientView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TherapistName string          `json:"therapistName"`
	Class         string          `json:"class,omitempty"`
	HR            string          `json:"hr,omitempty"`
	LastUpdated   int64           `json:"lastUpdated"`
	Groups        []CategoryGroup `json:"groups"`
}

// Group builds the read-only view of record. Groups follow the display category
// order, then categories the catalog doesn't know, then free text.
func Group(record *domain.PatientData, cat *catalog.Catalog) PatientView {
	view := PatientView{
		ID:            record.ID,
		Name:          record.Name,
		TherapistName: record.TherapistName,
		Class:         record.Class,
		HR:            record.HR,
		LastUpdated:   record.LastUpdated,
		Groups:        []CategoryGroup{},
	}

	byCat := make(map[domain.ExerciseCategory][]ViewItem)
	var unknown []domain.ExerciseCategory
	for _, ex := range record.Exercises {
		if _, seen := byCat[ex.Category]; !seen && !ex.Category.IsValid() {
			unknown = append(unknown, ex.Category)
		}
		byCat[ex.Category] = append(byCat[ex.Category], ViewItem{
			ExerciseID: ex.ExerciseID,
			Name:       ex.Name,
			Details:    details(ex, cat),
		})
	}

	order := append(catalog.DisplayCategories(), unknown...)
	order = append(order, domain.CategoryFreeText)
	for _, c := range order {
		if items := byCat[c]; len(items) > 0 {
			view.Groups = append(view.Groups, CategoryGroup{Category: c, Items: items})
		}
	}
	return view
}

// details lists the non-empty values, in the catalog's field order when the
// exercise is known, else sorted by key.
func details(ex domain.PrescribedExercise, cat *catalog.Catalog) []Detail {
	out := []Detail{}
	if len(ex.Data) == 0 {
		return out
	}

	def, known := cat.FindByID(ex.ExerciseID)
	var keys []string
	if known {
		for _, f := range def.Fields {
			if _, ok := ex.Data[f.Key]; ok {
				keys = append(keys, f.Key)
			}
		}
	}
	var extra []string
	for k := range ex.Data {
		if !known {
			extra = append(extra, k)
			continue
		}
		if _, ok := def.Field(k); !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	for _, k := range keys {
		v := ex.Data[k]
		if v.IsEmpty() {
			continue
		}
		label := k
		if known {
			if f, ok := def.Field(k); ok && f.Label != "" {
				label = f.Label
			}
		}
		d := Detail{Label: label}
		if !(v.Kind == domain.ValueFlag || (v.Kind == domain.ValueText && v.Text == "true")) {
			d.Value = v.String()
		}
		out = append(out, d)
	}
	return out
}

// RenderSheet formats record as the plain-text sheet handed to the patient.
// Dates are printed in loc.
func RenderSheet(record *domain.PatientData, cat *catalog.Catalog, loc *time.Location) string {
	view := Group(record, cat)
	var b strings.Builder

	fmt.Fprintf(&b, "PHYSIOTHERAPY EXERCISE PRESCRIPTION\n")
	fmt.Fprintf(&b, "Patient: %s (%s)\n", view.Name, view.ID)
	fmt.Fprintf(&b, "Physio:  %s\n", view.TherapistName)
	fmt.Fprintf(&b, "Class:   %s\n", orNA(view.Class))
	if view.HR != "" {
		fmt.Fprintf(&b, "HR:      %s\n", view.HR)
	}
	if view.LastUpdated > 0 {
		fmt.Fprintf(&b, "Date:    %s\n", time.UnixMilli(view.LastUpdated).In(loc).Format("2006-01-02"))
	}

	if len(view.Groups) == 0 {
		b.WriteString("\nNo exercises prescribed yet.\n")
		return b.String()
	}
	for _, g := range view.Groups {
		fmt.Fprintf(&b, "\n[%s]\n", g.Category)
		for _, item := range g.Items {
			b.WriteString("  - ")
			b.WriteString(item.Name)
			if len(item.Details) > 0 {
				parts := make([]string, len(item.Details))
				for i, d := range item.Details {
					parts[i] = d.String()
				}
				b.WriteString("  (")
				b.WriteString(strings.Join(parts, ", "))
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
