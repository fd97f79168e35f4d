// Package catalog holds the static list of prescribable exercises.
package catalog

import (
	"fmt"

	"alcyxob/physiotrack/internal/domain"
)

// Catalog is an immutable lookup table of exercise definitions.
type Catalog struct {
	defs []domain.ExerciseDefinition
	byID map[string]int
}

// New builds a catalog, rejecting duplicate exercise ids, duplicate field keys
// within one definition and definitions filed under the free-text category.
func New(defs []domain.ExerciseDefinition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]domain.ExerciseDefinition, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for i, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate exercise id %q", def.ID)
		}
		if !def.Category.IsValid() || def.Category == domain.CategoryFreeText {
			return nil, fmt.Errorf("exercise %q has invalid category %q", def.ID, def.Category)
		}
		keys := make(map[string]struct{}, len(def.Fields))
		for _, f := range def.Fields {
			if _, dup := keys[f.Key]; dup {
				return nil, fmt.Errorf("exercise %q has duplicate field key %q", def.ID, f.Key)
			}
			if f.Kind == domain.InputSelect && len(f.Options) == 0 {
				return nil, fmt.Errorf("exercise %q field %q is a select without options", def.ID, f.Key)
			}
			keys[f.Key] = struct{}{}
		}
		c.defs[i] = cloneDefinition(def)
		c.byID[def.ID] = i
	}
	return c, nil
}

// List returns all definitions in catalog order.
func (c *Catalog) List() []domain.ExerciseDefinition {
	out := make([]domain.ExerciseDefinition, len(c.defs))
	for i, d := range c.defs {
		out[i] = cloneDefinition(d)
	}
	return out
}

// ByCategory returns the definitions of one category in catalog order.
func (c *Catalog) ByCategory(cat domain.ExerciseCategory) []domain.ExerciseDefinition {
	var out []domain.ExerciseDefinition
	for _, d := range c.defs {
		if d.Category == cat {
			out = append(out, cloneDefinition(d))
		}
	}
	return out
}

// FindByID looks up a definition.
func (c *Catalog) FindByID(id string) (domain.ExerciseDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.ExerciseDefinition{}, false
	}
	return cloneDefinition(c.defs[i]), true
}

// Position returns the index of id in catalog order, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// Len is the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }

// DisplayCategories returns the structured categories in declaration order.
// The free-text section is rendered separately and is not included.
func DisplayCategories() []domain.ExerciseCategory {
	out := make([]domain.ExerciseCategory, 0, len(domain.AllCategories)-1)
	for _, cat := range domain.AllCategories {
		if cat != domain.CategoryFreeText {
			out = append(out, cat)
		}
	}
	return out
}

func cloneDefinition(d domain.ExerciseDefinition) domain.ExerciseDefinition {
	fields := make([]domain.ExerciseField, len(d.Fields))
	for i, f := range d.Fields {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		fields[i] = f
	}
	d.Fields = fields
	return d
}
