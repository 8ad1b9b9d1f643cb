package catalog

import (
	"fmt"
	"strings"
)

// Category is one selectable dimension of a generation request.
type Category string

const (
	CategoryModel       Category = "model"
	CategoryBackground  Category = "background"
	CategoryPose        Category = "pose"
	CategoryCameraAngle Category = "cameraAngle"
	CategoryStyle       Category = "style"
	CategoryLighting    Category = "lighting"
)

// Categories returns every mandatory category in prompt order.
func Categories() []Category {
	return []Category{
		CategoryModel,
		CategoryBackground,
		CategoryPose,
		CategoryCameraAngle,
		CategoryStyle,
		CategoryLighting,
	}
}

// Facet is one selectable option. Display is the exact phrase rendered into
// the generation instruction, so entries are written as prompt fragments.
type Facet struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Display  string   `json:"display"`
}

// Registry is an immutable facet lookup, loaded once at process start.
type Registry struct {
	byCategory map[Category]map[string]Facet
	order      map[Category][]string
}

func New(facets []Facet) (*Registry, error) {
	r := &Registry{
		byCategory: make(map[Category]map[string]Facet),
		order:      make(map[Category][]string),
	}

	for _, f := range facets {
		f.ID = strings.ToLower(strings.TrimSpace(f.ID))
		if f.ID == "" {
			return nil, fmt.Errorf("facet in category %q has empty id", f.Category)
		}
		if strings.TrimSpace(f.Display) == "" {
			return nil, fmt.Errorf("facet %s/%s has empty display text", f.Category, f.ID)
		}

		bucket, ok := r.byCategory[f.Category]
		if !ok {
			bucket = make(map[string]Facet)
			r.byCategory[f.Category] = bucket
		}
		if _, dup := bucket[f.ID]; dup {
			return nil, fmt.Errorf("duplicate facet id %q in category %q", f.ID, f.Category)
		}
		bucket[f.ID] = f
		r.order[f.Category] = append(r.order[f.Category], f.ID)
	}

	for _, cat := range Categories() {
		if len(r.byCategory[cat]) == 0 {
			return nil, fmt.Errorf("category %q has no facets", cat)
		}
	}

	return r, nil
}

func (r *Registry) Lookup(cat Category, id string) (Facet, bool) {
	bucket, ok := r.byCategory[cat]
	if !ok {
		return Facet{}, false
	}
	f, ok := bucket[strings.ToLower(strings.TrimSpace(id))]
	return f, ok
}

// List returns the facets of one category in registration order.
func (r *Registry) List(cat Category) []Facet {
	ids := r.order[cat]
	out := make([]Facet, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byCategory[cat][id])
	}
	return out
}

// All returns the whole catalog grouped by category, in category order.
func (r *Registry) All() map[Category][]Facet {
	out := make(map[Category][]Facet, len(r.byCategory))
	for _, cat := range Categories() {
		out[cat] = r.List(cat)
	}
	return out
}
