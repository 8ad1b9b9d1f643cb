package generation

import (
	"strings"

	"atelier-ai/internal/catalog"
)

// Validator checks requests against a catalog snapshot. It has no side
// effects; the same request against the same registry always yields the
// same answer.
type Validator struct {
	registry *catalog.Registry
}

func NewValidator(registry *catalog.Registry) *Validator {
	return &Validator{registry: registry}
}

func (v *Validator) Validate(req Request) (NormalizedRequest, error) {
	garments := make([]string, 0, len(req.GarmentRefs))
	for _, ref := range req.GarmentRefs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		garments = append(garments, ref)
	}
	if len(garments) == 0 {
		return NormalizedRequest{}, &ValidationError{Kind: MissingGarment}
	}

	snapshot := make(map[catalog.Category]catalog.Facet, len(catalog.Categories()))
	for _, cat := range catalog.Categories() {
		id, ok := req.Facets[cat]
		if !ok || strings.TrimSpace(id) == "" {
			return NormalizedRequest{}, &ValidationError{Kind: MissingFacet, Category: cat}
		}
		facet, ok := v.registry.Lookup(cat, id)
		if !ok {
			return NormalizedRequest{}, &ValidationError{Kind: UnknownFacet, Category: cat, FacetID: id}
		}
		snapshot[cat] = facet
	}

	return NormalizedRequest{
		RequesterID: req.RequesterID,
		GarmentRefs: garments,
		Facets:      snapshot,
		Service:     strings.ToLower(strings.TrimSpace(req.Service)),
	}, nil
}
