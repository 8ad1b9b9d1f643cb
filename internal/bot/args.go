package bot

import (
	"strings"

	"atelier-ai/internal/catalog"
)

// Shoot holds the facet selection and service key parsed from a caption.
type Shoot struct {
	Facets  map[catalog.Category]string
	Service string
}

var categoryAliases = map[string]catalog.Category{
	"model":      catalog.CategoryModel,
	"background": catalog.CategoryBackground,
	"bg":         catalog.CategoryBackground,
	"pose":       catalog.CategoryPose,
	"camera":     catalog.CategoryCameraAngle,
	"angle":      catalog.CategoryCameraAngle,
	"style":      catalog.CategoryStyle,
	"lighting":   catalog.CategoryLighting,
	"light":      catalog.CategoryLighting,
}

// ParseCaption reads shoot directives from a photo caption. Tokens are either
// "category=facet_id", a bare facet id (matched across categories), or a
// service keyword; anything unrecognized is ignored. Unset categories fall
// back to the first catalog entry.
func ParseCaption(raw string, registry *catalog.Registry) Shoot {
	shoot := Shoot{
		Facets:  make(map[catalog.Category]string, len(catalog.Categories())),
		Service: "studio-shot",
	}

	for _, tok := range strings.Fields(strings.ToLower(raw)) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		switch tok {
		case "premium", "editorial":
			shoot.Service = "editorial-shot"
			continue
		}

		if key, value, ok := strings.Cut(tok, "="); ok {
			cat, known := categoryAliases[strings.TrimSpace(key)]
			if !known {
				continue
			}
			if _, found := registry.Lookup(cat, value); found {
				shoot.Facets[cat] = value
			}
			continue
		}

		for _, cat := range catalog.Categories() {
			if _, found := registry.Lookup(cat, tok); found {
				shoot.Facets[cat] = tok
				break
			}
		}
	}

	for _, cat := range catalog.Categories() {
		if _, ok := shoot.Facets[cat]; ok {
			continue
		}
		options := registry.List(cat)
		shoot.Facets[cat] = options[0].ID
	}

	return shoot
}
