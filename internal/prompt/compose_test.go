package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"atelier-ai/internal/catalog"
)

func testFacets(t *testing.T) map[catalog.Category]catalog.Facet {
	t.Helper()

	r := catalog.Default()
	out := make(map[catalog.Category]catalog.Facet)
	for _, cat := range catalog.Categories() {
		out[cat] = r.List(cat)[0]
	}
	return out
}

func TestComposeIsDeterministic(t *testing.T) {
	facets := testFacets(t)

	a := Compose(facets, 2)
	b := Compose(facets, 2)
	require.Equal(t, a.Text, b.Text)
	require.Equal(t, a.Snapshot, b.Snapshot)
}

func TestComposeSectionOrder(t *testing.T) {
	facets := testFacets(t)
	text := Compose(facets, 1).Text

	sections := []string{
		"GARMENT IDENTITY LOCK",
		"SUBJECT:",
		"POSE:",
		"CAMERA:",
		"LIGHTING:",
		"STYLE:",
		"SETTING:",
		"UNIVERSAL TECHNICAL SPECS:",
		"NEGATIVE PROMPT",
		"OUTPUT RULES:",
	}

	last := -1
	for _, section := range sections {
		idx := strings.Index(text, section)
		require.GreaterOrEqual(t, idx, 0, "missing section %s", section)
		require.Greater(t, idx, last, "section %s out of order", section)
		last = idx
	}
}

func TestComposeRendersEveryFacetDisplay(t *testing.T) {
	facets := testFacets(t)
	text := Compose(facets, 1).Text

	for cat, f := range facets {
		require.Contains(t, text, f.Display, "category %s display missing", cat)
	}
}

func TestComposeReferencesGarmentsByPositionOnly(t *testing.T) {
	facets := testFacets(t)

	composed := Compose(facets, 3)
	require.Contains(t, composed.Text, "3 garment reference image(s)")
	require.Contains(t, composed.Text, "Garment #3")
	require.NotContains(t, composed.Text, "http")
	require.NotContains(t, composed.Text, "data:")
}

func TestComposeSnapshotIsACopy(t *testing.T) {
	facets := testFacets(t)
	composed := Compose(facets, 1)

	facets[catalog.CategoryModel] = catalog.Facet{ID: "mutated"}
	require.NotEqual(t, "mutated", composed.Snapshot[catalog.CategoryModel].ID)
}

func TestComposeClampsGarmentCount(t *testing.T) {
	composed := Compose(testFacets(t), 0)
	require.Contains(t, composed.Text, "1 garment reference image(s)")
}
