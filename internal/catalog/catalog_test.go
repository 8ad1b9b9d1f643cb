package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryCoversEveryCategory(t *testing.T) {
	r := Default()

	for _, cat := range Categories() {
		facets := r.List(cat)
		require.NotEmpty(t, facets, "category %s has no facets", cat)
		for _, f := range facets {
			require.Equal(t, cat, f.Category)
			require.NotEmpty(t, f.ID)
			require.NotEmpty(t, f.Display)
		}
	}
}

func TestLookupNormalizesID(t *testing.T) {
	r := Default()

	f, ok := r.Lookup(CategoryModel, "  Elena_Nordic ")
	require.True(t, ok)
	require.Equal(t, "elena_nordic", f.ID)
	require.Equal(t, CategoryModel, f.Category)

	_, ok = r.Lookup(CategoryModel, "no_such_model")
	require.False(t, ok)

	_, ok = r.Lookup(Category("wardrobe"), "elena_nordic")
	require.False(t, ok)
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	facets := []Facet{
		{ID: "a", Category: CategoryModel, Display: "a"},
		{ID: "A", Category: CategoryModel, Display: "again"},
	}
	_, err := New(facets)
	require.ErrorContains(t, err, "duplicate facet id")
}

func TestNewRejectsEmptyCategory(t *testing.T) {
	var facets []Facet
	for _, cat := range Categories() {
		if cat == CategoryLighting {
			continue
		}
		facets = append(facets, Facet{ID: "x", Category: cat, Display: "x"})
	}
	_, err := New(facets)
	require.ErrorContains(t, err, `"lighting" has no facets`)
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := Default()
	models := r.List(CategoryModel)
	require.Equal(t, "elena_nordic", models[0].ID)

	all := r.All()
	require.Len(t, all, len(Categories()))
	require.Equal(t, models, all[CategoryModel])
}
