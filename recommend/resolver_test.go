package recommend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/recovery"
)

func testCatalog(t *testing.T, withPopularity bool) *menu.Catalog {
	t.Helper()
	ingredients := []menu.Ingredient{
		{ID: "grain-quinoa", Name: "Quinoa", Category: menu.CategoryBase, WeightGrams: 140, PriceCents: 350, Available: true},
		{ID: "grain-rice", Name: "Brown Rice", Category: menu.CategoryBase, WeightGrams: 150, PriceCents: 300, Available: true},
		{ID: "protein-chicken", Name: "Roast Chicken", Category: menu.CategoryProtein, WeightGrams: 120, PriceCents: 550, Allergens: []string{"gluten"}, Available: true},
		{ID: "protein-tofu", Name: "Baked Tofu", Category: menu.CategoryProtein, WeightGrams: 110, PriceCents: 450, Allergens: []string{"soy"}, Available: true},
		{ID: "side-corn", Name: "Charred Corn", Category: menu.CategorySide, WeightGrams: 80, PriceCents: 150, Available: true},
	}
	popularity := func(n int) int {
		if withPopularity {
			return n
		}
		return 0
	}
	signatures := []menu.SignatureBowl{
		{ID: "sig-protein", Name: "Protein Power", IngredientIDs: []string{"grain-quinoa", "protein-chicken", "side-corn"}, Popularity: popularity(40)},
		{ID: "sig-garden", Name: "Garden Goodness", IngredientIDs: []string{"grain-rice", "protein-tofu", "side-corn"}, Popularity: popularity(85)},
	}
	catalog, err := menu.NewCatalog(ingredients, signatures)
	require.NoError(t, err)
	return catalog
}

func failingSource(err error) Source {
	return SourceFunc(func(context.Context, Query) ([]Item, float64, error) {
		return nil, 0, err
	})
}

func staticSource(items []Item, confidence float64) Source {
	return SourceFunc(func(context.Context, Query) ([]Item, float64, error) {
		return items, confidence, nil
	})
}

func newResolver(t *testing.T, primary Source, withPopularity bool) (*Resolver, *recovery.Manager, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	rec := recovery.NewManager(fake, nil, nil)
	r := NewResolver(primary, testCatalog(t, withPopularity), rec, nil, nil, fake, Options{})
	return r, rec, fake
}

func TestGet_PrimaryServes(t *testing.T) {
	items := []Item{{ID: "ml-1", Name: "For You", Score: 0.9}}
	r, rec, _ := newResolver(t, staticSource(items, 0.92), true)

	result := r.Get(context.Background(), Query{UserID: "u-1"})

	assert.Equal(t, SourcePrimary, result.Source)
	assert.False(t, result.FallbackUsed)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, items, result.Recommendations)
	assert.Empty(t, rec.ActiveErrors())
}

func TestGet_FreshCacheBacksPrimaryFailure(t *testing.T) {
	calls := 0
	primary := SourceFunc(func(context.Context, Query) ([]Item, float64, error) {
		calls++
		if calls == 1 {
			return []Item{{ID: "ml-1", Name: "For You"}}, 0.9, nil
		}
		return nil, 0, fmt.Errorf("model endpoint 503")
	})
	r, rec, _ := newResolver(t, primary, true)
	q := Query{UserID: "u-1"}

	first := r.Get(context.Background(), q)
	require.Equal(t, SourcePrimary, first.Source)

	second := r.Get(context.Background(), q)
	assert.Equal(t, SourceCached, second.Source)
	assert.True(t, second.FallbackUsed)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.InDelta(t, 0.9, second.Confidence, 1e-9)

	// The primary failure was reported, not swallowed silently.
	active := rec.ActiveErrors()
	require.Len(t, active, 1)
	assert.Equal(t, errors.CategoryML, active[0].Category)
	assert.Equal(t, errors.SeverityMedium, active[0].Severity)
}

func TestGet_StaleCacheFallsToPopular(t *testing.T) {
	calls := 0
	primary := SourceFunc(func(context.Context, Query) ([]Item, float64, error) {
		calls++
		if calls == 1 {
			return []Item{{ID: "ml-1"}}, 0.9, nil
		}
		return nil, 0, fmt.Errorf("model endpoint 503")
	})
	r, _, fake := newResolver(t, primary, true)
	q := Query{UserID: "u-1"}

	r.Get(context.Background(), q)
	fake.SetNow(fake.Now().Add(time.Hour)) // past the freshness window

	result := r.Get(context.Background(), q)
	assert.Equal(t, SourcePopular, result.Source)
	assert.True(t, result.FallbackUsed)
	require.NotEmpty(t, result.Recommendations)
	// Ranked by popularity, highest first.
	assert.Equal(t, "sig-garden", result.Recommendations[0].ID)
	assert.Equal(t, "sig-protein", result.Recommendations[1].ID)
}

func TestGet_SignatureTierIsTotal(t *testing.T) {
	// Failing primary, empty cache, no popularity data: only the
	// curated set remains, and it must always serve.
	r, rec, _ := newResolver(t, failingSource(fmt.Errorf("down")), false)

	result := r.Get(context.Background(), Query{UserID: "u-1"})

	assert.Equal(t, SourceSignature, result.Source)
	assert.True(t, result.FallbackUsed)
	assert.InDelta(t, confidenceSignature, result.Confidence, 1e-9)
	require.Len(t, result.Recommendations, 2)
	assert.NotEmpty(t, rec.ActiveErrors())

	// Each recommendation is a buildable bowl, not just an id.
	for _, item := range result.Recommendations {
		assert.NotNil(t, item.Bowl.Base, "signature bowls resolve to complete compositions")
	}
}

func TestGet_AllergenFilterHonoredWhenPossible(t *testing.T) {
	r, _, _ := newResolver(t, nil, false)

	result := r.Get(context.Background(), Query{AllergenFilters: []string{"soy"}})
	require.Equal(t, SourceSignature, result.Source)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "sig-protein", result.Recommendations[0].ID)
}

func TestGet_FilterEmptyingSetFallsBackUnfiltered(t *testing.T) {
	r, _, _ := newResolver(t, nil, false)

	// Soy excludes the tofu bowl and gluten the chicken bowl; rather
	// than come back empty, the chain returns the unfiltered curation.
	result := r.Get(context.Background(), Query{AllergenFilters: []string{"soy", "gluten"}})
	assert.Len(t, result.Recommendations, 2)
}

func TestGet_EmptyPrimaryResultIsAFailure(t *testing.T) {
	r, rec, _ := newResolver(t, staticSource(nil, 0.9), true)

	result := r.Get(context.Background(), Query{UserID: "u-1"})
	assert.NotEqual(t, SourcePrimary, result.Source)
	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, rec.ActiveErrors())
}
