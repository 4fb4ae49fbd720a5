package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkphani/heybo-engine/menu"
)

func ing(id string, cat menu.Category, grams, cents int, allergens ...string) menu.Ingredient {
	return menu.Ingredient{
		ID: id, Name: id, Category: cat,
		WeightGrams: grams, PriceCents: cents,
		Allergens: allergens, Available: true,
	}
}

// optimalBowl is spec scenario B: quinoa base, chicken, two sides,
// sauce, garnish, 460g total.
func optimalBowl(t *testing.T) menu.Bowl {
	t.Helper()
	var b menu.Bowl
	require.NoError(t, b.Add(ing("quinoa", menu.CategoryBase, 140, 350)))
	require.NoError(t, b.Add(ing("chicken", menu.CategoryProtein, 120, 550)))
	require.NoError(t, b.Add(ing("corn", menu.CategorySide, 80, 150)))
	require.NoError(t, b.Add(ing("pumpkin", menu.CategorySide, 80, 150)))
	require.NoError(t, b.Add(ing("goddess", menu.CategorySauce, 30, 80)))
	require.NoError(t, b.Add(ing("furikake", menu.CategoryGarnish, 10, 50)))
	return b
}

func TestClassifyWeight_Boundaries(t *testing.T) {
	v := NewBowlValidator(Limits{})
	tests := []struct {
		weight   int
		expected WeightClass
	}{
		{0, WeightUnder},
		{199, WeightUnder},
		{200, WeightOptimal},
		{460, WeightOptimal},
		{720, WeightOptimal},
		{721, WeightWarning},
		{900, WeightWarning},
		{901, WeightOver},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, v.ClassifyWeight(test.weight), "weight=%d", test.weight)
	}
}

func TestValidate_OptimalBowlHasNoWarnings(t *testing.T) {
	v := NewBowlValidator(Limits{})
	b := optimalBowl(t)

	result := v.Validate(&b)
	assert.Equal(t, 460, result.TotalWeight)
	assert.Equal(t, WeightOptimal, result.WeightClass)
	assert.True(t, result.IsValid)
	assert.True(t, result.CanProceed)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidate_HeavyBowlWarnsButProceeds(t *testing.T) {
	// Scenario C: optimal bowl plus a 300g third side lands at 760g.
	v := NewBowlValidator(Limits{})
	b := optimalBowl(t)
	require.NoError(t, b.Add(ing("sweet-potato", menu.CategorySide, 300, 200)))

	result := v.Validate(&b)
	assert.Equal(t, 760, result.TotalWeight)
	assert.Equal(t, WeightWarning, result.WeightClass)
	assert.True(t, result.CanProceed)
	require.True(t, result.HasWarning(CodeWeightWarning))
	for _, w := range result.Warnings {
		if w.Code == CodeWeightWarning {
			assert.True(t, w.Dismissible)
		}
	}
}

func TestValidate_OverweightBlocksCheckout(t *testing.T) {
	v := NewBowlValidator(Limits{})
	b := optimalBowl(t)
	require.NoError(t, b.Add(ing("mega-side", menu.CategorySide, 500, 300)))

	result := v.Validate(&b)
	assert.Equal(t, 960, result.TotalWeight)
	assert.Equal(t, WeightOver, result.WeightClass)
	assert.False(t, result.CanProceed)
	assert.True(t, result.HasError(CodeWeightExceeded))
}

func TestValidate_BaseRequired(t *testing.T) {
	v := NewBowlValidator(Limits{})

	var b menu.Bowl
	require.NoError(t, b.Add(ing("chicken", menu.CategoryProtein, 120, 550)))
	require.NoError(t, b.Add(ing("corn", menu.CategorySide, 80, 150)))

	result := v.Validate(&b)
	assert.True(t, result.HasError(CodeBaseRequired))
	assert.False(t, result.CanProceed)

	// Regardless of other selections, even an otherwise perfect bowl.
	var rich menu.Bowl
	require.NoError(t, rich.Add(ing("chicken", menu.CategoryProtein, 200, 550)))
	require.NoError(t, rich.Add(ing("corn", menu.CategorySide, 100, 150)))
	require.NoError(t, rich.Add(ing("goddess", menu.CategorySauce, 30, 80)))
	result = v.Validate(&rich)
	assert.True(t, result.HasError(CodeBaseRequired))
}

func TestValidate_UnderweightNudges(t *testing.T) {
	v := NewBowlValidator(Limits{})

	var b menu.Bowl
	require.NoError(t, b.Add(ing("quinoa", menu.CategoryBase, 140, 350)))

	result := v.Validate(&b)
	assert.Equal(t, WeightUnder, result.WeightClass)
	assert.True(t, result.HasWarning(CodeWeightUnder))
	assert.True(t, result.CanProceed)

	// An empty bowl gets the base error, not a weight nudge.
	var empty menu.Bowl
	result = v.Validate(&empty)
	assert.False(t, result.HasWarning(CodeWeightUnder))
}

func TestValidate_AllergenDisclosureIsNonDismissible(t *testing.T) {
	v := NewBowlValidator(Limits{})

	var b menu.Bowl
	require.NoError(t, b.Add(ing("quinoa", menu.CategoryBase, 200, 350)))
	require.NoError(t, b.Add(ing("tofu", menu.CategoryProtein, 110, 450, "soy", "sesame")))
	require.NoError(t, b.Add(ing("goddess", menu.CategorySauce, 30, 80, "dairy")))

	result := v.Validate(&b)
	require.True(t, result.HasWarning(CodeAllergens))
	for _, w := range result.Warnings {
		if w.Code == CodeAllergens {
			assert.False(t, w.Dismissible)
			assert.ElementsMatch(t, []string{"dairy", "sesame", "soy"}, w.Details["allergens"])
		}
	}
	assert.True(t, result.CanProceed)
}

func TestValidate_Idempotent(t *testing.T) {
	v := NewBowlValidator(Limits{})
	b := optimalBowl(t)

	first := v.Validate(&b)
	second := v.Validate(&b)
	assert.Equal(t, first, second)
	// Validation alone never changes the composition.
	assert.Equal(t, 460, b.TotalWeight())
}

type fakeChecker struct {
	availability map[string]menu.Availability
	err          error
}

func (f *fakeChecker) Availability(ingredientID, _ string) (menu.Availability, error) {
	if f.err != nil {
		return "", f.err
	}
	if a, ok := f.availability[ingredientID]; ok {
		return a, nil
	}
	return menu.AvailabilityFull, nil
}

func TestValidateAt_AvailabilityPartition(t *testing.T) {
	v := NewBowlValidator(Limits{})
	b := optimalBowl(t)

	checker := &fakeChecker{availability: map[string]menu.Availability{
		"chicken": menu.AvailabilityNone,
		"corn":    menu.AvailabilityLimited,
	}}

	result := v.ValidateAt(&b, "loc-orchard", checker)
	assert.True(t, result.HasError(CodeUnavailable))
	assert.True(t, result.HasWarning(CodeLimited))
	assert.False(t, result.CanProceed)

	// Without a location context the live check is skipped entirely.
	result = v.ValidateAt(&b, "", checker)
	assert.False(t, result.HasError(CodeUnavailable))
}

func TestValidateAt_CheckerFailureIsNonBlocking(t *testing.T) {
	v := NewBowlValidator(Limits{})
	b := optimalBowl(t)

	checker := &fakeChecker{err: errors.New("inventory service timeout")}
	result := v.ValidateAt(&b, "loc-orchard", checker)
	assert.True(t, result.HasError(CodeAvailabilityFail))
	assert.True(t, result.CanProceed)
}
