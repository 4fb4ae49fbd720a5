package menu

import "fmt"

// Category is an ingredient's slot in a bowl.
type Category string

const (
	CategoryBase    Category = "base"
	CategoryProtein Category = "protein"
	CategorySide    Category = "side"
	CategorySauce   Category = "sauce"
	CategoryGarnish Category = "garnish"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBase, CategoryProtein, CategorySide, CategorySauce, CategoryGarnish:
		return true
	}
	return false
}

// DietaryTag marks an ingredient as compatible with a dietary pattern.
type DietaryTag string

const (
	TagVegan      DietaryTag = "vegan"
	TagVegetarian DietaryTag = "vegetarian"
	TagGlutenFree DietaryTag = "gluten-free"
	TagDairyFree  DietaryTag = "dairy-free"
	TagNutFree    DietaryTag = "nut-free"
	TagHalal      DietaryTag = "halal"
)

// Availability of an ingredient at a location.
type Availability string

const (
	// AvailabilityFull means the ingredient is in stock.
	AvailabilityFull Availability = "available"
	// AvailabilityLimited means low stock; selectable with a warning.
	AvailabilityLimited Availability = "limited"
	// AvailabilityNone means out of stock; blocks checkout until the
	// bowl is modified.
	AvailabilityNone Availability = "unavailable"
)

// Ingredient is an atomic selectable item. Availability may be revoked
// asynchronously by the location's inventory feed, so validators always
// re-check it against a live AvailabilityChecker.
type Ingredient struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Category    Category     `json:"category" yaml:"category"`
	WeightGrams int          `json:"weightGrams" yaml:"weightGrams"`
	PriceCents  int          `json:"priceCents" yaml:"priceCents"`
	Allergens   []string     `json:"allergens,omitempty" yaml:"allergens,omitempty"`
	DietaryTags []DietaryTag `json:"dietaryTags,omitempty" yaml:"dietaryTags,omitempty"`
	Available   bool         `json:"available" yaml:"available"`
}

// Validate checks the ingredient's structural invariants.
func (i Ingredient) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("ingredient: missing id")
	}
	if !i.Category.Valid() {
		return fmt.Errorf("ingredient %s: unknown category %q", i.ID, i.Category)
	}
	if i.WeightGrams < 0 {
		return fmt.Errorf("ingredient %s: negative weight %d", i.ID, i.WeightGrams)
	}
	if i.PriceCents < 0 {
		return fmt.Errorf("ingredient %s: negative price %d", i.ID, i.PriceCents)
	}
	return nil
}

// HasTag reports whether the ingredient carries tag.
func (i Ingredient) HasTag(tag DietaryTag) bool {
	for _, t := range i.DietaryTags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAnyAllergen reports whether the ingredient contains any of the
// given allergens.
func (i Ingredient) HasAnyAllergen(allergens []string) bool {
	for _, a := range allergens {
		for _, own := range i.Allergens {
			if own == a {
				return true
			}
		}
	}
	return false
}
