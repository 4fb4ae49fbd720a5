package menu

import (
	"sort"
	"strings"
	"time"

	"github.com/jrkphani/heybo-engine/errors"
)

// MaxSides caps the total of sides and extra sides in one bowl. The
// fourth add is refused; bowls assembled elsewhere with more than three
// sides still validate, with a dismissible warning.
const MaxSides = 3

// Bowl is a user's in-progress or finalized order unit. The zero value
// is an empty bowl.
type Bowl struct {
	Base         *Ingredient  `json:"base,omitempty"`
	Protein      *Ingredient  `json:"protein,omitempty"`
	Sides        []Ingredient `json:"sides,omitempty"`
	ExtraSides   []Ingredient `json:"extraSides,omitempty"`
	ExtraProtein []Ingredient `json:"extraProtein,omitempty"`
	Sauce        *Ingredient  `json:"sauce,omitempty"`
	Garnish      *Ingredient  `json:"garnish,omitempty"`
}

// Add places ing in its category slot. Single-select categories replace
// the current selection; sides append until MaxSides is reached across
// sides and extra sides.
func (b *Bowl) Add(ing Ingredient) error {
	if err := ing.Validate(); err != nil {
		return errors.WrapAs(errors.CategoryValidation, err, "bowl", "Add", "validate ingredient")
	}

	switch ing.Category {
	case CategoryBase:
		b.Base = &ing
	case CategoryProtein:
		b.Protein = &ing
	case CategorySide:
		if b.SideCount() >= MaxSides {
			return errors.ErrSideCapReached
		}
		b.Sides = append(b.Sides, ing)
	case CategorySauce:
		b.Sauce = &ing
	case CategoryGarnish:
		b.Garnish = &ing
	}
	return nil
}

// AddExtraSide appends an extra side, subject to the shared side cap.
func (b *Bowl) AddExtraSide(ing Ingredient) error {
	if ing.Category != CategorySide {
		return errors.WrapAs(errors.CategoryValidation, errors.ErrIngredientUnknown,
			"bowl", "AddExtraSide", "ingredient is not a side")
	}
	if b.SideCount() >= MaxSides {
		return errors.ErrSideCapReached
	}
	b.ExtraSides = append(b.ExtraSides, ing)
	return nil
}

// AddExtraProtein appends an extra protein portion.
func (b *Bowl) AddExtraProtein(ing Ingredient) error {
	if ing.Category != CategoryProtein {
		return errors.WrapAs(errors.CategoryValidation, errors.ErrIngredientUnknown,
			"bowl", "AddExtraProtein", "ingredient is not a protein")
	}
	b.ExtraProtein = append(b.ExtraProtein, ing)
	return nil
}

// Remove takes the ingredient with id out of whichever slot holds it.
// Returns false if no slot holds it.
func (b *Bowl) Remove(id string) bool {
	if b.Base != nil && b.Base.ID == id {
		b.Base = nil
		return true
	}
	if b.Protein != nil && b.Protein.ID == id {
		b.Protein = nil
		return true
	}
	if b.Sauce != nil && b.Sauce.ID == id {
		b.Sauce = nil
		return true
	}
	if b.Garnish != nil && b.Garnish.ID == id {
		b.Garnish = nil
		return true
	}
	if removed := removeByID(&b.Sides, id); removed {
		return true
	}
	if removed := removeByID(&b.ExtraSides, id); removed {
		return true
	}
	return removeByID(&b.ExtraProtein, id)
}

func removeByID(items *[]Ingredient, id string) bool {
	for i, ing := range *items {
		if ing.ID == id {
			*items = append((*items)[:i], (*items)[i+1:]...)
			return true
		}
	}
	return false
}

// SideCount returns the total number of sides and extra sides.
func (b *Bowl) SideCount() int {
	return len(b.Sides) + len(b.ExtraSides)
}

// HasBase reports whether the mandatory base slot is filled.
func (b *Bowl) HasBase() bool {
	return b.Base != nil
}

// IsEmpty reports whether no slot is filled.
func (b *Bowl) IsEmpty() bool {
	return b.Base == nil && b.Protein == nil && b.Sauce == nil && b.Garnish == nil &&
		len(b.Sides) == 0 && len(b.ExtraSides) == 0 && len(b.ExtraProtein) == 0
}

// Ingredients returns every selected ingredient in slot order.
func (b *Bowl) Ingredients() []Ingredient {
	var out []Ingredient
	for _, single := range []*Ingredient{b.Base, b.Protein} {
		if single != nil {
			out = append(out, *single)
		}
	}
	out = append(out, b.Sides...)
	out = append(out, b.ExtraSides...)
	out = append(out, b.ExtraProtein...)
	for _, single := range []*Ingredient{b.Sauce, b.Garnish} {
		if single != nil {
			out = append(out, *single)
		}
	}
	return out
}

// TotalWeight is the sum of constituent weights in grams.
func (b *Bowl) TotalWeight() int {
	total := 0
	for _, ing := range b.Ingredients() {
		total += ing.WeightGrams
	}
	return total
}

// TotalPriceCents is the sum of constituent prices.
func (b *Bowl) TotalPriceCents() int {
	total := 0
	for _, ing := range b.Ingredients() {
		total += ing.PriceCents
	}
	return total
}

// Allergens is the sorted union of constituent allergens.
func (b *Bowl) Allergens() []string {
	seen := make(map[string]bool)
	for _, ing := range b.Ingredients() {
		for _, a := range ing.Allergens {
			seen[a] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Signature is the canonical ingredient-id signature used for duplicate
// detection: base|protein|sorted sides|sorted extraSides|sorted
// extraProtein|sauce|garnish.
func (b *Bowl) Signature() string {
	part := func(single *Ingredient) string {
		if single == nil {
			return ""
		}
		return single.ID
	}
	sortedIDs := func(items []Ingredient) string {
		ids := make([]string, len(items))
		for i, ing := range items {
			ids[i] = ing.ID
		}
		sort.Strings(ids)
		return strings.Join(ids, ",")
	}

	return strings.Join([]string{
		part(b.Base),
		part(b.Protein),
		sortedIDs(b.Sides),
		sortedIDs(b.ExtraSides),
		sortedIDs(b.ExtraProtein),
		part(b.Sauce),
		part(b.Garnish),
	}, "|")
}

// Clone returns a deep copy of the bowl.
func (b *Bowl) Clone() Bowl {
	cloneSingle := func(single *Ingredient) *Ingredient {
		if single == nil {
			return nil
		}
		c := *single
		return &c
	}
	return Bowl{
		Base:         cloneSingle(b.Base),
		Protein:      cloneSingle(b.Protein),
		Sides:        append([]Ingredient(nil), b.Sides...),
		ExtraSides:   append([]Ingredient(nil), b.ExtraSides...),
		ExtraProtein: append([]Ingredient(nil), b.ExtraProtein...),
		Sauce:        cloneSingle(b.Sauce),
		Garnish:      cloneSingle(b.Garnish),
	}
}

// CartItem wraps a finalized bowl with quantity and the price/weight
// snapshot taken at add time. CurrentPrice may drift from the snapshot
// as live ingredient prices change; drift is detected by the cart
// validator, never silently corrected.
type CartItem struct {
	ID                 string    `json:"id"`
	Bowl               Bowl      `json:"bowl"`
	Quantity           int       `json:"quantity"`
	OriginalPriceCents int       `json:"originalPriceCents"`
	OriginalWeight     int       `json:"originalWeightGrams"`
	AddedAt            time.Time `json:"addedAt"`
}

// NewCartItem snapshots bowl into a cart item at the current prices.
func NewCartItem(id string, bowl Bowl, quantity int, addedAt time.Time) CartItem {
	if quantity < 1 {
		quantity = 1
	}
	snapshot := bowl.Clone()
	return CartItem{
		ID:                 id,
		Bowl:               snapshot,
		Quantity:           quantity,
		OriginalPriceCents: snapshot.TotalPriceCents(),
		OriginalWeight:     snapshot.TotalWeight(),
		AddedAt:            addedAt,
	}
}

// CurrentPriceCents recomputes the item price from live catalog prices.
// Ingredients missing from the catalog keep their snapshotted price.
func (ci *CartItem) CurrentPriceCents(catalog *Catalog) int {
	total := 0
	for _, ing := range ci.Bowl.Ingredients() {
		if live, ok := catalog.Lookup(ing.ID); ok {
			total += live.PriceCents
		} else {
			total += ing.PriceCents
		}
	}
	return total * ci.Quantity
}

// SnapshotPriceCents is the add-time price for the full quantity.
func (ci *CartItem) SnapshotPriceCents() int {
	return ci.OriginalPriceCents * ci.Quantity
}
