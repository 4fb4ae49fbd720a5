package validate

import (
	"fmt"
	"strings"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
)

// Limits are the numeric validation thresholds. Zero values fall back
// to the published defaults in DefaultLimits.
type Limits struct {
	MaxWeightGrams     int // hard ceiling; blocks checkout above this
	WarnWeightGrams    int // dismissible warning above this
	MinOptimalGrams    int // info nudge below this
	MaxSides           int // soft recommendation at validation time
	PriceDriftEpsCents int // tolerated snapshot-vs-live price delta per item
}

// DefaultLimits returns the product thresholds: optimal band 200-720g,
// warning to 900g, hard ceiling at 900g, three sides, one-cent drift
// tolerance.
func DefaultLimits() Limits {
	return Limits{
		MaxWeightGrams:     900,
		WarnWeightGrams:    720,
		MinOptimalGrams:    200,
		MaxSides:           3,
		PriceDriftEpsCents: 1,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxWeightGrams <= 0 {
		l.MaxWeightGrams = d.MaxWeightGrams
	}
	if l.WarnWeightGrams <= 0 {
		l.WarnWeightGrams = d.WarnWeightGrams
	}
	if l.MinOptimalGrams <= 0 {
		l.MinOptimalGrams = d.MinOptimalGrams
	}
	if l.MaxSides <= 0 {
		l.MaxSides = d.MaxSides
	}
	if l.PriceDriftEpsCents <= 0 {
		l.PriceDriftEpsCents = d.PriceDriftEpsCents
	}
	return l
}

// AvailabilityChecker resolves an ingredient's live availability at a
// location. Implementations may hit the network; the validator treats a
// checker error as a failed check, not as unavailability.
type AvailabilityChecker interface {
	Availability(ingredientID, locationID string) (menu.Availability, error)
}

// BowlValidator evaluates bowl compositions. Safe for concurrent use;
// validation never mutates the bowl.
type BowlValidator struct {
	limits Limits
}

// NewBowlValidator creates a validator with the given limits.
func NewBowlValidator(limits Limits) *BowlValidator {
	return &BowlValidator{limits: limits.withDefaults()}
}

// ClassifyWeight buckets w against the validator's thresholds.
func (v *BowlValidator) ClassifyWeight(w int) WeightClass {
	switch {
	case w > v.limits.MaxWeightGrams:
		return WeightOver
	case w > v.limits.WarnWeightGrams:
		return WeightWarning
	case w >= v.limits.MinOptimalGrams:
		return WeightOptimal
	default:
		return WeightUnder
	}
}

// Validate runs the pure checks: weight classification, required base,
// side count, allergen disclosure.
func (v *BowlValidator) Validate(bowl *menu.Bowl) Result {
	result := Result{
		TotalWeight:     bowl.TotalWeight(),
		TotalPriceCents: bowl.TotalPriceCents(),
	}
	result.WeightClass = v.ClassifyWeight(result.TotalWeight)

	if !bowl.HasBase() {
		result.Errors = append(result.Errors, Error{
			Code:     CodeBaseRequired,
			Message:  "Every bowl needs a base to hold it together",
			Blocking: true,
		})
	}

	switch result.WeightClass {
	case WeightUnder:
		if !bowl.IsEmpty() {
			result.Warnings = append(result.Warnings, Warning{
				Code:        CodeWeightUnder,
				Message:     fmt.Sprintf("Your bowl is %dg. Room for more goodness", result.TotalWeight),
				Severity:    errors.SeverityLow,
				Dismissible: true,
			})
		}
	case WeightWarning:
		result.Warnings = append(result.Warnings, Warning{
			Code:        CodeWeightWarning,
			Message:     fmt.Sprintf("Your bowl is %dg. That's a hearty one", result.TotalWeight),
			Severity:    errors.SeverityMedium,
			Dismissible: true,
			Details:     map[string]any{"weightGrams": result.TotalWeight, "maxGrams": v.limits.MaxWeightGrams},
		})
	case WeightOver:
		result.Errors = append(result.Errors, Error{
			Code:     CodeWeightExceeded,
			Message:  fmt.Sprintf("Your bowl is %dg, over the %dg limit. Remove something before checkout", result.TotalWeight, v.limits.MaxWeightGrams),
			Blocking: true,
			Details:  map[string]any{"weightGrams": result.TotalWeight, "maxGrams": v.limits.MaxWeightGrams},
		})
	}

	// Soft recommendation only; the bowl builder enforces the hard cap
	// at mutation time.
	if count := bowl.SideCount(); count > v.limits.MaxSides {
		result.Warnings = append(result.Warnings, Warning{
			Code:        CodeSideCount,
			Message:     fmt.Sprintf("%d sides selected, we recommend at most %d", count, v.limits.MaxSides),
			Severity:    errors.SeverityLow,
			Dismissible: true,
			Details:     map[string]any{"sideCount": count, "recommended": v.limits.MaxSides},
		})
	}

	// Disclosure requirement: the user must always see allergens.
	if allergens := bowl.Allergens(); len(allergens) > 0 {
		result.Warnings = append(result.Warnings, Warning{
			Code:        CodeAllergens,
			Message:     "Contains: " + strings.Join(allergens, ", "),
			Severity:    errors.SeverityLow,
			Dismissible: false,
			Details:     map[string]any{"allergens": allergens},
		})
	}

	result.finalize()
	return result
}

// ValidateAt runs Validate plus the location availability check.
// Unavailable ingredients are blocking but non-fatal (the caller can
// still edit the bowl); limited ingredients warn only. A checker
// failure produces a non-blocking error rather than guessing.
func (v *BowlValidator) ValidateAt(bowl *menu.Bowl, locationID string, checker AvailabilityChecker) Result {
	result := v.Validate(bowl)
	if checker == nil || locationID == "" {
		return result
	}

	var unavailable, limited []string
	checkFailed := false
	for _, ing := range bowl.Ingredients() {
		avail, err := checker.Availability(ing.ID, locationID)
		if err != nil {
			checkFailed = true
			continue
		}
		switch avail {
		case menu.AvailabilityNone:
			unavailable = append(unavailable, ing.Name)
		case menu.AvailabilityLimited:
			limited = append(limited, ing.Name)
		}
	}

	if len(unavailable) > 0 {
		result.Errors = append(result.Errors, Error{
			Code:     CodeUnavailable,
			Message:  "Not available here: " + strings.Join(unavailable, ", "),
			Blocking: true,
			Details:  map[string]any{"ingredients": unavailable, "locationId": locationID},
		})
	}
	if len(limited) > 0 {
		result.Warnings = append(result.Warnings, Warning{
			Code:        CodeLimited,
			Message:     "Running low: " + strings.Join(limited, ", "),
			Severity:    errors.SeverityLow,
			Dismissible: true,
			Details:     map[string]any{"ingredients": limited, "locationId": locationID},
		})
	}
	if checkFailed {
		result.Errors = append(result.Errors, Error{
			Code:     CodeAvailabilityFail,
			Message:  "Couldn't confirm ingredient availability. You can continue, checkout will re-check",
			Blocking: false,
		})
	}

	result.finalize()
	return result
}
