package validate

import (
	"fmt"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
)

// CartValidator composes the bowl validator across cart items plus
// cart-level checks.
type CartValidator struct {
	limits Limits
	bowls  *BowlValidator
}

// NewCartValidator creates a cart validator sharing the bowl limits.
func NewCartValidator(limits Limits) *CartValidator {
	limits = limits.withDefaults()
	return &CartValidator{limits: limits, bowls: NewBowlValidator(limits)}
}

// Validate runs the pure cart checks: emptiness, per-item bowl
// validation, duplicate detection.
func (v *CartValidator) Validate(items []menu.CartItem) CartResult {
	result := CartResult{ItemResults: make(map[string]Result, len(items))}

	if len(items) == 0 {
		result.Errors = append(result.Errors, Error{
			Code:     CodeCartEmpty,
			Message:  "Your cart is empty. Add a bowl first",
			Blocking: true,
		})
		result.finalize()
		return result
	}

	for i := range items {
		item := &items[i]
		itemResult := v.bowls.Validate(&item.Bowl)
		result.ItemResults[item.ID] = itemResult
		result.TotalPriceCents += item.SnapshotPriceCents()

		for _, e := range itemResult.Errors {
			e.Details = withItemDetail(e.Details, item.ID)
			result.Errors = append(result.Errors, e)
		}
		for _, w := range itemResult.Warnings {
			w.Details = withItemDetail(w.Details, item.ID)
			result.Warnings = append(result.Warnings, w)
		}
	}

	// Duplicates are informational only, never blocked.
	seen := make(map[string]string, len(items))
	for i := range items {
		sig := items[i].Bowl.Signature()
		if firstID, dup := seen[sig]; dup {
			result.Warnings = append(result.Warnings, Warning{
				Code:        CodeDuplicateItem,
				Message:     "You have two identical bowls. Bump the quantity instead?",
				Severity:    errors.SeverityLow,
				Dismissible: true,
				Details:     map[string]any{"itemId": items[i].ID, "duplicateOf": firstID},
			})
		} else {
			seen[sig] = items[i].ID
		}
	}

	result.finalize()
	return result
}

// ValidateLive runs Validate plus the live checks that need a location
// context: per-item ingredient availability and price drift against the
// current catalog. Unavailable ingredients in an already-carted item
// are a non-blocking error (the user must be allowed to edit or remove
// the item); price drift beyond the epsilon is a non-dismissible
// warning showing old vs new price.
func (v *CartValidator) ValidateLive(
	items []menu.CartItem,
	catalog *menu.Catalog,
	locationID string,
	checker AvailabilityChecker,
) CartResult {
	result := v.Validate(items)

	for i := range items {
		item := &items[i]

		if checker != nil && locationID != "" {
			var unavailable []string
			for _, ing := range item.Bowl.Ingredients() {
				avail, err := checker.Availability(ing.ID, locationID)
				if err != nil {
					result.Errors = append(result.Errors, Error{
						Code:     CodeAvailabilityFail,
						Message:  "Couldn't confirm availability for a carted bowl",
						Blocking: false,
						Details:  map[string]any{"itemId": item.ID},
					})
					break
				}
				if avail == menu.AvailabilityNone {
					unavailable = append(unavailable, ing.Name)
				}
			}
			if len(unavailable) > 0 {
				result.Errors = append(result.Errors, Error{
					Code:     CodeUnavailable,
					Message:  fmt.Sprintf("A carted bowl contains items no longer available: %v", unavailable),
					Blocking: false, // user edits or removes the item
					Details:  map[string]any{"itemId": item.ID, "ingredients": unavailable},
				})
			}
		}

		if catalog != nil {
			current := item.CurrentPriceCents(catalog)
			snapshot := item.SnapshotPriceCents()
			drift := current - snapshot
			if drift < 0 {
				drift = -drift
			}
			if drift > v.limits.PriceDriftEpsCents*item.Quantity {
				result.Warnings = append(result.Warnings, Warning{
					Code:        CodePriceDrift,
					Message:     fmt.Sprintf("Price changed since you added this bowl: %s then, %s now", formatCents(snapshot), formatCents(current)),
					Severity:    errors.SeverityMedium,
					Dismissible: false,
					Details: map[string]any{
						"itemId":        item.ID,
						"originalCents": snapshot,
						"currentCents":  current,
					},
				})
			}
		}
	}

	result.finalize()
	return result
}

func withItemDetail(details map[string]any, itemID string) map[string]any {
	if details == nil {
		details = make(map[string]any, 1)
	}
	details["itemId"] = itemID
	return details
}

func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
