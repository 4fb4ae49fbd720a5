package validate

import "github.com/jrkphani/heybo-engine/errors"

// Validation codes surfaced to the presentation layer.
const (
	CodeBaseRequired     = "BASE_REQUIRED"
	CodeWeightUnder      = "WEIGHT_UNDER"
	CodeWeightWarning    = "WEIGHT_WARNING"
	CodeWeightExceeded   = "WEIGHT_EXCEEDED"
	CodeSideCount        = "SIDE_COUNT"
	CodeAllergens        = "ALLERGEN_DISCLOSURE"
	CodeUnavailable      = "INGREDIENT_UNAVAILABLE"
	CodeLimited          = "INGREDIENT_LIMITED"
	CodeCartEmpty        = "CART_EMPTY"
	CodeDuplicateItem    = "DUPLICATE_ITEM"
	CodePriceDrift       = "PRICE_DRIFT"
	CodeAvailabilityFail = "AVAILABILITY_CHECK_FAILED"
)

// WeightClass buckets a bowl's total weight.
type WeightClass string

const (
	// WeightUnder is below the optimal band; info-level nudge.
	WeightUnder WeightClass = "under"
	// WeightOptimal needs no comment.
	WeightOptimal WeightClass = "optimal"
	// WeightWarning is heavy but allowed; dismissible warning.
	WeightWarning WeightClass = "warning"
	// WeightOver exceeds the hard ceiling; blocks checkout, not editing.
	WeightOver WeightClass = "over"
)

// Warning is advisory. Dismissible warnings can be cleared by the user;
// non-dismissible ones (allergen disclosure, price drift) stay visible.
type Warning struct {
	Code        string          `json:"code"`
	Message     string          `json:"message"`
	Severity    errors.Severity `json:"severity"`
	Dismissible bool            `json:"dismissible"`
	Details     map[string]any  `json:"details,omitempty"`
}

// Error is a validation failure. Blocking errors prevent the flow from
// advancing; non-blocking ones let the user proceed after acknowledging.
type Error struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Blocking bool           `json:"blocking"`
	Details  map[string]any `json:"details,omitempty"`
}

// Result is one validation pass over a bowl.
type Result struct {
	IsValid         bool        `json:"isValid"`
	CanProceed      bool        `json:"canProceed"`
	Warnings        []Warning   `json:"warnings"`
	Errors          []Error     `json:"errors"`
	TotalWeight     int         `json:"totalWeight"`
	TotalPriceCents int         `json:"totalPrice"`
	WeightClass     WeightClass `json:"weightClass"`
}

// finalize derives IsValid and CanProceed from the collected errors.
// CanProceed is true when valid or when every error is non-blocking.
func (r *Result) finalize() {
	r.IsValid = len(r.Errors) == 0
	r.CanProceed = true
	for _, e := range r.Errors {
		if e.Blocking {
			r.CanProceed = false
			break
		}
	}
}

// HasError reports whether the result carries code.
func (r *Result) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarning reports whether the result carries code.
func (r *Result) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// CartResult is one validation pass over a cart.
type CartResult struct {
	IsValid         bool              `json:"isValid"`
	CanCheckout     bool              `json:"canCheckout"`
	Warnings        []Warning         `json:"warnings"`
	Errors          []Error           `json:"errors"`
	TotalPriceCents int               `json:"totalPrice"`
	ItemResults     map[string]Result `json:"itemResults,omitempty"`
}

func (r *CartResult) finalize() {
	r.IsValid = len(r.Errors) == 0
	r.CanCheckout = true
	for _, e := range r.Errors {
		if e.Blocking {
			r.CanCheckout = false
			break
		}
	}
}

// HasError reports whether the cart result carries code.
func (r *CartResult) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarning reports whether the cart result carries code.
func (r *CartResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
