package flow

// Step is one state of the ordering conversation.
type Step string

const (
	StepAuthentication Step = "authentication"
	StepRating         Step = "rating"
	StepWelcome        Step = "welcome"
	StepLocation       Step = "location-selection"
	StepTime           Step = "time-selection"
	StepOrderType      Step = "order-type-selection"
	StepCreateYourOwn  Step = "create-your-own"
	StepSignatureBowls Step = "signature-bowls"
	StepFavorites      Step = "favorites"
	StepCartReview     Step = "cart-review"
	StepCheckout       Step = "checkout"
	StepConfirmation   Step = "confirmation"
)

// transitions lists the steps reachable from each step. The rating
// step is optional: authentication goes there only when unrated prior
// orders exist, and it always exits to welcome.
var transitions = map[Step][]Step{
	StepAuthentication: {StepRating, StepWelcome},
	StepRating:         {StepWelcome},
	StepWelcome:        {StepLocation},
	StepLocation:       {StepTime},
	StepTime:           {StepOrderType},
	StepOrderType:      {StepCreateYourOwn, StepSignatureBowls, StepFavorites},
	StepCreateYourOwn:  {StepCartReview},
	StepSignatureBowls: {StepCartReview},
	StepFavorites:      {StepCartReview},
	StepCartReview:     {StepCheckout},
	StepCheckout:       {StepConfirmation},
	StepConfirmation:   {StepWelcome},
}

// bowlBuildSteps are the steps where a bowl is under construction;
// leaving one for cart review engages the bowl validator guard.
var bowlBuildSteps = map[Step]bool{
	StepCreateYourOwn:  true,
	StepSignatureBowls: true,
	StepFavorites:      true,
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// canReach reports whether the table allows from -> to. Returning to
// authentication is always allowed: expiry and logout force it from
// any step.
func canReach(from, to Step) bool {
	if to == StepAuthentication {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
