package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/metric"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/rating"
	"github.com/jrkphani/heybo-engine/recommend"
	"github.com/jrkphani/heybo-engine/recovery"
	"github.com/jrkphani/heybo-engine/session"
	"github.com/jrkphani/heybo-engine/validate"
)

// LocationChecker answers whether a store location can take orders.
type LocationChecker interface {
	IsOpen(locationID string, at time.Time) (bool, error)
}

// Deps wires the orchestrator. Sessions, Recovery, and Catalog are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Sessions     *session.Manager
	Recovery     *recovery.Manager
	Bowls        *validate.BowlValidator
	Carts        *validate.CartValidator
	Recommender  *recommend.Resolver
	Ratings      *rating.Service
	Catalog      *menu.Catalog
	Locations    LocationChecker
	Availability validate.AvailabilityChecker
	Metrics      *metric.Metrics
	Logger       *slog.Logger
	Sched        clock.Scheduler
}

// Orchestrator drives the ordering conversation. All mutating methods
// serialize on one mutex; snapshots are copies.
type Orchestrator struct {
	mu         sync.Mutex
	current    Step
	history    []Step
	bowl       menu.Bowl
	bowlActive bool
	locationID string
	warnings   []session.Warning

	sessions     *session.Manager
	recovery     *recovery.Manager
	bowls        *validate.BowlValidator
	carts        *validate.CartValidator
	recommender  *recommend.Resolver
	ratings      *rating.Service
	catalog      *menu.Catalog
	locations    LocationChecker
	availability validate.AvailabilityChecker
	metrics      *metric.Metrics
	logger       *slog.Logger
	sched        clock.Scheduler
}

// NewOrchestrator builds the flow starting at authentication and
// subscribes to session warnings and expiry.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Sessions == nil || deps.Recovery == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("flow: sessions, recovery, and catalog are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Sched == nil {
		deps.Sched = clock.NewSystem()
	}
	if deps.Bowls == nil {
		deps.Bowls = validate.NewBowlValidator(validate.Limits{})
	}
	if deps.Carts == nil {
		deps.Carts = validate.NewCartValidator(validate.Limits{})
	}

	o := &Orchestrator{
		current:      StepAuthentication,
		sessions:     deps.Sessions,
		recovery:     deps.Recovery,
		bowls:        deps.Bowls,
		carts:        deps.Carts,
		recommender:  deps.Recommender,
		ratings:      deps.Ratings,
		catalog:      deps.Catalog,
		locations:    deps.Locations,
		availability: deps.Availability,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		sched:        deps.Sched,
	}
	o.sessions.OnWarning(o.onSessionWarning)
	o.sessions.OnExpiry(o.onSessionExpiry)
	return o, nil
}

// Current returns the step the flow is on.
func (o *Orchestrator) Current() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Authenticate starts a session for user and advances to the rating
// step when unrated prior orders exist, otherwise to welcome. A
// session conflict is returned to the caller unresolved; KeepThisDevice
// is the replace resolution.
func (o *Orchestrator) Authenticate(ctx context.Context, user session.User) error {
	if _, err := o.sessions.Create(ctx, user); err != nil {
		return err
	}
	return o.afterAuthentication(ctx)
}

// KeepThisDevice resolves a session conflict in favor of this device,
// replacing the other session.
func (o *Orchestrator) KeepThisDevice(ctx context.Context, user session.User) error {
	if _, err := o.sessions.ForceCreate(ctx, user); err != nil {
		return err
	}
	o.DismissWarning(session.WarningConflict)
	return o.afterAuthentication(ctx)
}

func (o *Orchestrator) afterAuthentication(ctx context.Context) error {
	next := StepWelcome
	if o.ratings != nil && o.ratings.HasPending(ctx) {
		next = StepRating
	}
	return o.Transition(ctx, next)
}

// Transition moves the flow to target, enforcing the table and the
// guarded edges. The prior step is pushed onto the history stack.
func (o *Orchestrator) Transition(ctx context.Context, target Step) error {
	if !target.Valid() {
		return errors.Wrap(errors.ErrInvalidTransition, "flow", "Transition",
			fmt.Sprintf("unknown step %q", target))
	}

	o.mu.Lock()
	from := o.current
	o.mu.Unlock()

	if !canReach(from, target) {
		return errors.Wrap(errors.ErrInvalidTransition, "flow", "Transition",
			fmt.Sprintf("no edge %s to %s", from, target))
	}
	// Guards run outside the flow lock: they read session state, and a
	// session expiry detected there re-enters the orchestrator.
	if err := o.guard(ctx, from, target); err != nil {
		return err
	}

	o.mu.Lock()
	if o.current != from {
		// The flow moved while the guard ran (an expiry reset it).
		moved := o.current
		o.mu.Unlock()
		return errors.Wrap(errors.ErrInvalidTransition, "flow", "Transition",
			fmt.Sprintf("flow moved from %s to %s during guard", from, moved))
	}
	o.history = append(o.history, from)
	o.current = target
	o.mu.Unlock()

	o.afterTransition(ctx, from, target)
	return nil
}

// GoBack pops the history stack. Guards do not apply to backward
// navigation.
func (o *Orchestrator) GoBack(ctx context.Context) error {
	o.mu.Lock()
	if len(o.history) == 0 {
		o.mu.Unlock()
		return errors.Wrap(errors.ErrInvalidTransition, "flow", "GoBack", "history empty")
	}
	from := o.current
	target := o.history[len(o.history)-1]
	o.history = o.history[:len(o.history)-1]
	o.current = target
	o.mu.Unlock()

	o.afterTransition(ctx, from, target)
	return nil
}

// Reset returns the flow to welcome with no history, keeping the
// session alive.
func (o *Orchestrator) Reset(ctx context.Context) {
	o.mu.Lock()
	from := o.current
	o.current = StepWelcome
	o.history = nil
	o.bowl = menu.Bowl{}
	o.bowlActive = false
	o.mu.Unlock()

	o.afterTransition(ctx, from, StepWelcome)
}

// Logout destroys the session and returns to authentication with no
// history.
func (o *Orchestrator) Logout(ctx context.Context) error {
	err := o.sessions.Logout(ctx)

	o.mu.Lock()
	from := o.current
	o.current = StepAuthentication
	o.history = nil
	o.bowl = menu.Bowl{}
	o.bowlActive = false
	o.warnings = nil
	o.mu.Unlock()

	o.metrics.IncStepTransition(string(from), string(StepAuthentication))
	return err
}

// SelectLocation checks the location's operating hours and advances to
// time selection. A failed check is a medium, non-fatal error; the
// flow stays on location selection.
func (o *Orchestrator) SelectLocation(ctx context.Context, locationID string) error {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()
	if current != StepLocation {
		return errors.Wrap(errors.ErrInvalidTransition, "flow", "SelectLocation",
			fmt.Sprintf("on step %s", current))
	}

	if o.locations != nil {
		open, err := o.locations.IsOpen(locationID, o.sched.Now())
		if err != nil {
			o.recovery.CreateError(errors.CategoryOrdering, "LOCATION_CHECK_FAILED",
				err.Error(), "We couldn't confirm this location's hours",
				errors.SeverityMedium, map[string]any{"locationId": locationID})
			return errors.WrapAs(errors.CategoryOrdering, err, "flow", "SelectLocation", "check hours")
		}
		if !open {
			o.recovery.CreateError(errors.CategoryOrdering, "LOCATION_CLOSED",
				fmt.Sprintf("location %s closed", locationID),
				"This location isn't taking orders right now",
				errors.SeverityMedium, map[string]any{"locationId": locationID})
			return errors.WrapAs(errors.CategoryOrdering,
				fmt.Errorf("location %s is closed", locationID),
				"flow", "SelectLocation", "check hours")
		}
	}

	o.mu.Lock()
	o.locationID = locationID
	o.mu.Unlock()

	if err := o.sessions.AppendSelection(ctx, "location-selected", locationID); err != nil {
		o.logger.Warn("failed to record location selection", "error", err)
	}
	return o.Transition(ctx, StepTime)
}

// SelectTime records the pickup slot and advances to order-type
// selection.
func (o *Orchestrator) SelectTime(ctx context.Context, slot string) error {
	if o.Current() != StepTime {
		return errors.Wrap(errors.ErrInvalidTransition, "flow", "SelectTime",
			fmt.Sprintf("on step %s", o.Current()))
	}
	if err := o.sessions.AppendSelection(ctx, "time-selected", slot); err != nil {
		o.logger.Warn("failed to record time selection", "error", err)
	}
	return o.Transition(ctx, StepOrderType)
}

// StartSignatureBowl loads a curated bowl as the working composition
// and moves to the signature-bowls step if not already on a build step.
func (o *Orchestrator) StartSignatureBowl(ctx context.Context, signatureID string) error {
	bowl, err := o.catalog.BuildSignature(signatureID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.bowl = bowl
	o.bowlActive = true
	onBuildStep := bowlBuildSteps[o.current]
	o.mu.Unlock()

	if err := o.sessions.AppendSelection(ctx, "signature-selected", signatureID); err != nil {
		o.logger.Warn("failed to record signature selection", "error", err)
	}
	if !onBuildStep {
		return o.Transition(ctx, StepSignatureBowls)
	}
	return nil
}

// AddIngredient adds the catalog ingredient to the working bowl.
// Single-select categories replace; a fourth side is refused with
// ErrSideCapReached, which the presentation surfaces as a dismissible
// notice.
func (o *Orchestrator) AddIngredient(ctx context.Context, ingredientID string) error {
	ing, ok := o.catalog.Lookup(ingredientID)
	if !ok {
		return errors.WrapAs(errors.CategoryValidation, errors.ErrIngredientUnknown,
			"flow", "AddIngredient", fmt.Sprintf("lookup %s", ingredientID))
	}

	o.mu.Lock()
	err := o.bowl.Add(ing)
	if err == nil {
		o.bowlActive = true
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}

	if err := o.sessions.AppendSelection(ctx, "ingredient-added", ingredientID); err != nil {
		o.logger.Warn("failed to record ingredient", "error", err)
	}
	if err := o.sessions.UpdateActivity(ctx); err != nil {
		o.logger.Warn("activity update failed", "error", err)
	}
	return nil
}

// RemoveIngredient removes the ingredient from the working bowl.
func (o *Orchestrator) RemoveIngredient(ctx context.Context, ingredientID string) error {
	o.mu.Lock()
	removed := o.bowl.Remove(ingredientID)
	o.mu.Unlock()
	if !removed {
		return errors.WrapAs(errors.CategoryValidation, errors.ErrIngredientUnknown,
			"flow", "RemoveIngredient", fmt.Sprintf("remove %s from bowl", ingredientID))
	}
	if err := o.sessions.AppendSelection(ctx, "ingredient-removed", ingredientID); err != nil {
		o.logger.Warn("failed to record removal", "error", err)
	}
	return nil
}

// ValidateBowl evaluates the working bowl, with availability context
// when a location is selected.
func (o *Orchestrator) ValidateBowl() validate.Result {
	o.mu.Lock()
	bowl := o.bowl.Clone()
	locationID := o.locationID
	o.mu.Unlock()

	if locationID != "" && o.availability != nil {
		return o.bowls.ValidateAt(&bowl, locationID, o.availability)
	}
	return o.bowls.Validate(&bowl)
}

// AddToCart consumes the working bowl into a cart item. The bowl must
// pass validation with no blocking errors.
func (o *Orchestrator) AddToCart(ctx context.Context, quantity int) (menu.CartItem, error) {
	o.mu.Lock()
	bowl := o.bowl.Clone()
	active := o.bowlActive
	o.mu.Unlock()

	if !active {
		return menu.CartItem{}, errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("no bowl in progress"), "flow", "AddToCart", "check working bowl")
	}
	if result := o.bowls.Validate(&bowl); !result.CanProceed {
		return menu.CartItem{}, errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("bowl has %d blocking errors", len(result.Errors)),
			"flow", "AddToCart", "validate bowl")
	}

	item := menu.NewCartItem(uuid.NewString(), bowl, quantity, o.sched.Now())
	if _, err := o.sessions.MutateCart(ctx, func(items []menu.CartItem) ([]menu.CartItem, error) {
		return append(items, item), nil
	}); err != nil {
		return menu.CartItem{}, err
	}

	o.mu.Lock()
	o.bowl = menu.Bowl{}
	o.bowlActive = false
	o.mu.Unlock()

	if err := o.sessions.AppendSelection(ctx, "added-to-cart", item.ID); err != nil {
		o.logger.Warn("failed to record cart add", "error", err)
	}
	return item, nil
}

// RemoveCartItem deletes an item from the cart.
func (o *Orchestrator) RemoveCartItem(ctx context.Context, itemID string) error {
	_, err := o.sessions.MutateCart(ctx, func(items []menu.CartItem) ([]menu.CartItem, error) {
		kept := items[:0]
		for _, item := range items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		return kept, nil
	})
	return err
}

// ValidateCart evaluates the cart, live-checking availability and
// price drift when a location is selected.
func (o *Orchestrator) ValidateCart(ctx context.Context) (validate.CartResult, error) {
	rec, err := o.sessions.Current(ctx)
	if err != nil {
		return validate.CartResult{}, err
	}
	var items []menu.CartItem
	if rec != nil {
		items = rec.Cart
	}

	o.mu.Lock()
	locationID := o.locationID
	o.mu.Unlock()

	if locationID != "" {
		return o.carts.ValidateLive(items, o.catalog, locationID, o.availability), nil
	}
	return o.carts.Validate(items), nil
}

// PlaceOrder completes checkout: the order id is minted, the cart is
// emptied, the order is marked unrated for the next visit, and the
// flow advances to confirmation.
func (o *Orchestrator) PlaceOrder(ctx context.Context) (string, error) {
	if o.Current() != StepCheckout {
		return "", errors.Wrap(errors.ErrInvalidTransition, "flow", "PlaceOrder",
			fmt.Sprintf("on step %s", o.Current()))
	}

	orderID := uuid.NewString()
	if _, err := o.sessions.MutateCart(ctx, func([]menu.CartItem) ([]menu.CartItem, error) {
		return nil, nil
	}); err != nil {
		return "", err
	}
	if o.ratings != nil {
		if err := o.ratings.RecordOrder(ctx, orderID); err != nil {
			o.logger.Warn("failed to mark order unrated", "orderId", orderID, "error", err)
		}
	}
	if err := o.sessions.AppendSelection(ctx, "order-placed", orderID); err != nil {
		o.logger.Warn("failed to record order", "error", err)
	}
	if err := o.Transition(ctx, StepConfirmation); err != nil {
		return "", err
	}
	return orderID, nil
}

// Recommendations resolves suggestions through the fallback chain. A
// degraded tier raises a non-blocking sync warning offering to accept
// the fallback or build manually.
func (o *Orchestrator) Recommendations(ctx context.Context, q recommend.Query) recommend.Result {
	if o.recommender == nil {
		return recommend.Result{Source: recommend.SourceSignature, FallbackUsed: true}
	}
	result := o.recommender.Get(ctx, q)
	if result.FallbackUsed {
		o.pushWarning(session.Warning{
			Type:    session.WarningSync,
			Message: fmt.Sprintf("Suggestions are coming from the %s set right now", result.Source),
			Actions: []errors.RecoveryAction{
				{ID: errors.ActionAcceptFallback, Label: "Show them anyway", Primary: true},
				{ID: errors.ActionBuildManually, Label: "Build my own bowl"},
			},
		})
	}
	return result
}

// RetryError schedules a retry through the recovery manager; attempt
// re-runs the failed operation after the backoff.
func (o *Orchestrator) RetryError(id string, attempt func()) error {
	return o.recovery.RetryError(id, attempt)
}

// DismissError resolves an error state by user dismissal.
func (o *Orchestrator) DismissError(id string) bool {
	return o.recovery.DismissError(id)
}

// DismissWarning drops all warnings of the given type.
func (o *Orchestrator) DismissWarning(wtype session.WarningType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.warnings[:0]
	for _, w := range o.warnings {
		if w.Type != wtype {
			kept = append(kept, w)
		}
	}
	o.warnings = kept
}

// State snapshots the flow for the presentation layer.
func (o *Orchestrator) State(ctx context.Context) State {
	rec, _ := o.sessions.Current(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	var cart []menu.CartItem
	if rec != nil {
		cart = rec.Cart
	}
	var bowl *menu.Bowl
	if o.bowlActive {
		b := o.bowl.Clone()
		bowl = &b
	}
	return State{
		CurrentStep: o.current,
		Errors:      o.recovery.ActiveErrors(),
		Warnings:    append([]session.Warning(nil), o.warnings...),
		Cart:        cart,
		CurrentBowl: bowl,
	}
}

// guard enforces the validator gates on the cart-review and checkout
// edges. Blocking failures are surfaced through the recovery manager
// and the transition refused.
func (o *Orchestrator) guard(ctx context.Context, from, target Step) error {
	o.mu.Lock()
	bowl := o.bowl.Clone()
	bowlActive := o.bowlActive
	locationID := o.locationID
	o.mu.Unlock()

	if target == StepCartReview && bowlBuildSteps[from] && bowlActive {
		result := o.bowls.Validate(&bowl)
		if !result.CanProceed {
			o.reportBlocking(result.Errors)
			return errors.Wrap(errors.ErrInvalidTransition, "flow", "Transition",
				"bowl has blocking validation errors")
		}
	}

	if target == StepCheckout && from == StepCartReview {
		rec, err := o.sessions.Current(ctx)
		if err != nil {
			return err
		}
		var items []menu.CartItem
		if rec != nil {
			items = rec.Cart
		}
		var result validate.CartResult
		if locationID != "" {
			result = o.carts.ValidateLive(items, o.catalog, locationID, o.availability)
		} else {
			result = o.carts.Validate(items)
		}
		if !result.CanCheckout {
			o.reportBlocking(result.Errors)
			return errors.Wrap(errors.ErrInvalidTransition, "flow", "Transition",
				"cart has blocking validation errors")
		}
	}

	return nil
}

func (o *Orchestrator) reportBlocking(errs []validate.Error) {
	for _, e := range errs {
		if !e.Blocking {
			continue
		}
		o.recovery.CreateError(errors.CategoryValidation, e.Code, e.Message, e.Message,
			errors.SeverityMedium, e.Details)
	}
}

func (o *Orchestrator) afterTransition(ctx context.Context, from, target Step) {
	o.metrics.IncStepTransition(string(from), string(target))
	o.logger.Debug("flow transition", "from", from, "to", target)
	if err := o.sessions.SetStep(ctx, string(target)); err != nil {
		o.logger.Debug("step not persisted", "step", target, "error", err)
	}
}

func (o *Orchestrator) onSessionWarning(w session.Warning) {
	o.pushWarning(w)
}

// onSessionExpiry forces the flow back to authentication. In-memory
// cart and bowl state is dropped; the session manager has already
// written the durable cart backup.
func (o *Orchestrator) onSessionExpiry(sessionID string) {
	o.mu.Lock()
	from := o.current
	o.current = StepAuthentication
	o.history = nil
	o.bowl = menu.Bowl{}
	o.bowlActive = false
	o.mu.Unlock()

	o.metrics.IncStepTransition(string(from), string(StepAuthentication))
	o.logger.Info("session expired, flow reset", "sessionId", sessionID, "from", from)
}

func (o *Orchestrator) pushWarning(w session.Warning) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.warnings = append(o.warnings, w)
}
