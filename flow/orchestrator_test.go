package flow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkphani/heybo-engine/config"
	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/rating"
	"github.com/jrkphani/heybo-engine/recommend"
	"github.com/jrkphani/heybo-engine/recovery"
	"github.com/jrkphani/heybo-engine/session"
	"github.com/jrkphani/heybo-engine/storage"
	"github.com/jrkphani/heybo-engine/validate"
)

type stubLocations struct {
	open bool
	err  error
}

func (s stubLocations) IsOpen(string, time.Time) (bool, error) {
	return s.open, s.err
}

type fixture struct {
	orch     *Orchestrator
	fake     *clock.Fake
	recovery *recovery.Manager
	sessions *session.Manager
	ratings  *rating.Service
	catalog  *menu.Catalog
}

func testCatalog(t *testing.T) *menu.Catalog {
	t.Helper()
	ingredients := []menu.Ingredient{
		{ID: "grain-quinoa", Name: "Quinoa", Category: menu.CategoryBase, WeightGrams: 140, PriceCents: 350, Available: true},
		{ID: "protein-chicken", Name: "Roast Chicken", Category: menu.CategoryProtein, WeightGrams: 120, PriceCents: 550, Available: true},
		{ID: "side-corn", Name: "Charred Corn", Category: menu.CategorySide, WeightGrams: 80, PriceCents: 150, Available: true},
		{ID: "side-pumpkin", Name: "Roast Pumpkin", Category: menu.CategorySide, WeightGrams: 80, PriceCents: 150, Available: true},
		{ID: "side-slaw", Name: "Purple Slaw", Category: menu.CategorySide, WeightGrams: 60, PriceCents: 120, Available: true},
		{ID: "side-edamame", Name: "Edamame", Category: menu.CategorySide, WeightGrams: 60, PriceCents: 140, Available: true},
		{ID: "sauce-goddess", Name: "Green Goddess", Category: menu.CategorySauce, WeightGrams: 30, PriceCents: 80, Available: true},
	}
	signatures := []menu.SignatureBowl{
		{ID: "sig-protein", Name: "Protein Power", IngredientIDs: []string{"grain-quinoa", "protein-chicken", "side-corn"}, Popularity: 40},
	}
	catalog, err := menu.NewCatalog(ingredients, signatures)
	require.NoError(t, err)
	return catalog
}

func newFixture(t *testing.T, locations LocationChecker) *fixture {
	t.Helper()
	fake := clock.NewFake(time.Unix(1_700_000_000, 0).UTC())
	store := storage.NewMemory()
	rec := recovery.NewManager(fake, nil, nil)
	sessions := session.NewManager(fake, session.NewRepository(store), rec, nil, nil, config.SessionConfig{
		Duration:         24 * time.Hour,
		WarningThreshold: 5 * time.Minute,
		AutoExtend:       true,
	})
	catalog := testCatalog(t)
	ratings := rating.NewService(rating.NewStore(store),
		rating.SubmitterFunc(func(context.Context, rating.Rating) error { return nil }),
		rec, nil, nil, fake)

	orch, err := NewOrchestrator(Deps{
		Sessions:  sessions,
		Recovery:  rec,
		Bowls:     validate.NewBowlValidator(validate.Limits{}),
		Carts:     validate.NewCartValidator(validate.Limits{}),
		Ratings:   ratings,
		Catalog:   catalog,
		Locations: locations,
		Sched:     fake,
	})
	require.NoError(t, err)
	return &fixture{orch: orch, fake: fake, recovery: rec, sessions: sessions, ratings: ratings, catalog: catalog}
}

func advanceToBuild(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))
	require.NoError(t, f.orch.Transition(ctx, StepLocation))
	require.NoError(t, f.orch.SelectLocation(ctx, "loc-raffles"))
	require.NoError(t, f.orch.SelectTime(ctx, "12:30"))
	require.NoError(t, f.orch.Transition(ctx, StepCreateYourOwn))
}

func TestFullOrderingFlow(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	advanceToBuild(t, f)
	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))
	require.NoError(t, f.orch.AddIngredient(ctx, "protein-chicken"))
	require.NoError(t, f.orch.AddIngredient(ctx, "side-corn"))

	item, err := f.orch.AddToCart(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 340, item.OriginalWeight)

	require.NoError(t, f.orch.Transition(ctx, StepCartReview))
	require.NoError(t, f.orch.Transition(ctx, StepCheckout))

	orderID, err := f.orch.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)
	assert.Equal(t, StepConfirmation, f.orch.Current())

	// The order awaits a rating on the next visit and the cart is empty.
	assert.True(t, f.ratings.HasPending(ctx))
	state := f.orch.State(ctx)
	assert.Empty(t, state.Cart)
	assert.Nil(t, state.CurrentBowl)

	// Confirmation loops back to welcome for the next order.
	require.NoError(t, f.orch.Transition(ctx, StepWelcome))
}

func TestTransition_RefusesUnknownEdges(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()
	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))

	err := f.orch.Transition(ctx, StepCheckout)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	err = f.orch.Transition(ctx, Step("teleport"))
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestCartReviewGuard_BlocksBowlWithoutBase(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	advanceToBuild(t, f)
	require.NoError(t, f.orch.AddIngredient(ctx, "side-corn"))

	err := f.orch.Transition(ctx, StepCartReview)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	assert.Equal(t, StepCreateYourOwn, f.orch.Current())

	// The blocking validation error went through the recovery manager.
	var found bool
	for _, e := range f.recovery.ActiveErrors() {
		if e.Code == validate.CodeBaseRequired {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckoutGuard_BlocksEmptyCart(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	advanceToBuild(t, f)
	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))
	_, err := f.orch.AddToCart(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.orch.Transition(ctx, StepCartReview))
	require.NoError(t, f.orch.RemoveCartItem(ctx, mustOnlyCartItem(t, f).ID))

	err = f.orch.Transition(ctx, StepCheckout)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	assert.Equal(t, StepCartReview, f.orch.Current())
}

func mustOnlyCartItem(t *testing.T, f *fixture) menu.CartItem {
	t.Helper()
	rec, err := f.sessions.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Cart, 1)
	return rec.Cart[0]
}

func TestAddToCart_RequiresWorkingBowl(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	advanceToBuild(t, f)

	_, err := f.orch.AddToCart(context.Background(), 1)
	assert.Error(t, err)
}

func TestSideCap_RefusesFourthSide(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()
	advanceToBuild(t, f)

	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))
	require.NoError(t, f.orch.AddIngredient(ctx, "side-corn"))
	require.NoError(t, f.orch.AddIngredient(ctx, "side-pumpkin"))
	require.NoError(t, f.orch.AddIngredient(ctx, "side-slaw"))

	err := f.orch.AddIngredient(ctx, "side-edamame")
	assert.ErrorIs(t, err, errors.ErrSideCapReached)
}

func TestRemoveIngredient_NotInBowlIsRefused(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()
	advanceToBuild(t, f)
	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))

	err := f.orch.RemoveIngredient(ctx, "side-corn")
	assert.ErrorIs(t, err, errors.ErrIngredientUnknown)

	require.NoError(t, f.orch.RemoveIngredient(ctx, "grain-quinoa"))
	// A second removal of the same ingredient finds nothing.
	assert.ErrorIs(t, f.orch.RemoveIngredient(ctx, "grain-quinoa"), errors.ErrIngredientUnknown)
}

func TestState_CurrentBowlIsIndependentSnapshot(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()
	advanceToBuild(t, f)
	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))

	state := f.orch.State(ctx)
	require.NotNil(t, state.CurrentBowl)
	state.CurrentBowl.Base = nil

	// Mutating the snapshot must not reach the working bowl.
	result := f.orch.ValidateBowl()
	assert.True(t, result.CanProceed)
	assert.Equal(t, 140, result.TotalWeight)
}

func TestGoBack_PopsHistory(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))
	require.NoError(t, f.orch.Transition(ctx, StepLocation))
	require.Equal(t, StepLocation, f.orch.Current())

	require.NoError(t, f.orch.GoBack(ctx))
	assert.Equal(t, StepWelcome, f.orch.Current())

	require.NoError(t, f.orch.GoBack(ctx))
	assert.Equal(t, StepAuthentication, f.orch.Current())

	assert.ErrorIs(t, f.orch.GoBack(ctx), errors.ErrInvalidTransition)
}

func TestSelectLocation_ClosedKeepsStep(t *testing.T) {
	f := newFixture(t, stubLocations{open: false})
	ctx := context.Background()

	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))
	require.NoError(t, f.orch.Transition(ctx, StepLocation))

	err := f.orch.SelectLocation(ctx, "loc-raffles")
	require.Error(t, err)
	assert.Equal(t, StepLocation, f.orch.Current())

	active := f.recovery.ActiveErrors()
	require.Len(t, active, 1)
	assert.Equal(t, "LOCATION_CLOSED", active[0].Code)
	assert.Equal(t, errors.SeverityMedium, active[0].Severity)
}

func TestSelectLocation_CheckFailureKeepsStep(t *testing.T) {
	f := newFixture(t, stubLocations{err: fmt.Errorf("hours api 500")})
	ctx := context.Background()

	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))
	require.NoError(t, f.orch.Transition(ctx, StepLocation))

	require.Error(t, f.orch.SelectLocation(ctx, "loc-raffles"))
	assert.Equal(t, StepLocation, f.orch.Current())
	require.Len(t, f.recovery.ActiveErrors(), 1)
	assert.Equal(t, "LOCATION_CHECK_FAILED", f.recovery.ActiveErrors()[0].Code)
}

func TestSessionExpiry_ForcesAuthenticationAndClearsMemory(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	advanceToBuild(t, f)
	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))
	_, err := f.orch.AddToCart(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.orch.AddIngredient(ctx, "grain-quinoa"))

	f.fake.Advance(25 * time.Hour)

	assert.Equal(t, StepAuthentication, f.orch.Current())
	state := f.orch.State(ctx)
	assert.Empty(t, state.Cart)
	assert.Nil(t, state.CurrentBowl)

	assert.ErrorIs(t, f.orch.GoBack(ctx), errors.ErrInvalidTransition)
}

func TestRatingStep_EnteredOnlyWithPendingOrders(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	require.NoError(t, f.ratings.RecordOrder(ctx, "order-1"))
	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))
	assert.Equal(t, StepRating, f.orch.Current())

	// Rating always exits to welcome.
	require.NoError(t, f.orch.Transition(ctx, StepWelcome))
	assert.Equal(t, StepWelcome, f.orch.Current())
}

func TestStartSignatureBowl_LoadsComposition(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	ctx := context.Background()

	require.NoError(t, f.orch.Authenticate(ctx, session.User{Type: session.UserGuest}))
	require.NoError(t, f.orch.Transition(ctx, StepLocation))
	require.NoError(t, f.orch.SelectLocation(ctx, "loc-raffles"))
	require.NoError(t, f.orch.SelectTime(ctx, "12:30"))

	require.NoError(t, f.orch.StartSignatureBowl(ctx, "sig-protein"))
	assert.Equal(t, StepSignatureBowls, f.orch.Current())

	state := f.orch.State(ctx)
	require.NotNil(t, state.CurrentBowl)
	assert.Equal(t, "grain-quinoa", state.CurrentBowl.Base.ID)

	result := f.orch.ValidateBowl()
	assert.True(t, result.CanProceed)
}

func TestRecommendations_FallbackRaisesSyncWarning(t *testing.T) {
	f := newFixture(t, stubLocations{open: true})
	fake := f.fake

	resolver := recommend.NewResolver(
		recommend.SourceFunc(func(context.Context, recommend.Query) ([]recommend.Item, float64, error) {
			return nil, 0, fmt.Errorf("model down")
		}),
		f.catalog, f.recovery, nil, nil, fake, recommend.Options{})
	f.orch.recommender = resolver

	result := f.orch.Recommendations(context.Background(), recommend.Query{})
	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.Recommendations)

	state := f.orch.State(context.Background())
	require.Len(t, state.Warnings, 1)
	assert.Equal(t, session.WarningSync, state.Warnings[0].Type)
	assert.Equal(t, errors.ActionAcceptFallback, state.Warnings[0].Actions[0].ID)

	f.orch.DismissWarning(session.WarningSync)
	assert.Empty(t, f.orch.State(context.Background()).Warnings)
}
