package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/metric"
	"github.com/jrkphani/heybo-engine/pkg/cache"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/recovery"
)

// Source tier names, in resolution order.
const (
	SourcePrimary   = "primary"
	SourceCached    = "cached"
	SourcePopular   = "popular"
	SourceSignature = "signature"
)

// Tier confidence assigned when the source itself reports none.
const (
	confidencePopular   = 0.4
	confidenceSignature = 0.2
)

const (
	defaultCacheTTL = 15 * time.Minute
	defaultFetchTTL = 5 * time.Second
	maxItems        = 5
)

// Query scopes a recommendation request.
type Query struct {
	UserID          string
	DietaryFilters  []menu.DietaryTag
	AllergenFilters []string
	LocationID      string
}

// Item is one recommended bowl.
type Item struct {
	ID    string
	Name  string
	Bowl  menu.Bowl
	Score float64
}

// Result is the resolved recommendation set with its provenance.
type Result struct {
	Recommendations []Item
	Source          string
	Confidence      float64
	FallbackUsed    bool
}

// Source produces recommendations. Implementations may fail; the
// resolver absorbs the failure and falls through.
type Source interface {
	Fetch(ctx context.Context, q Query) (items []Item, confidence float64, err error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, q Query) ([]Item, float64, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, q Query) ([]Item, float64, error) {
	return f(ctx, q)
}

type cachedResult struct {
	items      []Item
	confidence float64
}

// Resolver walks the fallback chain. Safe for concurrent use.
type Resolver struct {
	primary  Source
	popular  Source // nil means derive from catalog popularity
	catalog  *menu.Catalog
	cache    *cache.TTL[cachedResult]
	recovery *recovery.Manager
	metrics  *metric.Metrics
	logger   *slog.Logger
	sched    clock.Scheduler
	timeout  time.Duration
}

// Options tunes a Resolver. Zero values take defaults.
type Options struct {
	Popular      Source        // overrides the catalog popularity baseline
	CacheTTL     time.Duration // freshness window for cached prior results
	FetchTimeout time.Duration // per-source timeout
}

// NewResolver builds the fallback chain. catalog must be non-nil; it
// backs the terminal signature tier. primary may be nil, in which case
// resolution starts at the cache.
func NewResolver(
	primary Source,
	catalog *menu.Catalog,
	rec *recovery.Manager,
	metrics *metric.Metrics,
	logger *slog.Logger,
	sched clock.Scheduler,
	opts Options,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if sched == nil {
		sched = clock.NewSystem()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTTL
	}
	return &Resolver{
		primary:  primary,
		popular:  opts.Popular,
		catalog:  catalog,
		cache:    cache.NewTTLWithClock[cachedResult](opts.CacheTTL, sched.Now),
		recovery: rec,
		metrics:  metrics,
		logger:   logger,
		sched:    sched,
		timeout:  opts.FetchTimeout,
	}
}

// Get resolves recommendations for q. It never returns an error: by
// the signature tier a usable result always exists.
func (r *Resolver) Get(ctx context.Context, q Query) Result {
	started := r.sched.Now()
	result := r.resolve(ctx, q)
	r.metrics.ObserveRecommendation(result.Source, r.sched.Now().Sub(started))
	if result.FallbackUsed {
		r.logger.Info("recommendation served from fallback tier",
			"source", result.Source, "userId", q.UserID)
	}
	return result
}

func (r *Resolver) resolve(ctx context.Context, q Query) Result {
	key := q.cacheKey()

	if r.primary != nil {
		items, confidence, err := r.fetchWithTimeout(ctx, r.primary, q)
		if err == nil && len(items) > 0 {
			r.cache.Set(key, cachedResult{items: items, confidence: confidence})
			return Result{Recommendations: clip(items), Source: SourcePrimary, Confidence: confidence}
		}
		r.reportTierFailure(SourcePrimary, q, err)
	}

	if cached, ok := r.cache.Get(key); ok {
		return Result{
			Recommendations: clip(cached.items),
			Source:          SourceCached,
			Confidence:      cached.confidence,
			FallbackUsed:    true,
		}
	}

	if r.popular != nil {
		items, confidence, err := r.fetchWithTimeout(ctx, r.popular, q)
		if err == nil && len(items) > 0 {
			if confidence <= 0 {
				confidence = confidencePopular
			}
			return Result{Recommendations: clip(items), Source: SourcePopular, Confidence: confidence, FallbackUsed: true}
		}
		r.reportTierFailure(SourcePopular, q, err)
	} else if items := r.popularFromCatalog(q); len(items) > 0 {
		return Result{Recommendations: clip(items), Source: SourcePopular, Confidence: confidencePopular, FallbackUsed: true}
	}

	return Result{
		Recommendations: clip(r.signatureSet(q)),
		Source:          SourceSignature,
		Confidence:      confidenceSignature,
		FallbackUsed:    true,
	}
}

func (r *Resolver) fetchWithTimeout(ctx context.Context, src Source, q Query) ([]Item, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	items, confidence, err := src.Fetch(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errors.ErrRequestTimeout, err)
	}
	if len(items) == 0 {
		return nil, 0, errors.ErrSourceUnavailable
	}
	return items, confidence, nil
}

func (r *Resolver) reportTierFailure(tier string, q Query, err error) {
	if err == nil {
		err = errors.ErrSourceUnavailable
	}
	if r.recovery != nil {
		r.recovery.CreateError(
			errors.CategoryML,
			"RECOMMEND_SOURCE_FAILED",
			fmt.Sprintf("%s tier: %v", tier, err),
			"Personalized suggestions are temporarily unavailable",
			errors.SeverityMedium,
			map[string]any{"tier": tier, "userId": q.UserID},
		)
	}
	r.logger.Warn("recommendation tier failed", "tier", tier, "error", err)
}

// popularFromCatalog ranks signature bowls that carry popularity data.
// Bowls without order counts stay out of this tier so the baseline
// reflects actual demand, not curation order.
func (r *Resolver) popularFromCatalog(q Query) []Item {
	all := r.catalog.SignatureBowls()
	bowls := make([]menu.SignatureBowl, 0, len(all))
	for _, b := range all {
		if b.Popularity > 0 {
			bowls = append(bowls, b)
		}
	}
	sort.SliceStable(bowls, func(i, j int) bool { return bowls[i].Popularity > bowls[j].Popularity })
	return r.buildItems(bowls, q, true)
}

// signatureSet is the terminal tier: the curated set in catalog order.
// It cannot fail; if the allergen filter would empty it, the unfiltered
// set is returned so the chain stays total.
func (r *Resolver) signatureSet(q Query) []Item {
	bowls := r.catalog.SignatureBowls()
	if items := r.buildItems(bowls, q, true); len(items) > 0 {
		return items
	}
	return r.buildItems(bowls, q, false)
}

func (r *Resolver) buildItems(bowls []menu.SignatureBowl, q Query, filter bool) []Item {
	var items []Item
	for _, def := range bowls {
		bowl, err := r.catalog.BuildSignature(def.ID)
		if err != nil {
			continue
		}
		if filter && len(q.AllergenFilters) > 0 && containsAny(bowl.Allergens(), q.AllergenFilters) {
			continue
		}
		items = append(items, Item{
			ID:    def.ID,
			Name:  def.Name,
			Bowl:  bowl,
			Score: float64(def.Popularity),
		})
	}
	return items
}

func (q Query) cacheKey() string {
	tags := make([]string, len(q.DietaryFilters))
	for i, t := range q.DietaryFilters {
		tags[i] = string(t)
	}
	sort.Strings(tags)
	allergens := append([]string(nil), q.AllergenFilters...)
	sort.Strings(allergens)
	return strings.Join([]string{q.UserID, q.LocationID, strings.Join(tags, ","), strings.Join(allergens, ",")}, "|")
}

func clip(items []Item) []Item {
	if len(items) > maxItems {
		return items[:maxItems]
	}
	return items
}

func containsAny(haystack, needles []string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}
