package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/staysearch/unit-index/internal/cache"
	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/relax"
	"github.com/staysearch/unit-index/internal/store"
	pkglog "github.com/staysearch/unit-index/pkg/log"
)

// Config tunes the search engine.
type Config struct {
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

func (c Config) withDefaults() Config {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	return c
}

// Engine runs searches against the index store. A failing store degrades
// to an empty result instead of an error; only invalid input errors out.
type Engine struct {
	store store.IndexStore
	cache cache.ResultCache
	relax relax.Options
	cfg   Config

	sf singleflight.Group
}

// NewEngine builds an engine. cache may be nil to disable result caching.
func NewEngine(st store.IndexStore, rc cache.ResultCache, opts relax.Options, cfg Config) *Engine {
	if opts.MinResults <= 0 {
		opts.MinResults = relax.Defaults().MinResults
	}
	return &Engine{
		store: st,
		cache: rc,
		relax: opts,
		cfg:   cfg.withDefaults(),
	}
}

// SearchUnits runs one unit search at the requested strictness.
func (e *Engine) SearchUnits(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req = e.normalize(req)

	start := time.Now()
	key := requestKey("units", req)

	if e.cache != nil {
		if cached, err := e.cache.GetUnits(ctx, key); err == nil {
			cached.ElapsedMs = time.Since(start).Milliseconds()
			return cached, nil
		}
	}

	v, err, _ := e.sf.Do(key, func() (any, error) {
		return e.searchUnitsUncached(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	shared := v.(*domain.SearchResult)

	if e.cache != nil && !shared.Degraded {
		if err := e.cache.SetUnits(ctx, key, shared, e.cfg.CacheTTL); err != nil {
			pkglog.Ctx(ctx).Debug().Err(err).Msg("search result cache write failed")
		}
	}

	// collapsed callers each get their own copy to annotate
	result := *shared
	result.ElapsedMs = time.Since(start).Milliseconds()
	return &result, nil
}

func (e *Engine) searchUnitsUncached(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	units, err := e.collectUnits(ctx, req)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Msg("search degraded: index store unavailable")
		return &domain.SearchResult{
			Units:    []domain.UnitSummary{},
			Page:     req.Page,
			PageSize: req.PageSize,
			Degraded: true,
		}, nil
	}

	sortUnits(units, req.Sort)

	return &domain.SearchResult{
		Units:    paginate(units, req.Page, req.PageSize),
		Total:    len(units),
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// collectUnits resolves, filters and prices every matching unit. It is the
// shared core of the unit and property searches.
func (e *Engine) collectUnits(ctx context.Context, req *domain.SearchRequest) ([]domain.UnitSummary, error) {
	var stays map[string]store.UnitStay
	if req.Dated() {
		var err error
		stays, err = e.store.StayQuery(ctx, *req.CheckIn, *req.CheckOut)
		if err != nil {
			return nil, err
		}
	}

	ids, err := e.candidateIDs(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.UnitSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = store.UnitKey(id)
	}
	values, err := e.store.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	nights := req.StayNights()
	units := make([]domain.UnitSummary, 0, len(values))
	for i, raw := range values {
		if raw == "" {
			continue
		}
		var doc domain.UnitDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			pkglog.Ctx(ctx).Warn().Str(pkglog.FieldUnitID, ids[i]).Err(err).Msg("skipping unreadable unit document")
			continue
		}

		stay, hasStay := stays[doc.UnitID]
		if hasStay && stay.Blocked {
			continue
		}
		if !matchUnit(&doc, req) {
			continue
		}

		total := doc.BasePrice
		if req.Dated() {
			total = stay.PriceSum + float64(nights-stay.PricedNights)*doc.BasePrice
		}
		if req.MinPrice != nil && total < *req.MinPrice {
			continue
		}
		if req.MaxPrice != nil && total > *req.MaxPrice {
			continue
		}

		units = append(units, domain.UnitSummary{
			UnitID:       doc.UnitID,
			PropertyID:   doc.PropertyID,
			Name:         doc.Name,
			PropertyName: doc.PropertyName,
			City:         doc.City,
			BasePrice:    doc.BasePrice,
			TotalPrice:   total,
			Currency:     doc.Currency,
			Capacity:     doc.Capacity,
			Rating:       doc.Rating,
			StarRating:   doc.StarRating,
			Featured:     doc.Featured,
		})
	}
	return units, nil
}

// candidateIDs narrows the candidate set with the cheapest secondary index
// available: city sets, then unit-type sets, then the full unit index.
func (e *Engine) candidateIDs(ctx context.Context, req *domain.SearchRequest) ([]string, error) {
	switch {
	case req.City != "":
		cities := append([]string{req.City}, req.AdjacentCities...)
		keys := make([]string, len(cities))
		for i, c := range cities {
			keys[i] = store.UnitsByCityKey(c)
		}
		return e.unionSets(ctx, keys)

	case len(req.UnitTypeIDs) > 0:
		keys := make([]string, len(req.UnitTypeIDs))
		for i, t := range req.UnitTypeIDs {
			keys[i] = store.UnitsByTypeKey(t)
		}
		return e.unionSets(ctx, keys)

	default:
		return e.store.SMembers(ctx, store.UnitsAllKey)
	}
}

func (e *Engine) unionSets(ctx context.Context, keys []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, key := range keys {
		members, err := e.store.SMembers(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// SearchPropertiesWithUnits groups every matching unit under its property
// and pages over the resulting roll-ups.
func (e *Engine) SearchPropertiesWithUnits(ctx context.Context, req *domain.SearchRequest) (*domain.PropertyResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req = e.normalize(req)

	start := time.Now()
	key := requestKey("properties", req)

	if e.cache != nil {
		if cached, err := e.cache.GetProperties(ctx, key); err == nil {
			cached.ElapsedMs = time.Since(start).Milliseconds()
			return cached, nil
		}
	}

	units, err := e.collectUnits(ctx, req)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Msg("property search degraded: index store unavailable")
		return &domain.PropertyResult{
			Properties: []domain.PropertySummary{},
			Page:       req.Page,
			PageSize:   req.PageSize,
			ElapsedMs:  time.Since(start).Milliseconds(),
			Degraded:   true,
		}, nil
	}

	sortUnits(units, req.Sort)

	byProperty := make(map[string]*domain.PropertySummary)
	var order []string
	for _, u := range units {
		p, ok := byProperty[u.PropertyID]
		if !ok {
			p = &domain.PropertySummary{
				PropertyID:   u.PropertyID,
				PropertyName: u.PropertyName,
				City:         u.City,
				MinPrice:     u.TotalPrice,
				MaxPrice:     u.TotalPrice,
				Rating:       u.Rating,
			}
			byProperty[u.PropertyID] = p
			order = append(order, u.PropertyID)
		}
		if u.TotalPrice < p.MinPrice {
			p.MinPrice = u.TotalPrice
		}
		if u.TotalPrice > p.MaxPrice {
			p.MaxPrice = u.TotalPrice
		}
		if u.Rating > p.Rating {
			p.Rating = u.Rating
		}
		p.Units = append(p.Units, u)
	}

	props := make([]domain.PropertySummary, 0, len(order))
	for _, id := range order {
		props = append(props, *byProperty[id])
	}
	sortProperties(props, req.Sort)

	result := &domain.PropertyResult{
		Properties: paginate(props, req.Page, req.PageSize),
		Total:      len(props),
		Page:       req.Page,
		PageSize:   req.PageSize,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}

	if e.cache != nil {
		if err := e.cache.SetProperties(ctx, key, result, e.cfg.CacheTTL); err != nil {
			pkglog.Ctx(ctx).Debug().Err(err).Msg("property result cache write failed")
		}
	}
	return result, nil
}

// SearchUnitsRelaxed widens the request level by level until enough results
// come back or the levels run out. Each level is derived from the caller's
// original request, never from the previous level's output.
func (e *Engine) SearchUnitsRelaxed(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	level := relax.Exact
	for {
		relaxed, applied := relax.Apply(req, level, e.relax)

		result, err := e.SearchUnits(ctx, relaxed)
		if err != nil {
			return nil, err
		}
		result.RelaxationLevel = level.String()
		result.Relaxations = applied

		if result.Total >= e.relax.MinResults {
			return result, nil
		}
		next, ok := relax.Next(level)
		if !ok {
			return result, nil
		}

		pkglog.Ctx(ctx).Debug().
			Str("level", level.String()).
			Int("total", result.Total).
			Int("min_results", e.relax.MinResults).
			Msg("relaxing search")
		level = next
	}
}

func (e *Engine) normalize(req *domain.SearchRequest) *domain.SearchRequest {
	out := req.Clone()
	if out.Page < 1 {
		out.Page = 1
	}
	if out.PageSize <= 0 {
		out.PageSize = e.cfg.DefaultPageSize
	}
	if out.PageSize > e.cfg.MaxPageSize {
		out.PageSize = e.cfg.MaxPageSize
	}
	return out
}

func validateRequest(req *domain.SearchRequest) error {
	if req == nil {
		return domain.ErrInvalidArgument
	}
	if (req.CheckIn == nil) != (req.CheckOut == nil) {
		return domain.ErrInvalidArgument
	}
	if req.Dated() && !req.CheckOut.After(*req.CheckIn) {
		return domain.ErrInvalidArgument
	}
	return nil
}

// requestKey derives a stable cache and collapse key from the request.
func requestKey(kind string, req *domain.SearchRequest) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return kind + ":" + hex.EncodeToString(sum[:16])
}
