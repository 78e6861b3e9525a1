// Package match selects compatible, eligible, in-radius donors for a blood
// request and produces the ordered match list.
package match

import (
	"sort"

	"lifeline/internal/domain"
	"lifeline/pkg/clock"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/geo"
)

// DefaultRadiusKm bounds matching when no radius is configured.
const DefaultRadiusKm float64 = 50

// Engine turns a candidate pool into match entries. It is pure selection
// logic: persistence and notification belong to the request service.
type Engine struct {
	radiusKm float64
	clock    clock.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithRadiusKm overrides the default matching radius.
func WithRadiusKm(radiusKm float64) Option {
	return func(e *Engine) {
		if radiusKm > 0 {
			e.radiusKm = radiusKm
		}
	}
}

// WithClock injects a time source for deterministic NotifiedAt stamps.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{radiusKm: DefaultRadiusKm, clock: clock.Real{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RadiusKm exposes the configured radius for callers that report it.
func (e *Engine) RadiusKm() float64 { return e.radiusKm }

// Ranked is a candidate retained by proximity ranking.
type Ranked struct {
	Candidate  domain.DonorCandidate
	DistanceKm float64
}

// Rank filters pool to candidates with a coordinate within radiusKm of
// origin and returns them sorted by distance ascending, candidate ID as the
// tiebreak. Output is deterministic for identical input.
func Rank(origin geo.Coordinate, pool []domain.DonorCandidate, radiusKm float64) []Ranked {
	ranked := make([]Ranked, 0, len(pool))
	for _, c := range pool {
		if c.Coordinate == nil {
			continue
		}
		d := geo.DistanceKm(origin, *c.Coordinate)
		if d > radiusKm {
			continue
		}
		ranked = append(ranked, Ranked{Candidate: c, DistanceKm: d})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}
		return ranked[i].Candidate.ID < ranked[j].Candidate.ID
	})
	return ranked
}

// Match produces the match list for req from the given candidate pool.
// Candidates that are ineligible, blood-incompatible, missing a coordinate,
// or outside the radius are dropped. An empty result is not an error: the
// request simply stays pending.
func (e *Engine) Match(req *domain.BloodRequest, pool []domain.DonorCandidate) ([]domain.MatchEntry, error) {
	if req.Location == nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "blood request has no location")
	}

	compatible := make(map[domain.BloodType]bool)
	for _, t := range domain.DonorTypesFor(req.BloodType) {
		compatible[t] = true
	}

	eligible := make([]domain.DonorCandidate, 0, len(pool))
	for _, c := range pool {
		if !c.Eligible || !compatible[c.BloodType] {
			continue
		}
		eligible = append(eligible, c)
	}

	now := e.clock.Now()
	entries := make([]domain.MatchEntry, 0, len(eligible))
	seen := make(map[string]bool)
	for _, r := range Rank(*req.Location, eligible, e.radiusKm) {
		// A donor appears in the match list at most once; ranking order
		// guarantees we keep the nearest occurrence.
		if seen[r.Candidate.ID] {
			continue
		}
		seen[r.Candidate.ID] = true
		entries = append(entries, domain.MatchEntry{
			DonorID:    r.Candidate.ID,
			Status:     domain.MatchPending,
			DistanceKm: r.DistanceKm,
			NotifiedAt: now,
		})
	}
	return entries, nil
}
