// Package directory is the donor-side collaborator of the matching core: it
// answers "who could give this blood type right now" and tracks donor
// locations and online presence.
package directory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"lifeline/internal/domain"
	"lifeline/internal/match"
	"lifeline/internal/notify"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/sentinel"
)

// Profile is a donor's directory record. Eligible reflects medical
// eligibility (deferral windows, recent donations) and is maintained by
// whoever registers the donor.
type Profile struct {
	ID        string           `json:"id"`
	BloodType domain.BloodType `json:"blood_type"`
	Location  *geo.Coordinate  `json:"location,omitempty"`
	Eligible  bool             `json:"eligible"`
}

// Directory holds donor profiles in memory and decorates candidate lookups
// with live presence.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]*Profile

	presence Presence
	bus      notify.Publisher
	logger   *slog.Logger
}

func New(presence Presence, bus notify.Publisher, logger *slog.Logger) *Directory {
	return &Directory{
		profiles: make(map[string]*Profile),
		presence: presence,
		bus:      bus,
		logger:   logger,
	}
}

// Upsert registers or refreshes a donor profile.
func (d *Directory) Upsert(p Profile) error {
	if p.ID == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "donor id is required")
	}
	if !p.BloodType.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidRequest, "unknown blood type %q", p.BloodType)
	}
	cp := p
	if p.Location != nil {
		loc := *p.Location
		cp.Location = &loc
	}
	d.mu.Lock()
	d.profiles[p.ID] = &cp
	d.mu.Unlock()
	return nil
}

// UpdateLocation moves a donor and broadcasts the change so open request
// views can refresh their distance ordering.
func (d *Directory) UpdateLocation(ctx context.Context, donorID string, coord geo.Coordinate) error {
	d.mu.Lock()
	profile, ok := d.profiles[donorID]
	if !ok {
		d.mu.Unlock()
		return sentinel.ErrNotFound
	}
	loc := coord
	profile.Location = &loc
	d.mu.Unlock()

	d.bus.Publish(notify.Event{
		Type:   notify.EventDonorLocationUpdated,
		Target: notify.ToAll(),
		Payload: map[string]any{
			"donor_id": donorID,
			"lat":      coord.Lat,
			"lng":      coord.Lng,
		},
	})
	return nil
}

// FindCandidates returns donors whose blood type is in bloodTypes, skipping
// excluded ids, with the Online flag filled from presence. Presence lookup
// failures degrade to offline rather than failing the match.
func (d *Directory) FindCandidates(ctx context.Context, bloodTypes []domain.BloodType, excludeIDs []string) ([]domain.DonorCandidate, error) {
	wanted := make(map[domain.BloodType]bool, len(bloodTypes))
	for _, t := range bloodTypes {
		wanted[t] = true
	}
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	d.mu.RLock()
	candidates := make([]domain.DonorCandidate, 0, len(d.profiles))
	for _, p := range d.profiles {
		if !wanted[p.BloodType] || excluded[p.ID] {
			continue
		}
		c := domain.DonorCandidate{
			ID:        p.ID,
			BloodType: p.BloodType,
			Eligible:  p.Eligible,
		}
		if p.Location != nil {
			loc := *p.Location
			c.Coordinate = &loc
		}
		candidates = append(candidates, c)
	}
	d.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	online, err := d.presence.Online(ctx, ids)
	if err != nil {
		d.logger.WarnContext(ctx, "presence lookup failed, treating donors as offline", "error", err)
		online = nil
	}
	for i := range candidates {
		candidates[i].Online = online[candidates[i].ID]
	}
	return candidates, nil
}

// NearbyDonor is one row of a proximity query.
type NearbyDonor struct {
	ID         string           `json:"id"`
	BloodType  domain.BloodType `json:"blood_type"`
	DistanceKm float64          `json:"distance_km"`
	Online     bool             `json:"online"`
}

// Nearby returns eligible donors compatible with the given blood type within
// radiusKm of origin, nearest first.
func (d *Directory) Nearby(ctx context.Context, bloodType domain.BloodType, origin geo.Coordinate, radiusKm float64) ([]NearbyDonor, error) {
	if !bloodType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidRequest, "unknown blood type %q", bloodType)
	}
	if radiusKm <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "radius must be positive")
	}

	candidates, err := d.FindCandidates(ctx, domain.DonorTypesFor(bloodType), nil)
	if err != nil {
		return nil, err
	}
	eligible := candidates[:0]
	for _, c := range candidates {
		if c.Eligible {
			eligible = append(eligible, c)
		}
	}

	ranked := match.Rank(origin, eligible, radiusKm)
	out := make([]NearbyDonor, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, NearbyDonor{
			ID:         r.Candidate.ID,
			BloodType:  r.Candidate.BloodType,
			DistanceKm: r.DistanceKm,
			Online:     r.Candidate.Online,
		})
	}
	return out, nil
}
