package domain

import (
	"time"

	"lifeline/pkg/geo"
)

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestMatched    RequestStatus = "matched"
	RequestInDelivery RequestStatus = "in-delivery"
	RequestFulfilled  RequestStatus = "fulfilled"
	RequestCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestFulfilled || s == RequestCancelled
}

// MatchStatus is the outcome of one donor being offered one request.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchDeclined MatchStatus = "declined"
	MatchRejected MatchStatus = "rejected"
)

// MatchEntry records the offer of a request to a single donor. Entries are
// append-only: responses mutate Status and RespondedAt but entries are never
// removed, preserving the history of who was offered the request.
type MatchEntry struct {
	DonorID     string      `json:"donor_id"`
	Status      MatchStatus `json:"status"`
	DistanceKm  float64     `json:"distance_km"`
	NotifiedAt  time.Time   `json:"notified_at"`
	RespondedAt *time.Time  `json:"responded_at,omitempty"`
}

// BloodRequest is the aggregate root of the matching core. It exclusively
// owns its MatchEntries; all read-then-write cycles on one request are
// serialized through the store's Version check.
type BloodRequest struct {
	ID           string          `json:"id"`
	RecipientID  string          `json:"recipient_id"`
	BloodType    BloodType       `json:"blood_type"`
	Units        int             `json:"units"`
	Urgency      Urgency         `json:"urgency"`
	Status       RequestStatus   `json:"status"`
	Location     *geo.Coordinate `json:"location,omitempty"`
	MatchEntries []MatchEntry    `json:"match_entries"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`

	// Version supports optimistic concurrency: stores reject a Save whose
	// Version does not match the stored one and bump it on success.
	Version int64 `json:"version"`
}

// Entry returns a pointer into MatchEntries for the given donor, or nil when
// the donor was never offered this request.
func (r *BloodRequest) Entry(donorID string) *MatchEntry {
	for i := range r.MatchEntries {
		if r.MatchEntries[i].DonorID == donorID {
			return &r.MatchEntries[i]
		}
	}
	return nil
}

// AcceptedCount returns how many donors have accepted this request.
func (r *BloodRequest) AcceptedCount() int {
	n := 0
	for i := range r.MatchEntries {
		if r.MatchEntries[i].Status == MatchAccepted {
			n++
		}
	}
	return n
}

// Expired reports whether the request passed its expiry and is still in a
// non-terminal state. Expiry is evaluated lazily; there is no live timer.
func (r *BloodRequest) Expired(now time.Time) bool {
	return !r.Status.Terminal() && !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Clone deep-copies the request so stores can hand out snapshots without
// sharing the MatchEntries backing array.
func (r *BloodRequest) Clone() *BloodRequest {
	cp := *r
	if r.Location != nil {
		loc := *r.Location
		cp.Location = &loc
	}
	cp.MatchEntries = make([]MatchEntry, len(r.MatchEntries))
	copy(cp.MatchEntries, r.MatchEntries)
	for i := range cp.MatchEntries {
		if cp.MatchEntries[i].RespondedAt != nil {
			at := *cp.MatchEntries[i].RespondedAt
			cp.MatchEntries[i].RespondedAt = &at
		}
	}
	return &cp
}

// RequestFilter narrows request listings. Zero values match everything.
type RequestFilter struct {
	Status      RequestStatus
	BloodType   BloodType
	Urgency     Urgency
	RecipientID string
}

// DonorCandidate is a read-only row from the donor directory collaborator.
// Candidates outside the donor role never appear here, so BloodType is
// always defined.
type DonorCandidate struct {
	ID         string          `json:"id"`
	BloodType  BloodType       `json:"blood_type"`
	Coordinate *geo.Coordinate `json:"coordinate,omitempty"`
	Eligible   bool            `json:"eligible"`
	Online     bool            `json:"online"`
}

// DeliveryStatus mirrors the courier collaborator's states. Only
// "delivered" affects the request lifecycle; the rest are fanned out as
// notifications.
type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked-up"
	DeliveryInTransit DeliveryStatus = "in-transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}
