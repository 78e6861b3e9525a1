// Package notify fans lifecycle events out to interested parties. Delivery
// is best-effort and at-most-once: a publish never blocks the state-mutating
// caller and a missed event is dropped, not queued for retry. This is a live
// notification layer, not a durable log.
package notify

import "time"

// EventType names a lifecycle event emitted by the matching core.
type EventType string

const (
	EventRequestCreated        EventType = "request.created"
	EventRequestAccepted       EventType = "request.accepted"
	EventRequestDeclined       EventType = "request.declined"
	EventRequestCancelled      EventType = "request.cancelled"
	EventDeliveryStatusChanged EventType = "delivery.status-changed"
	EventDonorLocationUpdated  EventType = "donor.location-updated"
)

// Target selects who receives an event: specific user channels, the
// operational dashboard channel, a broadcast to everyone, or any
// combination.
type Target struct {
	UserIDs   []string `json:"user_ids,omitempty"`
	Ops       bool     `json:"ops,omitempty"`
	Broadcast bool     `json:"broadcast,omitempty"`
}

// ToUser targets a single user channel.
func ToUser(userID string) Target {
	return Target{UserIDs: []string{userID}}
}

// ToUsers targets a set of user channels.
func ToUsers(userIDs ...string) Target {
	return Target{UserIDs: userIDs}
}

// ToOps targets only the operational dashboard channel.
func ToOps() Target {
	return Target{Ops: true}
}

// ToUserAndOps targets one user plus the operational channel.
func ToUserAndOps(userID string) Target {
	return Target{UserIDs: []string{userID}, Ops: true}
}

// ToAll broadcasts to every connected subscriber.
func ToAll() Target {
	return Target{Broadcast: true}
}

// Event is one notification. Payload is kept loosely typed because each
// event kind carries different fields and subscribers consume them as JSON.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Target     Target         `json:"target"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher is the capability the matching core depends on.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards all events. Useful in tests that do not assert on
// notifications.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
