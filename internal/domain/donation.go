package domain

import "time"

// DonationStatus is the lifecycle state of a scheduled donation.
type DonationStatus string

const (
	DonationScheduled DonationStatus = "scheduled"
	DonationCompleted DonationStatus = "completed"
	DonationCancelled DonationStatus = "cancelled"
)

// Donation is owned by the donor. RequestID is a non-owning reference to the
// blood request that spawned it; self-scheduled donations leave it empty.
type Donation struct {
	ID            string         `json:"id"`
	DonorID       string         `json:"donor_id"`
	RequestID     string         `json:"request_id,omitempty"`
	ScheduledDate time.Time      `json:"scheduled_date"`
	Status        DonationStatus `json:"status"`
	Units         int            `json:"units"`
	CreatedAt     time.Time      `json:"created_at"`
}
