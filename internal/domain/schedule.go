package domain

import "time"

// AvailabilityStatus is the day-level availability state of a unit.
type AvailabilityStatus string

const (
	StatusAvailable   AvailabilityStatus = "available"
	StatusBooked      AvailabilityStatus = "booked"
	StatusBlocked     AvailabilityStatus = "blocked"
	StatusMaintenance AvailabilityStatus = "maintenance"
	StatusOwnerUse    AvailabilityStatus = "owner_use"
)

// BookingState is the lifecycle state of the booking linked to a day.
type BookingState string

const (
	BookingPending   BookingState = "pending"
	BookingConfirmed BookingState = "confirmed"
	BookingCheckedIn BookingState = "checked_in"
	BookingCompleted BookingState = "completed"
	BookingCancelled BookingState = "cancelled"
)

// BlocksStay reports whether a booking in this state actually occupies
// the unit for search purposes.
func (s BookingState) BlocksStay() bool {
	switch s {
	case BookingConfirmed, BookingCheckedIn, BookingCompleted:
		return true
	}
	return false
}

// DayScheduleDocument is the fused per-unit-per-day index record carrying
// both availability status and price. At most one exists per (unit, day);
// a missing day means "available at base price".
type DayScheduleDocument struct {
	UnitID       string             `json:"unit_id"`
	Day          time.Time          `json:"day"` // UTC midnight
	Status       AvailabilityStatus `json:"status"`
	BookingID    string             `json:"booking_id,omitempty"`
	BookingState BookingState       `json:"booking_state,omitempty"`
	Price        float64            `json:"price"`
	Currency     string             `json:"currency,omitempty"`
	PriceTier    string             `json:"price_tier,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Notes        string             `json:"notes,omitempty"`
}

// Blocking reports whether this day excludes the unit from a dated search.
// Blocked days always block. Booked days block only when linked to a booking
// in an occupying state; a booked day with no booking or a non-blocking
// booking state is treated as available.
func (d DayScheduleDocument) Blocking() bool {
	switch d.Status {
	case StatusBlocked:
		return true
	case StatusBooked:
		return d.BookingID != "" && d.BookingState.BlocksStay()
	}
	return false
}
