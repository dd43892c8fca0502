package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/repository"
	pkglog "github.com/staysearch/unit-index/pkg/log"
)

// Reindexer refreshes a unit's index entry after an availability write.
type Reindexer interface {
	ReindexUnit(ctx context.Context, unitID string) (bool, error)
}

// DayAvailability is one calendar day as the caller sees it. Days without
// a schedule row are available at the unit's base price.
type DayAvailability struct {
	Day          time.Time                 `json:"day"`
	Status       domain.AvailabilityStatus `json:"status"`
	Price        float64                   `json:"price,omitempty"`
	Currency     string                    `json:"currency,omitempty"`
	BookingID    string                    `json:"booking_id,omitempty"`
	BookingState domain.BookingState       `json:"booking_state,omitempty"`
	Reason       string                    `json:"reason,omitempty"`
}

// BulkDay is one day of a bulk availability write.
type BulkDay struct {
	Day      time.Time                 `json:"day"`
	Status   domain.AvailabilityStatus `json:"status"`
	Price    float64                   `json:"price,omitempty"`
	Currency string                    `json:"currency,omitempty"`
	Reason   string                    `json:"reason,omitempty"`
	Notes    string                    `json:"notes,omitempty"`
}

// BulkPeriod is one date span of a bulk availability write. With Overwrite
// set, existing rows in [From, To) are dropped first so days the period
// does not name revert to plain availability.
type BulkPeriod struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Days      []BulkDay `json:"days"`
	Overwrite bool      `json:"overwrite"`
}

// Service answers availability questions from the relational source of
// truth and keeps the index in step after every write.
type Service struct {
	repo    repository.SourceRepository
	indexer Reindexer
}

func NewService(repo repository.SourceRepository, indexer Reindexer) *Service {
	return &Service{repo: repo, indexer: indexer}
}

// CheckAvailability reports whether the unit can host a stay over
// [checkIn, checkOut). excludeBookingID ignores days held by that booking,
// which lets a booking be re-validated against its own hold.
func (s *Service) CheckAvailability(ctx context.Context, unitID string, checkIn, checkOut time.Time, excludeBookingID string) (bool, error) {
	if !checkOut.After(checkIn) {
		return false, domain.ErrInvalidArgument
	}

	active, err := s.repo.UnitActive(ctx, unitID)
	if err != nil {
		return false, fmt.Errorf("check unit %s: %w", unitID, err)
	}
	if !active {
		return false, nil
	}

	rows, err := s.repo.DaySchedules(ctx, unitID, domain.Midnight(checkIn), domain.Midnight(checkOut))
	if err != nil {
		return false, fmt.Errorf("load schedules for unit %s: %w", unitID, err)
	}

	// The booking workflow is stricter than search exclusion: any day that
	// is not plainly available refuses the stay, including maintenance,
	// owner use, and pending holds.
	for _, row := range rows {
		if row.Status == string(domain.StatusAvailable) {
			continue
		}
		if row.Status == string(domain.StatusBooked) &&
			excludeBookingID != "" && row.BookingID == excludeBookingID {
			continue
		}
		return false, nil
	}
	return true, nil
}

// BlockForBooking marks every night of [checkIn, checkOut) as booked by
// bookingID. Re-blocking the same booking over the same range is a no-op
// update, so retries are safe.
func (s *Service) BlockForBooking(ctx context.Context, unitID, bookingID string, state domain.BookingState, checkIn, checkOut time.Time) error {
	if bookingID == "" || !checkOut.After(checkIn) {
		return domain.ErrInvalidArgument
	}

	now := time.Now().UTC()
	var rows []repository.DayScheduleRow
	for _, day := range domain.Nights(checkIn, checkOut) {
		rows = append(rows, repository.DayScheduleRow{
			UnitID:       unitID,
			Day:          day,
			Status:       string(domain.StatusBooked),
			BookingID:    bookingID,
			BookingState: string(state),
			Reason:       "booking hold",
			UpdatedAt:    now,
		})
	}
	if err := s.repo.UpsertDaySchedules(ctx, rows); err != nil {
		return fmt.Errorf("block unit %s for booking %s: %w", unitID, bookingID, err)
	}

	s.refreshIndex(ctx, unitID)
	return nil
}

// UpdateBookingState moves every night of a booking to a new lifecycle
// state, e.g. pending -> confirmed. Moving to cancelled releases the
// nights back to plain availability.
func (s *Service) UpdateBookingState(ctx context.Context, bookingID string, state domain.BookingState) error {
	if bookingID == "" {
		return domain.ErrInvalidArgument
	}

	rows, err := s.repo.DaySchedulesByBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	for i := range rows {
		if state == domain.BookingCancelled {
			// a cancelled booking frees its nights entirely
			rows[i].Status = string(domain.StatusAvailable)
			rows[i].BookingID = ""
			rows[i].BookingState = ""
			rows[i].Reason = ""
		} else {
			rows[i].BookingState = string(state)
		}
		rows[i].UpdatedAt = now
	}
	if err := s.repo.UpsertDaySchedules(ctx, rows); err != nil {
		return fmt.Errorf("update booking %s: %w", bookingID, err)
	}

	s.refreshIndex(ctx, rows[0].UnitID)
	return nil
}

// ReleaseBooking frees every night held by bookingID, returning the days
// to plain availability at their scheduled price.
func (s *Service) ReleaseBooking(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return domain.ErrInvalidArgument
	}

	rows, err := s.repo.DaySchedulesByBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	for i := range rows {
		rows[i].Status = string(domain.StatusAvailable)
		rows[i].BookingID = ""
		rows[i].BookingState = ""
		rows[i].Reason = ""
		rows[i].UpdatedAt = now
	}
	if err := s.repo.UpsertDaySchedules(ctx, rows); err != nil {
		return fmt.Errorf("release booking %s: %w", bookingID, err)
	}

	s.refreshIndex(ctx, rows[0].UnitID)
	return nil
}

// GetMonthlyCalendar returns one entry per day of the month. Days without
// a schedule row come back available with a zero price.
func (s *Service) GetMonthlyCalendar(ctx context.Context, unitID string, year int, month time.Month) ([]DayAvailability, error) {
	active, err := s.repo.UnitActive(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("check unit %s: %w", unitID, err)
	}
	if !active {
		return nil, domain.ErrNotFound
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	rows, err := s.repo.DaySchedules(ctx, unitID, first, next)
	if err != nil {
		return nil, fmt.Errorf("load schedules for unit %s: %w", unitID, err)
	}
	byDay := make(map[string]repository.DayScheduleRow, len(rows))
	for _, row := range rows {
		byDay[domain.DayKey(row.Day)] = row
	}

	var out []DayAvailability
	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		entry := DayAvailability{Day: day, Status: domain.StatusAvailable}
		if row, ok := byDay[domain.DayKey(day)]; ok {
			entry.Status = domain.AvailabilityStatus(row.Status)
			entry.Price = row.Price
			entry.Currency = row.Currency
			entry.BookingID = row.BookingID
			entry.BookingState = domain.BookingState(row.BookingState)
			entry.Reason = row.Reason
		}
		out = append(out, entry)
	}
	return out, nil
}

// ApplyBulkAvailability writes day schedules for any number of date
// spans. Overwriting periods are cleared first, then every period's rows
// are persisted as a single batch so the unit never shows a half-applied
// update.
func (s *Service) ApplyBulkAvailability(ctx context.Context, unitID string, periods []BulkPeriod) error {
	if len(periods) == 0 {
		return domain.ErrInvalidArgument
	}
	for i := range periods {
		p := &periods[i]
		if !p.To.After(p.From) {
			return domain.ErrInvalidArgument
		}
		p.From, p.To = domain.Midnight(p.From), domain.Midnight(p.To)
		for _, d := range p.Days {
			day := domain.Midnight(d.Day)
			if day.Before(p.From) || !day.Before(p.To) {
				return fmt.Errorf("day %s outside period: %w", domain.DayKey(d.Day), domain.ErrInvalidArgument)
			}
		}
	}

	for _, p := range periods {
		if !p.Overwrite {
			continue
		}
		if err := s.repo.DeleteDaySchedules(ctx, unitID, p.From, p.To); err != nil {
			return fmt.Errorf("clear schedules for unit %s: %w", unitID, err)
		}
	}

	now := time.Now().UTC()
	var rows []repository.DayScheduleRow
	for _, p := range periods {
		for _, d := range p.Days {
			rows = append(rows, repository.DayScheduleRow{
				UnitID:    unitID,
				Day:       domain.Midnight(d.Day),
				Status:    string(d.Status),
				Price:     d.Price,
				Currency:  d.Currency,
				Reason:    d.Reason,
				Notes:     d.Notes,
				UpdatedAt: now,
			})
		}
	}
	if len(rows) > 0 {
		if err := s.repo.UpsertDaySchedules(ctx, rows); err != nil {
			return fmt.Errorf("apply schedules for unit %s: %w", unitID, err)
		}
	}

	s.refreshIndex(ctx, unitID)
	return nil
}

// refreshIndex keeps the index in step after a write. Failures are logged,
// never surfaced: the relational rows are the source of truth and the next
// reindex heals the gap.
func (s *Service) refreshIndex(ctx context.Context, unitID string) {
	if s.indexer == nil {
		return
	}
	if _, err := s.indexer.ReindexUnit(ctx, unitID); err != nil {
		pkglog.Ctx(ctx).Warn().
			Str(pkglog.FieldUnitID, unitID).
			Err(err).
			Msg("index refresh after availability write failed")
	}
}
