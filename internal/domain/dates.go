package domain

import "time"

const dayKeyLayout = "20060102"

// Midnight truncates t to UTC midnight.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey returns the sortable yyyymmdd key for a calendar day.
func DayKey(t time.Time) string {
	return Midnight(t).Format(dayKeyLayout)
}

// ParseDayKey parses a yyyymmdd key back into a UTC midnight time.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, time.UTC)
}

// Nights returns every night of the stay [checkIn, checkOut), one entry
// per calendar day at UTC midnight. checkOut itself is never included.
func Nights(checkIn, checkOut time.Time) []time.Time {
	from := Midnight(checkIn)
	to := Midnight(checkOut)
	if !from.Before(to) {
		return nil
	}
	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24))
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// NightCount returns the number of nights in [checkIn, checkOut).
func NightCount(checkIn, checkOut time.Time) int {
	return len(Nights(checkIn, checkOut))
}
