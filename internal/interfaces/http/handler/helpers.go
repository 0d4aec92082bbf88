package handler

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money values cross the API as fixed two-decimal strings
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

// utcPtr normalizes optional timestamps to UTC for RFC 3339 output
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// parseDate accepts a calendar date (2006-01-02) or a full RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
