package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on disk and in CSV input.
const DateLayout = "2006-01-02"

// PriceObservation is one price point for a (date, port, size) key.
//
// Units:
// - Price: yen per kg
// - Volume: tonnes landed
type PriceObservation struct {
	Date   time.Time
	Port   Port
	Size   string
	Price  float64
	Volume float64
}

func (o PriceObservation) Key() Key {
	return Key{Date: o.Date.Format(DateLayout), Port: o.Port, Size: o.Size}
}

// Key is the identity of an observation within a dataset.
type Key struct {
	Date string
	Port Port
	Size string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Date, k.Port, k.Size)
}

// RawRecord is a candidate observation as produced by a source adapter.
// Every field is untrusted text; conversion happens in the pipeline.
type RawRecord struct {
	Source string
	Date   string
	Port   string
	Size   string
	Price  string
	Volume string
}

// ParseDate parses a YYYY-MM-DD calendar date. Slash-separated dates
// (YYYY/MM/DD, as printed on market pages) are accepted too.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "-")
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
