package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"katsuo-market/internal/model"
	"katsuo-market/internal/normalize"
)

// Discard reasons for records that never become observations.
const (
	ReasonInvalidDate      = "invalid_date"
	ReasonUnknownPort      = "unknown_port"
	ReasonInvalidPrice     = "invalid_price"
	ReasonInvalidVolume    = "invalid_volume"
	ReasonUnrecognizedSize = "unrecognized_size"
	ReasonOutlier          = "outlier"
)

// ConvertError is a record that could not be turned into an observation.
type ConvertError struct {
	Reason string
	Record model.RawRecord
	Err    error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("%s: %s %s/%s/%s: %v", e.Reason, e.Record.Source, e.Record.Date, e.Record.Port, e.Record.Size, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// Converter validates raw records into observations.
type Converter struct {
	Normalizer *normalize.Normalizer
	// AnyPort accepts ports outside model.Ports. Persisted data is trusted
	// this way; fresh records are not.
	AnyPort bool
}

// Convert validates one record. Prices and volumes must be finite
// non-negative numbers; an empty volume reads as 0.
func (c Converter) Convert(r model.RawRecord) (model.PriceObservation, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return model.PriceObservation{}, &ConvertError{Reason: ReasonInvalidDate, Record: r, Err: err}
	}

	port := model.Port(strings.TrimSpace(r.Port))
	if port == "" || (!c.AnyPort && !port.Valid()) {
		return model.PriceObservation{}, &ConvertError{Reason: ReasonUnknownPort, Record: r, Err: fmt.Errorf("port %q", r.Port)}
	}

	price, err := parseAmount(r.Price, false)
	if err != nil {
		return model.PriceObservation{}, &ConvertError{Reason: ReasonInvalidPrice, Record: r, Err: err}
	}
	volume, err := parseAmount(r.Volume, true)
	if err != nil {
		return model.PriceObservation{}, &ConvertError{Reason: ReasonInvalidVolume, Record: r, Err: err}
	}

	n := c.Normalizer
	if n == nil {
		n = normalize.NewNormalizer()
	}
	size, err := n.Normalize(r.Size)
	if err != nil {
		return model.PriceObservation{}, &ConvertError{Reason: ReasonUnrecognizedSize, Record: r, Err: err}
	}

	return model.PriceObservation{
		Date:   date,
		Port:   port,
		Size:   size,
		Price:  price,
		Volume: volume,
	}, nil
}

// DiscardReason extracts the reason from a Convert error.
func DiscardReason(err error) string {
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return "unknown"
}

func parseAmount(s string, emptyIsZero bool) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		if emptyIsZero {
			return 0, nil
		}
		return 0, errors.New("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value %q", s)
	}
	return f, nil
}
