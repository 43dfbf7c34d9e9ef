package pipeline

import (
	"context"
	"iter"
	"time"

	"katsuo-market/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func obs(date string, port model.Port, size string, price, volume float64) model.PriceObservation {
	return model.PriceObservation{Date: day(date), Port: port, Size: size, Price: price, Volume: volume}
}

type stubSource struct {
	name    string
	records []model.RawRecord
	err     error
	delay   time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) (iter.Seq[model.RawRecord], error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return func(yield func(model.RawRecord) bool) {
		for _, r := range s.records {
			if !yield(r) {
				return
			}
		}
	}, nil
}

func raw(date, port, size, price, volume string) model.RawRecord {
	return model.RawRecord{Source: "stub", Date: date, Port: port, Size: size, Price: price, Volume: volume}
}
