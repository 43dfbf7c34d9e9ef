package data

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"katsuo-market/internal/model"
)

var csvHeader = []string{"date", "port", "size", "price", "volume"}

// WriteCSV atomically writes the dataset in market_input.csv layout, rows
// ordered by date, port and size.
func WriteCSV(path string, ds model.Dataset) error {
	rows := ds.Observations()
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Key(), rows[j].Key()
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		return a.Size < b.Size
	})

	return WriteFileAtomic(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(csvHeader); err != nil {
			return err
		}
		for _, o := range rows {
			row := []string{
				o.Date.Format(model.DateLayout),
				string(o.Port),
				o.Size,
				fmtFloat(o.Price),
				fmtFloat(o.Volume),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
