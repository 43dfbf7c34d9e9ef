package data

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"

	"katsuo-market/internal/model"
)

const (
	DefaultCSVEncoding         = "utf-8"
	DefaultCSVFallbackEncoding = "cp932"
)

var (
	utf8BOM         = []byte{0xEF, 0xBB, 0xBF}
	replacementChar = []byte(string(utf8.RuneError))
)

// CSVSource reads the manually curated market_input.csv.
// Expected columns: date, port, size, price, volume (any order, header required).
type CSVSource struct {
	Path             string
	Encoding         string
	FallbackEncoding string
	// AllowMissing makes a missing file an empty source instead of an
	// unavailable one. Used when the CSV is about to be created.
	AllowMissing bool

	logger  *zap.Logger
	skipped atomic.Int64
}

// NewCSVSource creates a CSV source. Empty encodings default to UTF-8 with a
// CP932 fallback.
func NewCSVSource(path, enc, fallback string, logger *zap.Logger) *CSVSource {
	if enc == "" {
		enc = DefaultCSVEncoding
	}
	if fallback == "" {
		fallback = DefaultCSVFallbackEncoding
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSource{
		Path:             path,
		Encoding:         enc,
		FallbackEncoding: fallback,
		logger:           logger.Named("csv"),
	}
}

func (s *CSVSource) Name() string { return "csv" }

// Skipped returns the number of rows dropped during the last fetch for a
// missing date or port or a malformed CSV line.
func (s *CSVSource) Skipped() int { return int(s.skipped.Load()) }

type csvColumns struct {
	date, port, size, price, volume int
}

func (s *CSVSource) Fetch(ctx context.Context) (iter.Seq[model.RawRecord], error) {
	raw, err := os.ReadFile(s.Path)
	if s.AllowMissing && errors.Is(err, fs.ErrNotExist) {
		s.skipped.Store(0)
		s.logger.Info("csv not found, starting empty", zap.String("path", s.Path))
		return once(func(func(model.RawRecord) bool) {}), nil
	}
	if err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("read %s: %w", s.Path, err))
	}

	text, used, err := decodeWithFallback(raw, s.Encoding, s.FallbackEncoding)
	if err != nil {
		s.logger.Warn("csv decode failed", zap.String("path", s.Path), zap.Error(err))
		return nil, unavailable(s.Name(), err)
	}
	if used != s.Encoding {
		s.logger.Info("csv decoded with fallback encoding",
			zap.String("path", s.Path),
			zap.String("declared", s.Encoding),
			zap.String("used", used))
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		s.skipped.Store(0)
		return once(func(func(model.RawRecord) bool) {}), nil
	}
	if err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("read header: %w", err))
	}
	cols, err := locateColumns(header)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}

	s.skipped.Store(0)
	seq := func(yield func(model.RawRecord) bool) {
		line := 1
		for {
			if ctx.Err() != nil {
				return
			}
			rec, err := r.Read()
			line++
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					s.logger.Debug("skipping malformed csv line", zap.Int("line", line), zap.Error(err))
					s.skipped.Add(1)
					continue
				}
				s.logger.Warn("csv read aborted", zap.Int("line", line), zap.Error(err))
				return
			}

			row := model.RawRecord{
				Source: s.Name(),
				Date:   field(rec, cols.date),
				Port:   field(rec, cols.port),
				Size:   field(rec, cols.size),
				Price:  field(rec, cols.price),
				Volume: field(rec, cols.volume),
			}
			if row.Date == "" || row.Port == "" {
				s.skipped.Add(1)
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
	return once(seq), nil
}

func locateColumns(header []string) (csvColumns, error) {
	cols := csvColumns{date: -1, port: -1, size: -1, price: -1, volume: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			cols.date = i
		case "port":
			cols.port = i
		case "size":
			cols.size = i
		case "price":
			cols.price = i
		case "volume":
			cols.volume = i
		}
	}
	var missing []string
	if cols.date < 0 {
		missing = append(missing, "date")
	}
	if cols.port < 0 {
		missing = append(missing, "port")
	}
	if cols.size < 0 {
		missing = append(missing, "size")
	}
	if cols.price < 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("csv header missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// decodeWithFallback decodes raw with the declared encoding, retrying once
// with the fallback. It returns the text and the encoding that succeeded.
func decodeWithFallback(raw []byte, declared, fallback string) (string, string, error) {
	text, err := decode(raw, declared)
	if err == nil {
		return text, declared, nil
	}
	if fallback == "" || strings.EqualFold(fallback, declared) {
		return "", "", fmt.Errorf("decode as %s: %w", declared, err)
	}
	text, ferr := decode(raw, fallback)
	if ferr != nil {
		return "", "", fmt.Errorf("decode as %s: %v; fallback %s: %w", declared, err, fallback, ferr)
	}
	return text, fallback, nil
}

func decode(raw []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return "", errors.New("invalid utf-8 byte sequence")
		}
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	// x/text decoders substitute U+FFFD for undecodable bytes instead of failing.
	if bytes.Contains(out, replacementChar) && !bytes.Contains(raw, replacementChar) {
		return "", fmt.Errorf("undecodable bytes for %s", name)
	}
	return string(out), nil
}

// lookupEncoding resolves an encoding label. A nil encoding means UTF-8.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "cp932", "ms932", "windows-31j", "shift_jis", "sjis":
		return japanese.ShiftJIS, nil
	case "euc-jp", "eucjp":
		return japanese.EUCJP, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}
