package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
	"katsuo-market/internal/normalize"
)

type recordingArchiver struct {
	mu    sync.Mutex
	runID string
	obs   []model.PriceObservation
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, runID string, obs []model.PriceObservation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runID = runID
	a.obs = append(a.obs, obs...)
	return a.err
}

func TestRun_CSVEndToEnd(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "market_input.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"date,port,size,price,volume\n"+
			"2026-02-13,焼津,4.5上,240,50\n"+
			"2026-02-13,焼津,2.5上,abc,10\n"), 0o644))
	out := filepath.Join(dir, "katsuo_market_data.json")

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{data.NewCSVSource(csvPath, "", "", nil)},
		OutputPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Discards[ReasonInvalidPrice])
	assert.Equal(t, 1, res.Written)
	assert.NotEmpty(t, res.RunID)

	ds, err := data.LoadDataset(out)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	_, ok := ds.Get(model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "4.5kg上"})
	assert.True(t, ok)
	assert.NotContains(t, ds[model.PortYaizu], "2.5kg上")
}

func TestRun_MergesIntoPersistedDataset(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	prior, _ := Merge(model.Dataset{}, []model.PriceObservation{
		obs("2026-02-12", model.PortYaizu, "4.5kg上", 230, 10),
		obs("2026-02-13", model.PortYaizu, "4.5kg上", 200, 10),
		// trusted history outside the current band survives
		obs("2026-01-01", model.PortYaizu, "4.5kg上", 700, 1),
	})
	require.NoError(t, data.WriteDataset(out, prior))

	src := &stubSource{name: "scrape", records: []model.RawRecord{
		raw("2026-02-13", "焼津", "4.5上", "240", "50"),
		raw("2026-02-13", "焼津", "4.5kg上", "250", "30"),
		raw("2026-02-13", "焼津", "4.5上", "5", "1"),
		raw("2026-02-13", "焼津", "4.5上", "601", "1"),
	}}
	archiver := &recordingArchiver{}

	res, err := New(WithArchiver(archiver)).Run(context.Background(), Options{
		Sources:    []data.Source{src},
		OutputPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Discards[ReasonOutlier])
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 1, res.Aggregated)
	assert.Equal(t, MergeStats{Inserted: 0, Replaced: 1, Total: 3}, res.Merge)

	ds, err := data.LoadDataset(out)
	require.NoError(t, err)
	want := model.Dataset{model.PortYaizu: {"4.5kg上": {
		obs("2026-01-01", model.PortYaizu, "4.5kg上", 700, 1),
		obs("2026-02-12", model.PortYaizu, "4.5kg上", 230, 10),
		obs("2026-02-13", model.PortYaizu, "4.5kg上", 245, 80),
	}}}
	assert.Empty(t, cmp.Diff(want, ds))

	require.Len(t, archiver.obs, 1)
	assert.Equal(t, res.RunID, archiver.runID)
}

func TestRun_SourceFailureIsolated(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	broken := &stubSource{name: "scrape", err: &data.SourceError{Source: "scrape", StatusCode: 503}}
	slow := &stubSource{name: "csv", delay: 20 * time.Millisecond, records: []model.RawRecord{
		raw("2026-02-13", "枕崎", "2.5上", "230", "3"),
	}}

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{broken, slow},
		OutputPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"scrape"}, res.FailedSources())
	assert.ErrorIs(t, res.Sources[0].Err, data.ErrSourceUnavailable)
	assert.Equal(t, 1, res.Sources[1].Fetched)
	assert.Equal(t, 1, res.Written)
}

func TestRun_FreshWithAllSourcesFailed(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(out, []byte(`{"焼津":{}}`), 0o644))

	_, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", err: errors.New("gone")}},
		OutputPath: out,
		Fresh:      true,
	})
	require.ErrorIs(t, err, ErrNothingFetched)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `{"焼津":{}}`, string(content))
}

func TestRun_FreshIgnoresBaseline(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, data.WriteDataset(out, model.Dataset{model.PortYaizu: {"4.5kg上": {
		obs("2026-01-01", model.PortYaizu, "4.5kg上", 200, 1),
	}}}))

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", records: []model.RawRecord{raw("2026-02-13", "山川", "1.8上", "180", "2")}}},
		OutputPath: out,
		Fresh:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merge.Total)

	ds, err := data.LoadDataset(out)
	require.NoError(t, err)
	assert.NotContains(t, ds, model.PortYaizu)
}

func TestRun_CorruptBaselineAborts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(out, []byte(`{not json`), 0o644))

	_, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "240", "1")}}},
		OutputPath: out,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrSourceUnavailable)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(content))
}

func TestRun_WriteFailureIsFatal(t *testing.T) {
	archiver := &recordingArchiver{}
	_, err := New(WithArchiver(archiver)).Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "240", "1")}}},
		OutputPath: "unused.json",
		Fresh:      true,
		Write: func(string, model.Dataset) error {
			return data.ErrPersistence
		},
	})
	assert.ErrorIs(t, err, data.ErrPersistence)
	assert.Empty(t, archiver.obs)
}

func TestRun_ArchiveFailureIsNotFatal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	archiver := &recordingArchiver{err: errors.New("locked")}

	res, err := New(WithArchiver(archiver)).Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "240", "1")}}},
		OutputPath: out,
	})
	require.NoError(t, err)
	assert.Error(t, res.ArchiveErr)
	assert.FileExists(t, out)
}

func TestRun_DryRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "240", "1")}}},
		OutputPath: out,
		DryRun:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dataset.Len())
	assert.Equal(t, 0, res.Written)
	assert.NoFileExists(t, out)
}

func TestRun_CustomBoundsAndAliases(t *testing.T) {
	p := New(
		WithBounds(Bounds{Low: 100, High: 200}),
		WithNormalizer(normalize.NewNormalizer().WithAliases(map[string]string{"大": "4.5kg上"})),
	)

	res, err := p.Run(context.Background(), Options{
		Sources: []data.Source{&stubSource{name: "csv", records: []model.RawRecord{
			raw("2026-02-13", "焼津", "大", "150", "1"),
			raw("2026-02-13", "焼津", "大", "250", "1"),
		}}},
		DryRun: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discards[ReasonOutlier])
	_, ok := res.Dataset.Get(model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "4.5kg上"})
	assert.True(t, ok)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, Options{
		Sources: []data.Source{&stubSource{name: "slow", delay: time.Second}},
		DryRun:  true,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InfiniteVolumeIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "market_input.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"date,port,size,price,volume\n"+
			"2026-02-13,焼津,4.5上,240,50\n"+
			"2026-02-13,焼津,2.5上,230,inf\n"+
			"2026-02-13,焼津,1.8上,Infinity,3\n"), 0o644))
	out := filepath.Join(dir, "katsuo_market_data.json")

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{data.NewCSVSource(csvPath, "", "", nil)},
		OutputPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discards[ReasonInvalidVolume])
	assert.Equal(t, 1, res.Discards[ReasonInvalidPrice])
	assert.Equal(t, 1, res.Written)

	ds, err := data.LoadDataset(out)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestRun_ReportsSkippedRows(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "market_input.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"date,port,size,price,volume\n"+
			"2026-02-13,焼津,4.5上,240,50\n"+
			",焼津,4.5上,240,50\n"+
			"2026-02-13,,4.5上,240,50\n"), 0o644))

	res, err := New().Run(context.Background(), Options{
		Sources: []data.Source{data.NewCSVSource(csvPath, "", "", nil)},
		DryRun:  true,
	})
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, 1, res.Sources[0].Fetched)
	assert.Equal(t, 2, res.Sources[0].Skipped)
	assert.Equal(t, 2, res.Skipped())
}

func TestRun_BaselineKeepsTrustedPorts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, data.WriteDataset(out, model.Dataset{"清水": {"4.5kg上": {
		obs("2026-01-01", "清水", "4.5kg上", 200, 1),
	}}}))

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "csv", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "240", "1")}}},
		OutputPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merge.Total)

	ds, err := data.LoadDataset(out)
	require.NoError(t, err)
	assert.Contains(t, ds, model.Port("清水"))
}

func TestRun_MergeIntoCSVRefusesLossyBaseline(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "market_input.csv")
	original := "date,port,size,price,volume\n" +
		"2026-02-12,焼津,4.5上,240,50\n" +
		"2026-02-12,焼津,中型,200,10\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(original), 0o644))

	csv := data.NewCSVSource(csvPath, "", "", nil)
	_, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "scrape", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "245", "20")}}},
		OutputPath: csvPath,
		Baseline: func(ctx context.Context) (model.Dataset, error) {
			return LoadTrusted(ctx, csv, nil)
		},
		Write: data.WriteCSV,
	})
	require.ErrorIs(t, err, ErrIncompleteLoad)
	assert.Contains(t, err.Error(), "unrecognized_size=1")

	content, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
}

func TestRun_MergeIntoMissingCSVCreatesIt(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "market_input.csv")
	csv := data.NewCSVSource(csvPath, "", "", nil)
	csv.AllowMissing = true

	res, err := New().Run(context.Background(), Options{
		Sources:    []data.Source{&stubSource{name: "scrape", records: []model.RawRecord{raw("2026-02-13", "焼津", "4.5上", "245", "20")}}},
		OutputPath: csvPath,
		Baseline: func(ctx context.Context) (model.Dataset, error) {
			return LoadTrusted(ctx, csv, nil)
		},
		Write: data.WriteCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	csv.AllowMissing = false
	ds, err := LoadTrusted(context.Background(), csv, nil)
	require.NoError(t, err)
	_, ok := ds.Get(model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "4.5kg上"})
	assert.True(t, ok)
}

func TestLoadTrusted(t *testing.T) {
	src := &stubSource{name: "csv", records: []model.RawRecord{
		raw("2026-02-13", "清水", "4.5上", "700", "1"),
		raw("2026-02-13", "焼津", "4.5上", "240", "1"),
		raw("2026-02-13", "焼津", "4.5上", "250", "2"),
	}}

	ds, err := LoadTrusted(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	got, ok := ds.Get(model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "4.5kg上"})
	require.True(t, ok)
	assert.Equal(t, 250.0, got.Price)
}

func TestLoadTrusted_UnconvertibleRowFails(t *testing.T) {
	src := &stubSource{name: "csv", records: []model.RawRecord{
		raw("2026-02-13", "焼津", "4.5上", "240", "1"),
		raw("bad", "焼津", "4.5上", "250", "2"),
		raw("2026-02-13", "焼津", "中型", "250", "2"),
	}}

	_, err := LoadTrusted(context.Background(), src, nil)
	require.ErrorIs(t, err, ErrIncompleteLoad)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "csv", le.Source)
	assert.Equal(t, map[string]int{ReasonInvalidDate: 1, ReasonUnrecognizedSize: 1}, le.Discards)
}

func TestLoadTrusted_SkippedRowFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market_input.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"date,port,size,price,volume\n"+
			"2026-02-13,焼津,4.5上,240,50\n"+
			",焼津,4.5上,240,50\n"), 0o644))

	_, err := LoadTrusted(context.Background(), data.NewCSVSource(path, "", "", nil), nil)
	require.ErrorIs(t, err, ErrIncompleteLoad)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 1, le.Skipped)
	assert.Contains(t, err.Error(), "skipped=1")
}
