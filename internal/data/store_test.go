package data

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katsuo-market/internal/model"
)

func sampleDataset() model.Dataset {
	d := func(s string) time.Time {
		t, _ := time.Parse(model.DateLayout, s)
		return t
	}
	return model.Dataset{
		model.PortYaizu: {
			"4.5kg上": {
				{Date: d("2026-02-12"), Port: model.PortYaizu, Size: "4.5kg上", Price: 240, Volume: 50},
				{Date: d("2026-02-13"), Port: model.PortYaizu, Size: "4.5kg上", Price: 245.04, Volume: 80},
			},
		},
		model.PortMakurazaki: {
			"2.5kg上": {
				{Date: d("2026-02-12"), Port: model.PortMakurazaki, Size: "2.5kg上", Price: 230, Volume: 0},
			},
		},
	}
}

func TestWriteDataset_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "katsuo_market_data.json")

	require.NoError(t, WriteDataset(path, sampleDataset()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"焼津"`, "non-ASCII must not be escaped")
	assert.Contains(t, string(raw), `"price": 245`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	got, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	o, ok := got.Get(model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "4.5kg上"})
	require.True(t, ok)
	assert.Equal(t, 245.0, o.Price)
}

func TestWriteDataset_EmptyIsObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, WriteDataset(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", strings.TrimSpace(string(raw)))
}

func TestWriteFileAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "katsuo_market_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"old":true}`), 0o644))

	boom := errors.New("disk full")
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte(`{"new":`))
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, boom)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"old":true}`, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
	assert.Equal(t, "katsuo_market_data.json", entries[0].Name())
}

func TestWriteFileAtomic_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteJSON(filepath.Join(blocker, "out.json"), map[string]int{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestLoadDataset(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		ds, err := LoadDataset(filepath.Join(t.TempDir(), "none.json"))
		require.NoError(t, err)
		assert.Equal(t, 0, ds.Len())
	})

	t.Run("empty file is empty", func(t *testing.T) {
		ds, err := LoadDataset(writeTempFile(t, "empty.json", nil))
		require.NoError(t, err)
		assert.Equal(t, 0, ds.Len())
	})

	t.Run("corrupt file is unavailable", func(t *testing.T) {
		_, err := LoadDataset(writeTempFile(t, "bad.json", []byte(`{"焼津": [`)))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnavailable)

		var syntax *json.SyntaxError
		assert.True(t, errors.As(err, &syntax))
	})
}

func TestPriorJSONSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prior.json")
	require.NoError(t, WriteDataset(path, sampleDataset()))

	seq, err := NewPriorJSONSource(path).Fetch(context.Background())
	require.NoError(t, err)

	got := Collect(seq)
	require.Len(t, got, 3)
	assert.Equal(t, model.RawRecord{
		Source: "prior_json", Date: "2026-02-12", Port: "焼津", Size: "4.5kg上", Price: "240", Volume: "50",
	}, got[0])
	assert.Equal(t, "245", got[1].Price)
	assert.Equal(t, "枕崎", got[2].Port)
}

func TestGetDefaultDataPath(t *testing.T) {
	t.Setenv("KATSUO_DATA_FILE", "")
	assert.Equal(t, DefaultDataPath, GetDefaultDataPath())

	t.Setenv("KATSUO_DATA_FILE", "/tmp/x.json")
	assert.Equal(t, "/tmp/x.json", GetDefaultDataPath())
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, WriteCSV(path, sampleDataset()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"date,port,size,price,volume\n"+
			"2026-02-12,枕崎,2.5kg上,230,0\n"+
			"2026-02-12,焼津,4.5kg上,240,50\n"+
			"2026-02-13,焼津,4.5kg上,245.04,80\n",
		string(raw))

	// the export reads back through the CSV adapter
	seq, err := NewCSVSource(path, "", "", nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, Collect(seq), 3)
}
