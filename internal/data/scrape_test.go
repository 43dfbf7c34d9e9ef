package data

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"katsuo-market/internal/model"
)

const marketPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>市況情報</title></head>
<body>
<div class="date">2026/02/13相場情報</div>
<div class="box">
  <h3>旋網冷凍かつお 第一大漁丸</h3>
  <div><table>
    <tr><th>サイズ</th><th>高値</th><th>安値</th><th>数量</th></tr>
    <tr><td>4.5上</td><td>250</td><td>240</td><td>30</td></tr>
    <tr><td>2.5上</td><td>230円</td><td>-</td><td>12.5</td></tr>
    <tr><td>1.8上</td><td>-</td><td>-</td><td>3</td></tr>
    <tr><td>短い行</td><td>100</td></tr>
  </table></div>
</div>
<div class="box">
  <h3>旋網冷凍かつお 第二大漁丸</h3>
  <div><table>
    <tr><td>4.5上</td><td>260</td><td>250</td><td>20</td></tr>
  </table></div>
</div>
<div class="box">
  <h3>旋網冷凍きはだ（旋網冷凍かつお混獲）</h3>
  <div><table>
    <tr><td>4.5上</td><td>900</td><td>800</td><td>5</td></tr>
  </table></div>
</div>
</body></html>`

func parseDoc(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractSections(t *testing.T) {
	sections := ExtractSections(parseDoc(t, marketPage))

	require.Len(t, sections, 3)
	assert.Equal(t, "旋網冷凍かつお 第一大漁丸", sections[0].Context)
	assert.Len(t, sections[0].Rows, 4)
	assert.Equal(t, []string{"4.5上", "250", "240", "30"}, sections[0].Rows[0])
	assert.Contains(t, sections[2].Context, "きはだ")
}

func TestMatchSections_ExcludeWins(t *testing.T) {
	sections := []Section{
		{Context: "旋網冷凍かつお", Rows: [][]string{{"a"}}},
		{Context: "旋網冷凍きはだ 旋網冷凍かつお", Rows: [][]string{{"b"}}},
		{Context: "", Text: "旋網冷凍かつお 4.5上 250", Rows: [][]string{{"c"}}},
		{Context: "", Text: "旋網冷凍かつお びんなが", Rows: [][]string{{"d"}}},
		{Context: "一本釣", Text: "旋網冷凍かつお", Rows: [][]string{{"e"}}},
		{Context: "お知らせ", Text: "休市日", Rows: [][]string{{"f"}}},
	}

	got := MatchSections(sections, DefaultIncludeKeywords, DefaultExcludeKeywords)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Rows[0][0])
	assert.Equal(t, "c", got[1].Rows[0][0])
}

func TestMatchSections_FullWidthKeywords(t *testing.T) {
	sections := []Section{{Context: "旋網冷凍かつお　（焼津）"}}

	got := MatchSections(sections, []string{"旋網 冷凍かつお"}, nil)
	assert.Len(t, got, 1)
}

func TestRowRecord(t *testing.T) {
	rec, ok := RowRecord([]string{"4.5上", "250", "240", "30"}, "2026-02-13", model.PortYaizu)
	require.True(t, ok)
	assert.Equal(t, "245", rec.Price)
	assert.Equal(t, "30", rec.Volume)
	assert.Equal(t, "焼津", rec.Port)
	assert.Equal(t, "4.5上", rec.Size)

	rec, ok = RowRecord([]string{"2.5上", "-", "２３０", "1,200"}, "2026-02-13", model.PortYaizu)
	require.True(t, ok)
	assert.Equal(t, "230", rec.Price)
	assert.Equal(t, "1200", rec.Volume)

	_, ok = RowRecord([]string{"1.8上", "0", "", "3"}, "2026-02-13", model.PortYaizu)
	assert.False(t, ok)

	_, ok = RowRecord([]string{"1.8上", "200", "190"}, "2026-02-13", model.PortYaizu)
	assert.False(t, ok)
}

func TestDerivePrice(t *testing.T) {
	assert.Equal(t, 245.0, DerivePrice(250, 240))
	assert.Equal(t, 250.0, DerivePrice(250, 0))
	assert.Equal(t, 240.0, DerivePrice(0, 240))
	assert.Equal(t, 0.0, DerivePrice(0, 0))
}

func TestMarketDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-02-13", MarketDate("2026/02/13相場情報", now))
	assert.Equal(t, "2026-02-03", MarketDate("２０２６年２月３日 相場", now))
	// 20:00 UTC is already the next day in Japan
	assert.Equal(t, "2026-03-02", MarketDate("本日の相場", now))
	assert.Equal(t, "2026-03-02", MarketDate("2026/02/31", now))
}

func TestScrapeSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultScrapeUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(marketPage))
	}))
	defer srv.Close()

	src := NewScrapeSource(srv.URL, model.PortYaizu)
	seq, err := src.Fetch(context.Background())
	require.NoError(t, err)

	got := Collect(seq)
	require.Len(t, got, 3)
	assert.Equal(t, model.RawRecord{
		Source: "scrape", Date: "2026-02-13", Port: "焼津", Size: "4.5上", Price: "245", Volume: "30",
	}, got[0])
	assert.Equal(t, "230", got[1].Price)
	assert.Equal(t, "255", got[2].Price)
	for _, r := range got {
		assert.NotEqual(t, "850", r.Price, "excluded species leaked")
	}
}

func TestScrapeSource_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewScrapeSource(srv.URL, model.PortYaizu).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestScrapeSource_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewScrapeSource(srv.URL, model.PortYaizu, WithTimeout(50*time.Millisecond)).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScrapeSource_ShiftJISPage(t *testing.T) {
	page := `<html><head><meta http-equiv="Content-Type" content="text/html; charset=Shift_JIS"></head>
<body><h3>旋網冷凍かつお</h3><table><tr><td>4.5上</td><td>250</td><td>250</td><td>1</td></tr></table></body></html>`
	sjis := encodeShiftJIS(t, page)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		_, _ = w.Write(sjis)
	}))
	defer srv.Close()

	fixed := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	seq, err := NewScrapeSource(srv.URL, model.PortYaizu, WithClock(func() time.Time { return fixed })).Fetch(context.Background())
	require.NoError(t, err)

	got := Collect(seq)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-02-14", got[0].Date)
	assert.Equal(t, "250", got[0].Price)
}
