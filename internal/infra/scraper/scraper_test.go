package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

type noSleepClock struct{ sleeps int }

func (c *noSleepClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (c *noSleepClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	return ctx.Err()
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Cable Knit Sweater $129.50":   "Cable_Knit_Sweater",
		`Wool <Blend> "Crew": A/B?`:    "Wool_Blend_Crew_AB",
		"  spaced   out  ":             "spaced_out",
		"___":                          "",
		strings.Repeat("a", 150):       strings.Repeat("a", 100),
		"Mohair Cardigan $80 Sale $60": "Mohair_Cardigan_Sale",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestCleanProductName(t *testing.T) {
	require.Equal(t, "Ribbed Turtleneck", cleanProductName("\n  Ribbed\tTurtleneck  Not hearted "))
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sweater_page1.jpg")

	got, err := UniquePath(target)
	require.NoError(t, err)
	require.Equal(t, target, got)

	require.NoError(t, os.WriteFile(target, nil, 0o644))
	got, err = UniquePath(target)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sweater_page1_1.jpg"), got)

	require.NoError(t, os.WriteFile(got, nil, 0o644))
	got, err = UniquePath(target)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sweater_page1_2.jpg"), got)
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractProductsSelectorsAndSources(t *testing.T) {
	base, _ := url.Parse("https://shop.example/list/sweaters.htm")
	doc := parse(t, `
<div class="product-tile"><a class="product-title">Cable Knit</a><img class="product-image" src="/img/cable.jpg"></div>
<div class="product-tile"><img data-src="https://cdn.example/lazy.jpg"></div>
<div class="product-tile"><img srcset="/img/small.jpg 1x, /img/large.jpg 2x"></div>
<div class="product-tile"><img src="/static/heart-icon.png"></div>
<div class="product-tile"><img src="/static/brand.SVG"></div>
<div class="product-tile">no image</div>
<div class="product">ignored, a better selector matched</div>
`)
	products, selector := ExtractProducts(doc, base)
	require.Equal(t, ".product-tile", selector)
	require.Equal(t, []Product{
		{Name: "Cable Knit", ImageURL: "https://shop.example/img/cable.jpg"},
		{Name: "", ImageURL: "https://cdn.example/lazy.jpg"},
		{Name: "", ImageURL: "https://shop.example/img/small.jpg"},
	}, products)
}

func TestExtractProductsFallback(t *testing.T) {
	doc := parse(t, `<div data-testid="card">Alpaca Crew <img src="alpaca.jpg"></div>`)
	base, _ := url.Parse("https://shop.example/a/")
	products, selector := ExtractProducts(doc, base)
	require.Equal(t, fallbackTileSelector, selector)
	require.Equal(t, []Product{{Name: "Alpaca Crew", ImageURL: "https://shop.example/a/alpaca.jpg"}}, products)
}

func TestPageURL(t *testing.T) {
	s := New(Options{StartURL: "https://shop.example/list.htm?sort=new"}, &noSleepClock{}, nil)
	got, err := s.PageURL(1)
	require.NoError(t, err)
	require.Equal(t, "https://shop.example/list.htm?sort=new", got)
	got, err = s.PageURL(3)
	require.NoError(t, err)
	require.Equal(t, "https://shop.example/list.htm?page=3&sort=new", got)
}

func TestRunDownloadsAcrossPages(t *testing.T) {
	var mu sync.Mutex
	var referers []string
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			w.Write([]byte(`
<div class="product-tile"><a class="product-title">Cable Knit $99</a><img src="/img/a.jpg"></div>
<div class="product-tile"><a class="product-title">Cable Knit $99</a><img src="/img/b.jpg"></div>
<div class="product-tile"><a class="product-title">Broken</a><img src="/img/missing.jpg"></div>`))
		case "2":
			w.Write([]byte(`<div class="s-product-card"><img data-src="/img/c.jpg"></div>`))
		default:
			http.Error(w, "no such page", http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		referers = append(referers, r.Header.Get("Referer"))
		mu.Unlock()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg:" + r.URL.Path))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "images")
	clock := &noSleepClock{}
	s := New(Options{
		StartURL:  srv.URL + "/list",
		Pages:     3,
		OutputDir: out,
		Referer:   "https://shop.example/",
		Timeout:   5 * time.Second,
	}, clock, nil)

	sum, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Pages: 3, Found: 4, Downloaded: 3, Failed: 1}, sum)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{
		"Cable_Knit_page1.jpg",
		"Cable_Knit_page1_1.jpg",
		"shop_product_1700000000_page2.jpg",
	}, names)

	data, err := os.ReadFile(filepath.Join(out, "Cable_Knit_page1_1.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg:/img/b.jpg", string(data))
	mu.Lock()
	require.Equal(t, []string{"https://shop.example/", "https://shop.example/", "https://shop.example/"}, referers)
	mu.Unlock()

	// a delay after each of the four downloads plus two page gaps
	require.Equal(t, 6, clock.sleeps)
}

func TestRunRejectsBadStartURL(t *testing.T) {
	s := New(Options{StartURL: "ftp://shop.example", OutputDir: t.TempDir()}, &noSleepClock{}, nil)
	_, err := s.Run(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div class="product-tile"></div>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(Options{StartURL: srv.URL, Pages: 2, OutputDir: t.TempDir()}, &noSleepClock{}, nil)
	_, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
