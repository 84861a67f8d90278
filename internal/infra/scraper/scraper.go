// Package scraper downloads product photos from a retail listing.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/bryanwahyu/knit-tagger/internal/application"
	"github.com/bryanwahyu/knit-tagger/internal/logging"
	"github.com/bryanwahyu/knit-tagger/internal/middleware"
)

type Options struct {
	StartURL  string
	Pages     int
	PageParam string
	OutputDir string
	MinDelay  time.Duration
	MaxDelay  time.Duration
	PageDelay time.Duration
	UserAgent string
	Referer   string
	Timeout   time.Duration
}

// Summary of one scrape.
type Summary struct {
	Pages      int
	Found      int
	Downloaded int
	Failed     int
}

type Scraper struct {
	client *resty.Client
	opts   Options
	clock  application.Clock
	log    *slog.Logger
	rand   *rand.Rand
}

func New(opts Options, clock application.Clock, log *slog.Logger) *Scraper {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.PageParam == "" {
		opts.PageParam = "page"
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = logging.Discard()
	}
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return &Scraper{
		client: client,
		opts:   opts,
		clock:  clock,
		log:    log,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run scrapes every page in turn. A failing page is logged and skipped; only a
// canceled context or an unusable output directory stops the run.
func (s *Scraper) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := middleware.ValidateURL(s.opts.StartURL); err != nil {
		return sum, fmt.Errorf("start url: %w", err)
	}
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return sum, err
	}

	for page := 1; page <= s.opts.Pages; page++ {
		found, downloaded, failed, err := s.ScrapePage(ctx, page)
		sum.Pages++
		sum.Found += found
		sum.Downloaded += downloaded
		sum.Failed += failed
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			s.log.Warn("page scrape failed", "page", page, "err", err)
		}

		if page < s.opts.Pages {
			if err := s.clock.Sleep(ctx, s.opts.PageDelay); err != nil {
				return sum, err
			}
		}
	}
	s.log.Info("scraping completed", "pages", sum.Pages, "downloaded", sum.Downloaded, "failed", sum.Failed)
	return sum, nil
}

// ScrapePage downloads every product photo on one listing page.
func (s *Scraper) ScrapePage(ctx context.Context, page int) (found, downloaded, failed int, err error) {
	pageURL, err := s.PageURL(page)
	if err != nil {
		return 0, 0, 0, err
	}
	doc, base, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return 0, 0, 0, err
	}

	products, selector := ExtractProducts(doc, base)
	s.log.Info("found products", "page", page, "count", len(products), "selector", selector)

	for _, p := range products {
		name := SanitizeFilename(p.Name)
		if name == "" {
			name = fmt.Sprintf("shop_product_%d", s.clock.Now().Unix())
		}
		target, err := UniquePath(filepath.Join(s.opts.OutputDir, fmt.Sprintf("%s_page%d.jpg", name, page)))
		if err != nil {
			return len(products), downloaded, failed, err
		}

		if err := s.Download(ctx, p.ImageURL, target); err != nil {
			failed++
			s.log.Warn("failed to download", "url", p.ImageURL, "err", err)
		} else {
			downloaded++
			s.log.Info("successfully downloaded", "file", target)
		}

		if err := s.clock.Sleep(ctx, s.randomDelay()); err != nil {
			return len(products), downloaded, failed, err
		}
	}
	return len(products), downloaded, failed, nil
}

// PageURL is StartURL for page 1 and StartURL?<PageParam>=<page> afterwards.
func (s *Scraper) PageURL(page int) (string, error) {
	u, err := url.Parse(s.opts.StartURL)
	if err != nil {
		return "", fmt.Errorf("invalid start url: %w", err)
	}
	if page > 1 {
		q := u.Query()
		q.Set(s.opts.PageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(pageURL)
	if err != nil {
		return nil, nil, err
	}
	if !resp.IsSuccess() {
		return nil, nil, fmt.Errorf("get %s: status %d", pageURL, resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, err
	}
	return doc, base, nil
}

// Download saves the image at src to target.
func (s *Scraper) Download(ctx context.Context, src, target string) error {
	req := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "image/webp,image/apng,image/*,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	if s.opts.Referer != "" {
		req.SetHeader("Referer", s.opts.Referer)
	}
	resp, err := req.Get(src)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if !resp.IsSuccess() {
		return fmt.Errorf("status code %d", resp.StatusCode())
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(target)
		return err
	}
	return f.Close()
}

func (s *Scraper) randomDelay() time.Duration {
	span := s.opts.MaxDelay - s.opts.MinDelay
	if span <= 0 {
		return s.opts.MinDelay
	}
	return s.opts.MinDelay + time.Duration(s.rand.Int63n(int64(span)))
}
