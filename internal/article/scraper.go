package article

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/services"
	"linkcheck/internal/textutil"
)

var tracer = otel.Tracer("linkcheck/internal/article")

const defaultTimeout = 20 * time.Second

// CandidateURL is one affiliate link found in an article.
type CandidateURL struct {
	URL  string `json:"url"`
	Text string `json:"urlText"`
}

// Scraper lists affiliate links for an article.
type Scraper interface {
	Scrape(ctx context.Context, articleURL string) ([]CandidateURL, error)
}

// HTTPScraper fetches articles over HTTP and parses them with goquery.
type HTTPScraper struct {
	http   *resty.Client
	hosts  HostMatcher
	logger *slog.Logger
}

var _ Scraper = (*HTTPScraper)(nil)

// Option configures an HTTPScraper.
type Option func(*HTTPScraper)

// WithTimeout bounds the article fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(s *HTTPScraper) {
		if timeout > 0 {
			s.http.SetTimeout(timeout)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(s *HTTPScraper) {
		if agent = strings.TrimSpace(agent); agent != "" {
			s.http.SetHeader("User-Agent", agent)
		}
	}
}

// WithLinkHosts replaces the affiliate host patterns.
func WithLinkHosts(hosts ...string) Option {
	return func(s *HTTPScraper) {
		s.hosts = NewHostMatcher(hosts)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *HTTPScraper) {
		s.logger = logging.NewComponentLogger(logger, "article")
	}
}

// New constructs an HTTPScraper.
func New(opts ...Option) *HTTPScraper {
	s := &HTTPScraper{
		http:   resty.New().SetTimeout(defaultTimeout).SetHeader("Accept", "text/html,application/xhtml+xml"),
		hosts:  NewHostMatcher([]string{"amzn.to", "amazon.*"}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a scraper from the [scraper] config section.
func NewFromConfig(cfg config.Scraper, logger *slog.Logger) *HTTPScraper {
	opts := []Option{
		WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		WithUserAgent(cfg.UserAgent),
		WithLogger(logger),
	}
	if len(cfg.LinkHosts) > 0 {
		opts = append(opts, WithLinkHosts(cfg.LinkHosts...))
	}
	return New(opts...)
}

// Scrape fetches articleURL and returns its affiliate links.
func (s *HTTPScraper) Scrape(ctx context.Context, articleURL string) ([]CandidateURL, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()
	span.SetAttributes(attribute.String("article.url", articleURL))

	base, err := url.Parse(strings.TrimSpace(articleURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, services.Wrap(services.ErrValidation, services.StageScrape, "parse", fmt.Sprintf("article url %q must be an absolute http(s) URL", articleURL), err)
	}

	start := time.Now()
	res, err := s.http.R().SetContext(ctx).Get(base.String())
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, services.Wrap(services.ErrScrape, services.StageScrape, "fetch", fmt.Sprintf("latency=%v", latency), err)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, services.Wrap(services.ErrScrape, services.StageScrape, "fetch", fmt.Sprintf("article returned %d (latency=%v)", res.StatusCode(), latency), nil)
	}

	if final := res.RawResponse; final != nil && final.Request != nil && final.Request.URL != nil {
		base = final.Request.URL
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		return nil, services.Wrap(services.ErrScrape, services.StageScrape, "parse", "article html", err)
	}

	links := ExtractLinks(doc, base, s.hosts)
	span.SetAttributes(attribute.Int("article.links", len(links)))
	s.logger.Info("article scraped",
		logging.String("url", articleURL),
		logging.Int("links", len(links)),
		logging.Duration("latency", latency),
	)
	return links, nil
}

// ExtractLinks walks every anchor in doc and keeps those pointing at an
// affiliate host. Relative hrefs are resolved against base.
func ExtractLinks(doc *goquery.Document, base *url.URL, hosts HostMatcher) []CandidateURL {
	links := []CandidateURL{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		target, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			target = base.ResolveReference(target)
		}
		if target.Scheme != "http" && target.Scheme != "https" {
			return
		}
		if !hosts.Match(target.Hostname()) {
			return
		}
		links = append(links, CandidateURL{URL: target.String(), Text: anchorText(sel)})
	})
	return links
}

func anchorText(sel *goquery.Selection) string {
	if text := textutil.NormalizeLinkText(sel.Text()); text != "" {
		return text
	}
	if title, ok := sel.Attr("title"); ok {
		if text := textutil.NormalizeLinkText(title); text != "" {
			return text
		}
	}
	if alt, ok := sel.Find("img[alt]").First().Attr("alt"); ok {
		return textutil.NormalizeLinkText(alt)
	}
	return ""
}
