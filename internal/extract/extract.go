package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"linkcheck/internal/logging"
)

// NoTag is reported when a URL carries no affiliate tag.
const NoTag = "no tag found"

var (
	shortLinkPattern = regexp.MustCompile(`https?://amzn\.to/[a-zA-Z0-9]+`)
	tagPattern       = regexp.MustCompile(`tag=([A-Za-z0-9-]{3,})`)
	longASINPattern  = regexp.MustCompile(`/\w{8,}[A-Z0-9]`)
	// Expanded destinations carry the ASIN as a whole upper-case path segment.
	destinationASINPattern = regexp.MustCompile(`/([A-Z0-9]{4,})(?:[/?#]|$)`)
)

// Resolver expands a shortened link to its final destination. An empty
// destination with a nil error means the link does not lead anywhere.
type Resolver interface {
	Expand(ctx context.Context, shortURL string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, shortURL string) (string, error)

// Expand calls f.
func (f ResolverFunc) Expand(ctx context.Context, shortURL string) (string, error) {
	return f(ctx, shortURL)
}

// Result is the identifier pair extracted from one URL.
type Result struct {
	ASIN string `json:"asin"`
	Tag  string `json:"tag"`
}

// Extractor parses affiliate URLs, expanding short links through a Resolver.
type Extractor struct {
	resolver Resolver
	logger   *slog.Logger
}

// New constructs an extractor. A nil resolver leaves short links unresolved.
func New(resolver Resolver, logger *slog.Logger) *Extractor {
	return &Extractor{
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "extract"),
	}
}

// Extract returns the ASIN and tag for rawURL. It never fails; faults while
// expanding a short link are logged and reported as an empty ASIN.
func (e *Extractor) Extract(ctx context.Context, rawURL string) Result {
	short, ok := ShortLink(rawURL)
	if !ok {
		return Result{ASIN: LongFormASIN(rawURL), Tag: Tag(rawURL)}
	}

	logger := logging.WithContext(ctx, e.logger)
	if e.resolver == nil {
		logging.WarnWithContext(logger, "short link skipped", "short_link_unresolved",
			logging.String("url", short),
			logging.String(logging.FieldErrorHint, "no redirect resolver configured"),
		)
		return Result{Tag: NoTag}
	}

	destination, err := e.resolver.Expand(ctx, short)
	if err != nil {
		logging.WarnWithContext(logger, "short link expansion failed", "short_link_unresolved",
			logging.String("url", short),
			logging.Error(err),
			logging.String(logging.FieldImpact, "link reported without product"),
		)
		return Result{Tag: NoTag}
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		logging.WarnWithContext(logger, "short link has no destination", "short_link_unresolved",
			logging.String("url", short),
			logging.String(logging.FieldErrorHint, "check the link in a browser"),
		)
		return Result{Tag: NoTag}
	}

	logger.Debug("short link expanded", logging.String("url", short), logging.String("destination", destination))
	return Result{ASIN: DestinationASIN(destination), Tag: Tag(destination)}
}

// ShortLink reports whether rawURL is an amzn.to link and returns the matched
// short URL, dropping anything after the code.
func ShortLink(rawURL string) (string, bool) {
	match := shortLinkPattern.FindString(rawURL)
	return match, match != ""
}

// Tag returns the affiliate tag carried by the URL or NoTag.
func Tag(rawURL string) string {
	match := tagPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return NoTag
	}
	return match[1]
}

// LongFormASIN extracts the identifier from a long-form product URL: the first
// path run of at least nine word characters ending in an upper-case letter or
// digit.
func LongFormASIN(rawURL string) string {
	match := longASINPattern.FindString(rawURL)
	return strings.TrimPrefix(match, "/")
}

// DestinationASIN extracts the identifier from an expanded short-link
// destination: the first path segment made entirely of at least four
// upper-case letters or digits.
func DestinationASIN(destination string) string {
	match := destinationASINPattern.FindStringSubmatch(destination)
	if match == nil {
		return ""
	}
	return match[1]
}
