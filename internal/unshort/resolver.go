package unshort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/services"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 10
)

// DefaultShortenerHosts lists hosts whose redirects are followed.
var DefaultShortenerHosts = []string{"amzn.to"}

// Resolver expands short links.
type Resolver struct {
	http         *resty.Client
	maxRedirects int
	shorteners   map[string]struct{}
	logger       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each hop.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.http.SetTimeout(timeout)
		}
	}
}

// WithMaxRedirects caps the number of hops followed.
func WithMaxRedirects(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxRedirects = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every hop.
func WithUserAgent(agent string) Option {
	return func(r *Resolver) {
		if agent = strings.TrimSpace(agent); agent != "" {
			r.http.SetHeader("User-Agent", agent)
		}
	}
}

// WithShortenerHosts replaces the set of hosts whose redirects are followed.
// Hosts are compared including any port.
func WithShortenerHosts(hosts ...string) Option {
	return func(r *Resolver) {
		r.shorteners = hostSet(hosts)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logging.NewComponentLogger(logger, "unshort")
	}
}

// New constructs a Resolver.
func New(opts ...Option) *Resolver {
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	r := &Resolver{
		http:         client,
		maxRedirects: defaultMaxRedirects,
		shorteners:   hostSet(DefaultShortenerHosts),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig builds a Resolver from the [resolver] config section.
func NewFromConfig(cfg config.Resolver, logger *slog.Logger) *Resolver {
	return New(
		WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		WithMaxRedirects(cfg.MaxRedirects),
		WithUserAgent(cfg.UserAgent),
		WithLogger(logger),
	)
}

// Expand follows shortURL's redirects and returns the first destination
// outside the shortener hosts. It returns "" with a nil error when the link
// does not redirect anywhere.
func (r *Resolver) Expand(ctx context.Context, shortURL string) (string, error) {
	current, err := url.Parse(strings.TrimSpace(shortURL))
	if err != nil || current.Host == "" {
		return "", services.Wrap(services.ErrValidation, services.StageResolve, "parse", fmt.Sprintf("invalid short link %q", shortURL), err)
	}

	for hop := 0; hop <= r.maxRedirects; hop++ {
		location, err := r.next(ctx, current.String())
		if err != nil {
			return "", err
		}
		if location == "" {
			if hop == 0 {
				return "", nil
			}
			return current.String(), nil
		}
		target, err := current.Parse(location)
		if err != nil {
			return "", services.Wrap(services.ErrResolve, services.StageResolve, "follow", fmt.Sprintf("bad Location %q", location), err)
		}
		r.logger.Debug("redirect hop",
			logging.Int("hop", hop+1),
			logging.String("from", current.String()),
			logging.String("to", target.String()),
		)
		if !r.isShortener(target.Host) {
			return target.String(), nil
		}
		current = target
	}
	return "", services.Wrap(services.ErrResolve, services.StageResolve, "follow", fmt.Sprintf("more than %d redirects", r.maxRedirects), nil)
}

// next performs one hop and returns the Location of a redirect response, or
// "" when the response is final.
func (r *Resolver) next(ctx context.Context, target string) (string, error) {
	resp, err := r.do(ctx, http.MethodHead, target)
	if err == nil && (resp.StatusCode() == http.StatusMethodNotAllowed || resp.StatusCode() == http.StatusNotImplemented) {
		resp, err = r.do(ctx, http.MethodGet, target)
	}
	if err != nil {
		return "", err
	}
	if !isRedirect(resp.StatusCode()) {
		return "", nil
	}
	return strings.TrimSpace(resp.Header().Get("Location")), nil
}

func (r *Resolver) do(ctx context.Context, method, target string) (*resty.Response, error) {
	start := time.Now()
	resp, err := r.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Execute(method, target)
	latency := time.Since(start)
	if resp != nil && resp.RawBody() != nil {
		resp.RawBody().Close()
	}
	if err != nil {
		marker := services.ErrResolve
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, services.StageResolve, method, fmt.Sprintf("request %s (latency=%v)", target, latency), err)
	}
	return resp, nil
}

func (r *Resolver) isShortener(host string) bool {
	_, ok := r.shorteners[strings.ToLower(host)]
	return ok
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

func hostSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}
