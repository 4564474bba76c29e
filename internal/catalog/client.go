package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/services"
)

const (
	signingService = "ProductAdvertisingAPI"
	getItemsPath   = "/paapi5/getitems"
	getItemsTarget = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.GetItems"
	maxErrorBody   = 4096
)

// APIError is a request-level failure reported by the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("catalog api returned %d", e.Status)
	}
	return fmt.Sprintf("catalog api returned %d: %s: %s", e.Status, e.Code, e.Message)
}

// Client calls GetItems.
type Client struct {
	httpClient *http.Client
	endpoint   string
	signer     *v4.Signer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithEndpoint sends requests to a fixed base URL instead of the
// marketplace's API host. The marketplace still selects the signing region.
func WithEndpoint(baseURL string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithClock overrides the signing clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "catalog")
	}
}

// New creates a catalog client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		signer:     v4.NewSigner(),
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the [catalog] config section. A host
// override without a scheme is treated as https.
func NewFromConfig(cfg config.Catalog, logger *slog.Logger) *Client {
	opts := []Option{
		WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		WithLogger(logger),
	}
	if host := strings.TrimSpace(cfg.Host); host != "" {
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		opts = append(opts, WithEndpoint(host))
	}
	return New(opts...)
}

// GetItems looks up at most MaxItemIDs items. Per-item failures are returned
// in the response's Errors list; a non-nil error means the call as a whole
// failed.
func (c *Client) GetItems(ctx context.Context, creds Credentials, req GetItemsRequest) (*GetItemsResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if len(req.ItemIDs) == 0 {
		return nil, services.Wrap(services.ErrValidation, services.StageCatalog, "GetItems", "no item ids", nil)
	}
	if len(req.ItemIDs) > MaxItemIDs {
		return nil, services.Wrap(services.ErrValidation, services.StageCatalog, "GetItems", fmt.Sprintf("%d item ids exceeds limit of %d", len(req.ItemIDs), MaxItemIDs), nil)
	}
	market, _ := LookupMarketplace(creds.Marketplace)

	body, err := json.Marshal(wireRequest{
		ItemIDs:     req.ItemIDs,
		ItemIDType:  firstNonEmpty(req.ItemIDType, ItemIDTypeASIN),
		Condition:   firstNonEmpty(req.Condition, ConditionNew),
		Resources:   resourcesOrDefault(req.Resources),
		PartnerTag:  creds.PartnerTag,
		PartnerType: PartnerTypeAssociates,
		Marketplace: market.Domain,
	})
	if err != nil {
		return nil, fmt.Errorf("encode getitems request: %w", err)
	}

	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = "https://" + market.Host
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+getItemsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Content-Encoding", "amz-1.0")
	httpReq.Header.Set("X-Amz-Target", getItemsTarget)

	if err := c.sign(ctx, httpReq, creds, body, market.Region); err != nil {
		return nil, services.Wrap(services.ErrCatalog, services.StageCatalog, "sign", "", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	latency := time.Since(requestStart)
	if err != nil {
		marker := services.ErrCatalog
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, services.StageCatalog, "GetItems", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, services.Wrap(services.ErrCatalog, services.StageCatalog, "GetItems", "read response", readErr)
	}

	var decoded GetItemsResponse
	decodeErr := json.Unmarshal(payload, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && onlyItemErrors(decoded.Errors) {
			c.logger.Debug("getitems returned item errors only",
				logging.Int("status", resp.StatusCode),
				logging.Int("errors", len(decoded.Errors)),
				logging.Duration("latency", latency),
			)
			return &decoded, nil
		}
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && len(decoded.Errors) > 0 {
			apiErr.Code = decoded.Errors[0].Code
			apiErr.Message = decoded.Errors[0].Message
		} else {
			apiErr.Message = truncate(string(payload), maxErrorBody)
		}
		return nil, services.Wrap(services.ErrCatalog, services.StageCatalog, "GetItems", fmt.Sprintf("latency=%v", latency), apiErr)
	}
	if decodeErr != nil {
		return nil, services.Wrap(services.ErrCatalog, services.StageCatalog, "GetItems", "decode response", decodeErr)
	}

	c.logger.Debug("getitems complete",
		logging.Int("requested", len(req.ItemIDs)),
		logging.Int("items", len(decoded.Items())),
		logging.Int("errors", len(decoded.Errors)),
		logging.Duration("latency", latency),
	)
	return &decoded, nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, creds Credentials, body []byte, region string) error {
	var provider aws.CredentialsProvider = credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")
	awsCreds, err := provider.Retrieve(ctx)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(body)
	return c.signer.SignHTTP(ctx, awsCreds, req, hex.EncodeToString(sum[:]), signingService, region, c.now())
}

func onlyItemErrors(errs []ErrorData) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !isItemLevel(e.Code) {
			return false
		}
	}
	return true
}

func resourcesOrDefault(resources []string) []string {
	if len(resources) == 0 {
		return DefaultResources
	}
	return resources
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
