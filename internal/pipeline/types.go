package pipeline

import (
	"context"

	"linkcheck/internal/catalog"
	"linkcheck/internal/extract"
)

// Item names used when a link cannot be joined to a catalog outcome.
const (
	ItemNameUnprocessed     = "unprocessed"
	ItemNameNotFound        = "Item not found - check link manually"
	ItemNameNoIdentifier    = "Unresolved - no product identifier found"
	ItemNameNoCatalogResult = "Unresolved - no catalog result"
)

// URLEntry is the extraction outcome for one distinct raw URL.
type URLEntry struct {
	ASIN          string `json:"asin"`
	Tag           string `json:"tag"`
	ItemName      string `json:"itemName"`
	ValidOnAmazon bool   `json:"validOnAmazon"`
}

// ASINEntry is the catalog outcome for one ASIN.
type ASINEntry struct {
	Valid     bool   `json:"valid"`
	ItemName  string `json:"itemName"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// DisplayRecord is the per-link result delivered to clients.
type DisplayRecord struct {
	URLText       string `json:"urlText"`
	ItemName      string `json:"itemName"`
	Tag           string `json:"tag"`
	URL           string `json:"url"`
	ValidOnAmazon bool   `json:"validOnAmazon"`
	ASIN          string `json:"asin,omitempty"`
}

// ReconcileStats summarizes a reconciliation.
type ReconcileStats struct {
	Requested int            `json:"requested"`
	Batches   int            `json:"batches"`
	Resolved  int            `json:"resolved"`
	Invalid   int            `json:"invalid"`
	Dropped   int            `json:"dropped"`
	Missing   int            `json:"missing"`
	Errors    map[string]int `json:"errors,omitempty"`
}

// Extractor resolves one URL to identifiers.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) extract.Result
}

// Catalog performs bulk item lookups.
type Catalog interface {
	GetItems(ctx context.Context, creds catalog.Credentials, req catalog.GetItemsRequest) (*catalog.GetItemsResponse, error)
}

// Sink receives display records in order.
type Sink interface {
	Send(ctx context.Context, record DisplayRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, record DisplayRecord) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, record DisplayRecord) error {
	return f(ctx, record)
}

// Reporter is a Sink that is also told how many links were scraped.
type Reporter interface {
	Sink
	URLsScraped(ctx context.Context, count int) error
}
