package catalog

import (
	"strings"

	"linkcheck/internal/services"
)

// Error codes returned for individual items.
const (
	CodeInvalidParameterValue = "InvalidParameterValue"
	CodeItemNotAccessible     = "CommerceService.ItemNotAccessible"
)

// Default request parameters.
const (
	ItemIDTypeASIN        = "ASIN"
	ConditionNew          = "New"
	PartnerTypeAssociates = "Associates"
	MaxItemIDs            = 10
)

// DefaultResources are the item resources requested by GetItems.
var DefaultResources = []string{"ItemInfo.Title", "Offers.Listings.Price"}

// Credentials identify the associate account a request is made for.
type Credentials struct {
	AccessKey   string
	SecretKey   string
	PartnerTag  string
	Marketplace string
}

// Validate ensures all fields are present and the marketplace is known.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AccessKey) == "" {
		missing = append(missing, "access key")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		missing = append(missing, "secret key")
	}
	if strings.TrimSpace(c.PartnerTag) == "" {
		missing = append(missing, "partner tag")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, services.StageRequest, "credentials", "missing "+strings.Join(missing, ", "), nil)
	}
	if _, ok := LookupMarketplace(c.Marketplace); !ok {
		return services.Wrap(services.ErrValidation, services.StageRequest, "credentials", "unknown marketplace "+c.Marketplace, nil)
	}
	return nil
}

// GetItemsRequest lists the items to look up.
type GetItemsRequest struct {
	ItemIDs    []string
	ItemIDType string
	Condition  string
	Resources  []string
}

// NewGetItemsRequest builds a request for ASINs with the default resources.
func NewGetItemsRequest(asins []string) GetItemsRequest {
	return GetItemsRequest{
		ItemIDs:    append([]string(nil), asins...),
		ItemIDType: ItemIDTypeASIN,
		Condition:  ConditionNew,
		Resources:  append([]string(nil), DefaultResources...),
	}
}

type wireRequest struct {
	ItemIDs     []string `json:"ItemIds"`
	ItemIDType  string   `json:"ItemIdType"`
	Condition   string   `json:"Condition,omitempty"`
	Resources   []string `json:"Resources"`
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Marketplace string   `json:"Marketplace"`
}

// DisplayValue wraps PA-API's localized string values.
type DisplayValue struct {
	DisplayValue string `json:"DisplayValue"`
}

// ItemInfo holds descriptive item fields.
type ItemInfo struct {
	Title *DisplayValue `json:"Title,omitempty"`
}

// Price is a listing price.
type Price struct {
	Amount        float64 `json:"Amount"`
	Currency      string  `json:"Currency"`
	DisplayAmount string  `json:"DisplayAmount"`
}

// Listing is one offer listing.
type Listing struct {
	Price *Price `json:"Price,omitempty"`
}

// Offers holds an item's listings.
type Offers struct {
	Listings []Listing `json:"Listings"`
}

// Item is a successfully resolved catalog item.
type Item struct {
	ASIN          string    `json:"ASIN"`
	DetailPageURL string    `json:"DetailPageURL,omitempty"`
	ItemInfo      *ItemInfo `json:"ItemInfo,omitempty"`
	Offers        *Offers   `json:"Offers,omitempty"`
}

// Title returns the display title or "".
func (i Item) Title() string {
	if i.ItemInfo == nil || i.ItemInfo.Title == nil {
		return ""
	}
	return i.ItemInfo.Title.DisplayValue
}

// Price returns the first listing's display amount or "".
func (i Item) Price() string {
	if i.Offers == nil {
		return ""
	}
	for _, l := range i.Offers.Listings {
		if l.Price != nil && l.Price.DisplayAmount != "" {
			return l.Price.DisplayAmount
		}
	}
	return ""
}

// ItemsResult wraps the resolved items.
type ItemsResult struct {
	Items []Item `json:"Items"`
}

// ErrorData is one per-item or request-level error.
type ErrorData struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// GetItemsResponse is the decoded GetItems payload.
type GetItemsResponse struct {
	ItemsResult *ItemsResult `json:"ItemsResult,omitempty"`
	Errors      []ErrorData  `json:"Errors,omitempty"`
}

// Items returns the resolved items, tolerating a missing ItemsResult.
func (r *GetItemsResponse) Items() []Item {
	if r == nil || r.ItemsResult == nil {
		return nil
	}
	return r.ItemsResult.Items
}

// ErrorLabel maps an item error code to the text shown to operators.
func ErrorLabel(code string) string {
	switch code {
	case CodeInvalidParameterValue:
		return "ITEM NOT IN API BUT MAY EXIST - check manually!"
	case CodeItemNotAccessible:
		return "DOG PAGE - fix this link!"
	default:
		return "Error retrieving item - check manually!"
	}
}

func isItemLevel(code string) bool {
	return code == CodeInvalidParameterValue || code == CodeItemNotAccessible
}
