package catalog

import (
	"sort"
	"strings"
)

// Marketplace locates the API endpoint for an Amazon storefront.
type Marketplace struct {
	Domain string
	Host   string
	Region string
}

var marketplaces = map[string]Marketplace{}

func init() {
	for _, m := range []Marketplace{
		{"www.amazon.com", "webservices.amazon.com", "us-east-1"},
		{"www.amazon.ca", "webservices.amazon.ca", "us-east-1"},
		{"www.amazon.com.mx", "webservices.amazon.com.mx", "us-east-1"},
		{"www.amazon.com.br", "webservices.amazon.com.br", "us-east-1"},
		{"www.amazon.co.uk", "webservices.amazon.co.uk", "eu-west-1"},
		{"www.amazon.de", "webservices.amazon.de", "eu-west-1"},
		{"www.amazon.fr", "webservices.amazon.fr", "eu-west-1"},
		{"www.amazon.it", "webservices.amazon.it", "eu-west-1"},
		{"www.amazon.es", "webservices.amazon.es", "eu-west-1"},
		{"www.amazon.nl", "webservices.amazon.nl", "eu-west-1"},
		{"www.amazon.se", "webservices.amazon.se", "eu-west-1"},
		{"www.amazon.pl", "webservices.amazon.pl", "eu-west-1"},
		{"www.amazon.com.tr", "webservices.amazon.com.tr", "eu-west-1"},
		{"www.amazon.ae", "webservices.amazon.ae", "eu-west-1"},
		{"www.amazon.sa", "webservices.amazon.sa", "eu-west-1"},
		{"www.amazon.in", "webservices.amazon.in", "eu-west-1"},
		{"www.amazon.eg", "webservices.amazon.eg", "eu-west-1"},
		{"www.amazon.com.be", "webservices.amazon.com.be", "eu-west-1"},
		{"www.amazon.co.jp", "webservices.amazon.co.jp", "us-west-2"},
		{"www.amazon.sg", "webservices.amazon.sg", "us-west-2"},
		{"www.amazon.com.au", "webservices.amazon.com.au", "us-west-2"},
	} {
		marketplaces[m.Domain] = m
	}
}

// LookupMarketplace finds a marketplace by storefront domain. The "www."
// prefix is optional and case is ignored.
func LookupMarketplace(domain string) (Marketplace, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return Marketplace{}, false
	}
	if !strings.HasPrefix(domain, "www.") {
		domain = "www." + domain
	}
	m, ok := marketplaces[domain]
	return m, ok
}

// Marketplaces returns every known marketplace sorted by domain.
func Marketplaces() []Marketplace {
	out := make([]Marketplace, 0, len(marketplaces))
	for _, m := range marketplaces {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
