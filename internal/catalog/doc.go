// Package catalog is a client for the Product Advertising API 5.0 GetItems
// operation.
//
// Requests are JSON bodies signed with AWS Signature Version 4 under the
// "ProductAdvertisingAPI" service name. The marketplace selects the API host
// and signing region. Credentials are supplied per call because each live
// session brings its own associate account.
//
// Per-item failures (unknown or inaccessible ASINs) are returned in the
// response's Errors list rather than as Go errors; ErrorLabel maps their codes
// to operator-facing text.
package catalog
