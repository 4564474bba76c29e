// Package pipeline implements the link-resolution and batch-reconciliation
// flow behind every check.
//
// A Run owns two lookup tables for the lifetime of a single check: raw URL to
// extracted identifiers, and ASIN to catalog outcome. CollectASINs fills the
// first sequentially, Reconcile fills the second from batched GetItems calls,
// and Emit joins both back onto the original link order and pushes one
// DisplayRecord per link to a Sink.
//
// Runner strings the steps together with the article scraper and reports
// progress to the caller. Every step honours context cancellation between
// links and batches; a cancelled run stops emitting at the next checkpoint.
package pipeline
