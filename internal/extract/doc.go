// Package extract turns a single affiliate URL into its product identifier
// (ASIN) and affiliate tag.
//
// Long-form Amazon URLs are parsed directly. Shortened amzn.to links are first
// expanded through a Resolver and the destination is parsed with a stricter
// path-segment pattern. Extraction never fails: unresolvable links yield an
// empty ASIN and the "no tag found" sentinel so the pipeline can still report
// them.
package extract
