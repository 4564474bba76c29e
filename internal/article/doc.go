// Package article fetches a blog article and lists the affiliate links it
// contains, in document order.
//
// Each link becomes a CandidateURL carrying the href and the visible anchor
// text. Duplicated links are kept because output order mirrors the article.
package article
