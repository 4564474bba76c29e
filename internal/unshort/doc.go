// Package unshort expands shortened links by walking their redirect chain one
// hop at a time.
//
// The resolver issues HEAD requests and falls back to GET for servers that
// reject HEAD. It stops as soon as the chain leaves the shortener hosts, so
// destination sites are never contacted, and gives up after a configurable
// number of hops.
package unshort
