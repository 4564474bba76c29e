// Package textutil provides text cleanup helpers for scraped anchor text and
// terminal output.
//
// Anchor text pulled out of article HTML arrives with non-breaking spaces,
// compatibility glyphs and ragged whitespace. NormalizeLinkText folds it to a
// single-line NFKC form so identical links render identically across runs.
package textutil
