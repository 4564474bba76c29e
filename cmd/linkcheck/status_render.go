package main

import (
	"fmt"
	"io"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

type kindStyle struct {
	tag   string
	color string
}

var kindStyles = map[statusKind]kindStyle{
	statusInfo:  {tag: "INFO", color: ansiBlue},
	statusOK:    {tag: "OK", color: ansiGreen},
	statusWarn:  {tag: "WARN", color: ansiYellow},
	statusError: {tag: "ERROR", color: ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := kindStyles[kind]
	if !ok {
		style = kindStyles[statusInfo]
	}
	text := "[" + style.tag + "]"
	if message != "" {
		text += " " + message
	}
	line := renderValueLine(label, text)
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

func renderValueLine(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

// outcomeKind grades a finished check. Catalog errors that could not be tied
// to a link, or items the catalog never answered for, outrank dead links.
func outcomeKind(valid, total, dropped, missing int) statusKind {
	switch {
	case dropped > 0 || missing > 0:
		return statusError
	case valid < total:
		return statusWarn
	case total == 0:
		return statusInfo
	default:
		return statusOK
	}
}

type fdWriter interface {
	Fd() uintptr
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
