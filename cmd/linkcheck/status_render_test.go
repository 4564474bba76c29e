package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-terminal writer to disable color")
	}
}

func TestOutcomeKind(t *testing.T) {
	tests := []struct {
		name                           string
		valid, total, dropped, missing int
		want                           statusKind
	}{
		{name: "all valid", valid: 3, total: 3, want: statusOK},
		{name: "dead link", valid: 2, total: 3, want: statusWarn},
		{name: "nothing found", want: statusInfo},
		{name: "unattributed error", valid: 3, total: 3, dropped: 1, want: statusError},
		{name: "missing item", valid: 1, total: 3, missing: 1, want: statusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := outcomeKind(tc.valid, tc.total, tc.dropped, tc.missing); got != tc.want {
				t.Fatalf("outcomeKind = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRenderStatusLineUnknownKindFallsBackToInfo(t *testing.T) {
	got := renderStatusLine("Runs", statusKind(99), "idle", false)
	requireContains(t, got, "[INFO] idle")
}
