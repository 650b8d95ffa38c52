package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"autoxdcc/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Axdcc", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Axdcc:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Axdcc", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderStatusLinesSeverity(t *testing.T) {
	lines := renderStatusLines([]api.StatusLine{
		{Label: "Packlists", Severity: "warn", Detail: "none configured"},
		{Label: "Notifications", Severity: "bogus", Detail: "disabled"},
	}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[WARN] none configured") {
		t.Fatalf("unexpected warn line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[INFO] disabled") {
		t.Fatalf("unknown severity should render as info, got %q", lines[1])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFormatStatusLabel(t *testing.T) {
	tests := map[string]string{
		"COMPLETE": "Complete",
		" failed ": "Failed",
		"":         "Unknown",
	}
	for in, want := range tests {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildCountRowsSorted(t *testing.T) {
	rows := buildCountRows(map[string]int{"FAILED": 2, "COMPLETE": 5})
	if len(rows) != 2 || rows[0][0] != "Complete" || rows[0][1] != "5" || rows[1][0] != "Failed" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestBuildDownloadRows(t *testing.T) {
	rows := buildDownloadRows([]api.Download{
		{Packlist: "horrible", PackNumber: 4, Filename: "a.mkv", SizeText: "350M", Status: "COMPLETE", CreatedAt: "c", UpdatedAt: "u"},
		{Packlist: "horrible", PackNumber: 5, Filename: "b.mkv", Size: 42, Status: "FAILED", CreatedAt: "c", Error: "timeout"},
	})
	if rows[0][0] != "u" || rows[0][2] != "#4" || rows[0][4] != "350M" || rows[0][5] != "Complete" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1][0] != "c" || rows[1][4] != "42" || rows[1][6] != "timeout" {
		t.Fatalf("unexpected second row %v", rows[1])
	}
}
