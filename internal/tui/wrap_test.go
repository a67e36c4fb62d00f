package tui

import (
	"reflect"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrapTextBreaksOnSpaces(t *testing.T) {
	got := wrapText("take a short walk now", 10)
	want := []string{"take a", "short walk", "now"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	got := wrapText("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextKeepsParagraphs(t *testing.T) {
	got := wrapText("one\ntwo", 20)
	want := []string{"one", "two"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextCountsWideRunes(t *testing.T) {
	lines := wrapText("集中 時間 です", 5)
	for _, line := range lines {
		if w := runewidth.StringWidth(line); w > 5 {
			t.Fatalf("line %q is %d cells wide", line, w)
		}
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Time for a break", 8); runewidth.StringWidth(got) > 8 {
		t.Fatalf("truncated text too wide: %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected untouched text, got %q", got)
	}
	if got := truncate("short", 0); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
