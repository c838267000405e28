package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWrapTextSplitsOnSpaces(t *testing.T) {
	lines := wrapText("the liver parenchyma appears normal", 12)
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > 12 {
			t.Errorf("line %q is %d runes wide", l, n)
		}
	}
	joined := strings.Join(lines, " ")
	if joined != "the liver parenchyma appears normal" {
		t.Errorf("wrapped text reads %q", joined)
	}
}

func TestWrapTextKeepsRunesIntact(t *testing.T) {
	// A long CJK run with no spaces must split between runes, never
	// inside one.
	text := strings.Repeat("간경변증소견없음", 5)
	lines := wrapText(text, 7)
	for _, l := range lines {
		if !utf8.ValidString(l) {
			t.Fatalf("line %q is not valid UTF-8", l)
		}
		if n := utf8.RuneCountInString(l); n > 7 {
			t.Errorf("line %q is %d runes wide", l, n)
		}
	}
	if strings.Join(lines, "") != text {
		t.Error("wrapping lost content")
	}
}

func TestWrapTextEmpty(t *testing.T) {
	lines := wrapText("", 10)
	if len(lines) != 1 || lines[0] != "" {
		t.Errorf("wrapText(\"\") = %q", lines)
	}
}
