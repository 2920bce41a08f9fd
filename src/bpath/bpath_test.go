package bpath

import (
	"testing"

	"ustr"
)

func TestCanonicalizeDotDot(t *testing.T) {
	got := Canonicalize(ustr.Ustr("/a/./b/../c"))
	want := Canonicalize(ustr.Ustr("/a/c"))
	if !got.Eq(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseAboveRootFails(t *testing.T) {
	_, err := Parse(ustr.Ustr("/../x"))
	if err == 0 {
		t.Fatal("expected error ascending above root")
	}
}

func TestValid83(t *testing.T) {
	cases := map[string]bool{
		"FOO.TXT":     true,
		"FOO":         true,
		"TOOLONGNAME.TXT": false,
		"F.TOOLONG":   false,
		"A.B.C":       false,
		"":            false,
	}
	for name, want := range cases {
		if got := Valid83(name); got != want {
			t.Errorf("Valid83(%q) = %v, want %v", name, got, want)
		}
	}
}
