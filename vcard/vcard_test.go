package vcard

import (
	"strings"
	"testing"
)

func TestGenerateSplitsName(t *testing.T) {
	got := Generate(Card{Name: "Ada Byron King Lovelace", Email: "ada@example.org", Company: "Analytical"})
	want := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:Ada Byron King Lovelace",
		"N:Lovelace;Ada;Byron King;;",
		"ORG:Analytical",
		"EMAIL:ada@example.org",
		"END:VCARD",
	}, "\n")
	if got != want {
		t.Fatalf("vCard mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerateSingleName(t *testing.T) {
	got := Generate(Card{Name: "Plato", JobTitle: "Philosopher"})
	if !strings.Contains(got, "N:;Plato;;;") || !strings.Contains(got, "TITLE:Philosopher") {
		t.Fatalf("unexpected vCard: %s", got)
	}
	if strings.Contains(got, "EMAIL:") {
		t.Fatalf("empty email must be omitted: %s", got)
	}
}
