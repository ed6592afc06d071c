package format

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1234567, "$1,234,567"},
		{0, "$0"},
		{999.49, "$999"},
		{2.5, "$3"},
		{-1234.5, "-$1,235"},
		{-0.2, "$0"},
		{1000000000, "$1,000,000,000"},
	}
	for _, tc := range cases {
		if got := Currency(tc.in); got != tc.want {
			t.Errorf("Currency(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1234567, "1,234,567"},
		{0, "0"},
		{1234.5, "1,234.5"},
		{12.3456, "12.346"},
		{-4200, "-4,200"},
	}
	for _, tc := range cases {
		if got := Number(tc.in); got != tc.want {
			t.Errorf("Number(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := Count(1234567); got != "1,234,567" {
		t.Errorf("Count = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", 100)
	if got := Truncate(short, 100); got != short {
		t.Fatalf("text at limit must be unchanged")
	}

	long := strings.Repeat("b", 150)
	got := Truncate(long, 100)
	if utf8.RuneCountInString(got) != 103 {
		t.Fatalf("expected 103 characters, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, Ellipsis) || !strings.HasPrefix(long, strings.TrimSuffix(got, Ellipsis)) {
		t.Fatalf("unexpected truncation %q", got)
	}

	// multi-byte text is cut on characters, not bytes
	accented := strings.Repeat("é", 120)
	if n := utf8.RuneCountInString(Truncate(accented, 100)); n != 103 {
		t.Fatalf("expected 103 runes, got %d", n)
	}

	if Truncate("", 100) != "" {
		t.Fatalf("empty input must yield empty output")
	}
	if Truncate("hello", 0) != "hello" {
		t.Fatalf("non-positive limit falls back to default")
	}
}

func TestTruncateValue(t *testing.T) {
	if TruncateValue(nil, 100) != "" {
		t.Fatalf("nil must yield empty string")
	}
	var nilStr *string
	if TruncateValue(nilStr, 100) != "" {
		t.Fatalf("nil pointer must yield empty string")
	}
	if TruncateValue(42.0, 100) != "" {
		t.Fatalf("non-string must yield empty string")
	}
	if got := TruncateValue("abcdef", 3); got != "abc..." {
		t.Fatalf("got %q", got)
	}
	if !Exceeds(strings.Repeat("x", 101), 100) || Exceeds("x", 100) {
		t.Fatalf("Exceeds mismatch")
	}
}
