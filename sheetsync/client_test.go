package sheetsync

import "testing"

func TestQuoteSheetTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Veiculos", "Veiculos"},
		{"fuel_log", "fuel_log"},
		{"Ordens de Serviço", "'Ordens de Serviço'"},
		{"Bob's Tab", "'Bob''s Tab'"},
		{"", "''"},
	}
	for _, c := range cases {
		if got := QuoteSheetTitle(c.in); got != c.want {
			t.Fatalf("QuoteSheetTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGrowLength(t *testing.T) {
	cases := []struct {
		current int64
		needed  int64
		want    int64
	}{
		// 200 data rows + header on a 50-row grid grows to 301.
		{50, 201, 251},
		{0, 1, 101},
		{201, 201, 0},
		{500, 201, 0},
		{100, 101, 101},
	}
	for _, c := range cases {
		got := growLength(c.current, c.needed)
		if got != c.want {
			t.Fatalf("growLength(%d, %d) = %d, want %d", c.current, c.needed, got, c.want)
		}
		if got > 0 && c.current+got < c.needed {
			t.Fatalf("growLength(%d, %d) leaves grid below the request", c.current, c.needed)
		}
	}
}

func TestRangeRef(t *testing.T) {
	if got := RangeRef("Ordens de Serviço", "A2:ZZ"); got != "'Ordens de Serviço'!A2:ZZ" {
		t.Fatalf("RangeRef = %q", got)
	}
	if got := RangeRef("Ordens", "1:1"); got != "Ordens!1:1" {
		t.Fatalf("RangeRef = %q", got)
	}
}
