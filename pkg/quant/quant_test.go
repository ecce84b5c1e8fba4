package quant

import "testing"

func TestParseFixed(t *testing.T) {
	cases := []struct {
		in        string
		precision int
		want      int64
	}{
		{"1.23", 6, 1230000},
		{"0.0001", 4, 1},
		{"100", 2, 10000},
		{"-2.5", 2, -250},
		{"0.123456789", 6, 123456},
		{"", 6, 0},
		{"null", 6, 0},
	}

	for _, c := range cases {
		got := ParseFixed(c.in, c.precision)
		if got != c.want {
			t.Errorf("ParseFixed(%q, %d) = %d, want %d", c.in, c.precision, got, c.want)
		}
	}
}

func TestPow10(t *testing.T) {
	if Pow10(0) != 1 {
		t.Errorf("Pow10(0) = %d, want 1", Pow10(0))
	}
	if Pow10(4) != 10000 {
		t.Errorf("Pow10(4) = %d, want 10000", Pow10(4))
	}
	if Pow10(-1) != 1 {
		t.Errorf("Pow10(-1) = %d, want 1", Pow10(-1))
	}
}

func TestUnitsRoundTrip(t *testing.T) {
	scale := Pow10(4)
	u := ToUnits(0.1234, scale)
	if u != 1234 {
		t.Fatalf("ToUnits(0.1234) = %d, want 1234", u)
	}
	if FromUnits(u, scale) != 0.1234 {
		t.Errorf("FromUnits(%d) = %f, want 0.1234", u, FromUnits(u, scale))
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(1234, 4); got != "0.1234" {
		t.Errorf("FormatUnits(1234, 4) = %q, want 0.1234", got)
	}
}

func TestPrecisionFromStep(t *testing.T) {
	cases := []struct {
		step float64
		want int
	}{
		{0.0001, 4},
		{0.01, 2},
		{1.0, 0},
		{0, 0},
	}
	for _, c := range cases {
		if got := PrecisionFromStep(c.step); got != c.want {
			t.Errorf("PrecisionFromStep(%v) = %d, want %d", c.step, got, c.want)
		}
	}
}

func FuzzParseFixed(f *testing.F) {
	f.Add("1.23", 6)
	f.Add("-0.0001", 8)
	f.Add("99999999.99999999", 8)

	f.Fuzz(func(t *testing.T, s string, precision int) {
		if precision < 0 || precision > 8 {
			return
		}
		// Must not panic regardless of input.
		_ = ParseFixed(s, precision)
	})
}
