package store

import (
	"testing"
	"time"
)

func TestMonthYearFromCurrentInstallment(t *testing.T) {
	now := time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		currentInstallment int
		wantMonth          int
		wantYear           int
	}{
		{1, 7, 2026},
		{2, 6, 2026},
		{7, 1, 2026},
		{8, 12, 2025},
	}

	for _, c := range cases {
		month, year := MonthYearFromCurrentInstallment(now, c.currentInstallment)
		if month != c.wantMonth || year != c.wantYear {
			t.Errorf("MonthYearFromCurrentInstallment(current=%d) = (%d, %d), want (%d, %d)",
				c.currentInstallment, month, year, c.wantMonth, c.wantYear)
		}
	}
}
