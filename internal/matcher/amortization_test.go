package matcher

import (
	"math"
	"testing"
)

func TestPriceRateRoundTrip(t *testing.T) {
	pv := 50000.0

	for _, n := range []int{12, 36, 60, 120, 240} {
		for _, i := range []float64{0.001, 0.01, 0.05, 0.10} {
			pmt := pricePMT(pv, n, i)
			got, ok := priceMonthlyRatePercent(pv, n, pmt)
			if !ok {
				t.Fatalf("priceMonthlyRatePercent(n=%d, i=%v) returned ok=false", n, i)
			}
			want := i * 100
			if math.Abs(got-want) > 1e-4*100 {
				t.Errorf("n=%d i=%v: priceMonthlyRatePercent round-trip = %v, want ~%v", n, i, got, want)
			}
		}
	}
}

func TestPriceRateAtZeroUsesDegeneratePMT(t *testing.T) {
	pv, n := 12000.0, 12
	pmt := pricePMT(pv, n, 0)
	want := pv / float64(n)
	if pmt != want {
		t.Fatalf("pricePMT(i=0) = %v, want %v", pmt, want)
	}
}

func TestSacRateExact(t *testing.T) {
	// total=60000, n=60, current=1, installment covers amortization+interest
	totalValue := 60000.0
	n := 60
	current := 1
	amortization := totalValue / float64(n)
	installmentAmount := amortization + totalValue*0.015 // 1.5% interest on first balance (the full principal at current=1)

	rate, ok := sacMonthlyRatePercent(totalValue, n, current, installmentAmount)
	if !ok {
		t.Fatal("sacMonthlyRatePercent returned ok=false")
	}
	if math.Abs(rate-1.5) > 1e-9 {
		t.Errorf("sacMonthlyRatePercent = %v, want 1.5", rate)
	}
}

func TestSacRateNonPositiveBalanceRejected(t *testing.T) {
	_, ok := sacMonthlyRatePercent(1000, 10, 11, 100)
	if ok {
		t.Fatal("expected ok=false for remainingInstallments <= 0")
	}
}
