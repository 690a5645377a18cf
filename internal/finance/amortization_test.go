package finance

import "testing"

func TestComputeCapacity(t *testing.T) {
	c := ComputeCapacity(25000, 200000)
	if c.MaxPayment != 7500 {
		t.Errorf("MaxPayment = %d; want 7500 (30%% of 25000)", c.MaxPayment)
	}
	if c.MaxTotal <= 200000 {
		t.Errorf("MaxTotal = %d; should exceed the down payment", c.MaxTotal)
	}
	if c.MaxTotal%10000 != 0 {
		t.Errorf("MaxTotal = %d; not rounded to 10,000", c.MaxTotal)
	}
}

func TestComputeCapacityRounding(t *testing.T) {
	c := ComputeCapacity(33333, 0)
	if c.MaxPayment%100 != 0 {
		t.Errorf("MaxPayment = %d; not rounded to 100", c.MaxPayment)
	}
	if c.MaxTotal%10000 != 0 {
		t.Errorf("MaxTotal = %d; not rounded to 10,000", c.MaxTotal)
	}
}

// Affordable total price is non-decreasing in both income and down payment.
func TestCapacityMonotonic(t *testing.T) {
	incomes := []int64{5000, 10000, 25000, 40000, 80000}
	downs := []int64{0, 50000, 200000, 500000}

	for _, d := range downs {
		prev := int64(-1)
		for _, inc := range incomes {
			c := ComputeCapacity(inc, d)
			if c.MaxTotal < prev {
				t.Errorf("capacity decreased with income: income=%d down=%d total=%d prev=%d", inc, d, c.MaxTotal, prev)
			}
			prev = c.MaxTotal
		}
	}
	for _, inc := range incomes {
		prev := int64(-1)
		for _, d := range downs {
			c := ComputeCapacity(inc, d)
			if c.MaxTotal < prev {
				t.Errorf("capacity decreased with down payment: income=%d down=%d total=%d prev=%d", inc, d, c.MaxTotal, prev)
			}
			prev = c.MaxTotal
		}
	}
}

func TestSimulateBelowMinimumIncome(t *testing.T) {
	if opts := Simulate(4999, 100000, ""); opts != nil {
		t.Errorf("expected no simulation below minimum income, got %d options", len(opts))
	}
}

func TestSimulateReturnsTopFour(t *testing.T) {
	opts := Simulate(25000, 200000, "")
	if len(opts) != TopOptions {
		t.Fatalf("got %d options; want %d", len(opts), TopOptions)
	}
	for _, o := range opts {
		if o.Principal%10000 != 0 || o.TotalPrice%10000 != 0 {
			t.Errorf("%s: principal/total not rounded to 10,000: %d / %d", o.Lender, o.Principal, o.TotalPrice)
		}
		if o.MonthlyPayment%100 != 0 {
			t.Errorf("%s: payment not rounded to 100: %d", o.Lender, o.MonthlyPayment)
		}
		if o.TotalPrice < o.Principal {
			t.Errorf("%s: total %d below principal %d", o.Lender, o.TotalPrice, o.Principal)
		}
	}
}

func TestSimulatePreferredLenderFirst(t *testing.T) {
	opts := Simulate(25000, 0, "Santander")
	if len(opts) == 0 {
		t.Fatal("expected options")
	}
	if opts[0].Lender != "Santander" || !opts[0].Preferred {
		t.Errorf("first option = %q (preferred=%v); want Santander promoted", opts[0].Lender, opts[0].Preferred)
	}
	// Remaining panel order is preserved.
	if opts[1].Lender != "BBVA" {
		t.Errorf("second option = %q; want BBVA", opts[1].Lender)
	}
}

func TestSimulateUnspecifiedPreferenceKeepsOrder(t *testing.T) {
	opts := Simulate(25000, 0, "Por definir")
	if opts[0].Lender != Panel[0].Name {
		t.Errorf("first option = %q; want default order (%q)", opts[0].Lender, Panel[0].Name)
	}
	for _, o := range opts {
		if o.Preferred {
			t.Errorf("%s marked preferred for unspecified preference", o.Lender)
		}
	}
}

func TestSimulateLongerTermLargerPrincipal(t *testing.T) {
	opts := Simulate(25000, 0, "Infonavit")
	// Infonavit: lower rate and a 30-year term, so the largest principal.
	first := opts[0]
	if first.Lender != "Infonavit" {
		t.Fatalf("first option = %q; want Infonavit", first.Lender)
	}
	for _, o := range opts[1:] {
		if o.Principal > first.Principal {
			t.Errorf("%s principal %d exceeds Infonavit %d", o.Lender, o.Principal, first.Principal)
		}
	}
}
