// Package finance implements the loan affordability math for the credit
// qualification flow: annuity amortization, per-lender simulation and
// option ranking.
//
// Everything here is pure computation. Figures are indicative and always
// rounded (principal and total to the nearest 10,000, payments to the
// nearest 100) before they are shown or persisted.
package finance

import (
	"math"
	"strings"
)

// PaymentCapacityRatio is the share of monthly income available for a
// mortgage payment.
const PaymentCapacityRatio = 0.30

// MinMonthlyIncome is the floor below which no simulation is run.
const MinMonthlyIncome = 5000

// LenderTerms describe one lender's indicative offer.
type LenderTerms struct {
	Name       string
	AnnualRate float64 // e.g. 0.105 for 10.5%
	TermYears  int
}

// Panel is the fixed lender panel evaluated by every simulation,
// in default presentation order.
var Panel = []LenderTerms{
	{Name: "BBVA", AnnualRate: 0.105, TermYears: 20},
	{Name: "Banorte", AnnualRate: 0.108, TermYears: 20},
	{Name: "HSBC", AnnualRate: 0.112, TermYears: 20},
	{Name: "Santander", AnnualRate: 0.109, TermYears: 20},
	{Name: "Scotiabank", AnnualRate: 0.110, TermYears: 20},
	{Name: "Infonavit", AnnualRate: 0.1045, TermYears: 30},
}

// TopOptions is how many lender options a simulation surfaces.
const TopOptions = 4

// Option is one lender's simulated outcome for a given income and down
// payment.
type Option struct {
	Lender         string
	Principal      int64 // max loan, rounded to nearest 10,000
	TotalPrice     int64 // principal + down payment, rounded to nearest 10,000
	MonthlyPayment int64 // rounded to nearest 100
	TermYears      int
	AnnualRate     float64
	Preferred      bool
}

// maxPrincipal is the standard annuity present value: the largest loan a
// fixed monthly payment can service at rate i over m months.
func maxPrincipal(payment float64, annualRate float64, termYears int) float64 {
	i := annualRate / 12
	m := float64(termYears * 12)
	return payment * (1 - math.Pow(1+i, -m)) / i
}

// monthlyPayment is the annuity payment formula for principal p.
func monthlyPayment(p float64, annualRate float64, termYears int) float64 {
	i := annualRate / 12
	m := float64(termYears * 12)
	return p * (i * math.Pow(1+i, m)) / (math.Pow(1+i, m) - 1)
}

func roundTo(v float64, unit int64) int64 {
	return int64(math.Round(v/float64(unit))) * unit
}

// Simulate evaluates the lender panel for the given monthly income and
// down payment. A preferred lender (matched case-insensitively, ignoring
// the unspecified sentinel "Por definir") is promoted to rank 1. At most
// TopOptions results are returned.
func Simulate(monthlyIncome, downPayment int64, preferredLender string) []Option {
	if monthlyIncome < MinMonthlyIncome {
		return nil
	}
	capacity := float64(monthlyIncome) * PaymentCapacityRatio

	panel := make([]LenderTerms, len(Panel))
	copy(panel, Panel)

	preferred := strings.ToLower(preferredLender)
	if preferred != "" && preferred != "por definir" {
		for i, l := range panel {
			if strings.ToLower(l.Name) == preferred && i > 0 {
				promoted := panel[i]
				copy(panel[1:i+1], panel[:i])
				panel[0] = promoted
				break
			}
		}
	}

	n := TopOptions
	if n > len(panel) {
		n = len(panel)
	}
	options := make([]Option, 0, n)
	for _, l := range panel[:n] {
		p := maxPrincipal(capacity, l.AnnualRate, l.TermYears)
		options = append(options, Option{
			Lender:         l.Name,
			Principal:      roundTo(p, 10000),
			TotalPrice:     roundTo(p+float64(downPayment), 10000),
			MonthlyPayment: roundTo(monthlyPayment(p, l.AnnualRate, l.TermYears), 100),
			TermYears:      l.TermYears,
			AnnualRate:     l.AnnualRate,
			Preferred:      preferred != "" && preferred != "por definir" && strings.ToLower(l.Name) == preferred,
		})
	}
	return options
}

// Capacity summarizes affordability at the reference rate (10.5% over
// 20 years), independent of any one lender.
type Capacity struct {
	MaxTotal   int64 // loan + down payment, rounded to nearest 10,000
	MaxPayment int64 // monthly, rounded to nearest 100
}

// referenceRate and referenceTerm anchor the aggregate capacity figure
// used for inventory filtering.
const (
	referenceRate      = 0.105
	referenceTermYears = 20
)

// ComputeCapacity derives the aggregate purchasing capacity persisted on
// the lead. Never hand-set this figure; recompute whenever income or
// down payment changes.
func ComputeCapacity(monthlyIncome, downPayment int64) Capacity {
	payment := float64(monthlyIncome) * PaymentCapacityRatio
	p := maxPrincipal(payment, referenceRate, referenceTermYears)
	return Capacity{
		MaxTotal:   roundTo(p+float64(downPayment), 10000),
		MaxPayment: roundTo(payment, 100),
	}
}
