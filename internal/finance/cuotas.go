package finance

import "github.com/facturaIA/autonomo-tax-service/internal/tax"

// TarifaPlanaCuota is the flat-rate monthly Social Security quota for new
// freelancers while their window is active.
const TarifaPlanaCuota = 80.0

// ssBracket maps a net monthly income range to the RETA 2025 monthly quota.
type ssBracket struct {
	From  float64
	To    float64 // exclusive; the top bracket is open-ended
	Cuota float64
}

// ssBrackets2025 is the RETA table for 2025, 15 brackets.
var ssBrackets2025 = []ssBracket{
	{0, 670, 200},
	{670, 900, 275},
	{900, 1166.70, 291},
	{1166.70, 1300, 294},
	{1300, 1500, 350},
	{1500, 1700, 370},
	{1700, 1850, 390},
	{1850, 2030, 415},
	{2030, 2330, 490},
	{2330, 2760, 530},
	{2760, 3190, 610},
	{3190, 3620, 700},
	{3620, 4050, 850},
	{4050, 6000, 1000},
	{6000, 0, 1267},
}

// irpfBracket is one slice of the progressive IRPF 2025 table.
type irpfBracket struct {
	From float64
	To   float64 // 0 means open-ended
	Rate float64
}

// irpfBrackets2025 holds the annual IRPF brackets. The quarterly projection
// calculators never consult this table; they use the flat IRPFProvisionRate.
var irpfBrackets2025 = []irpfBracket{
	{0, 12450, 0.19},
	{12450, 20200, 0.24},
	{20200, 35200, 0.30},
	{35200, 60000, 0.37},
	{60000, 0, 0.45},
}

// CuotaSS returns the monthly Social Security quota for a net monthly income.
// An active tarifa plana overrides the bracket table. Income above the top
// bracket pays the top quota.
func CuotaSS(netMonthlyIncome float64, tarifaPlana, tarifaPlanaActive bool) float64 {
	if tarifaPlana && tarifaPlanaActive {
		return TarifaPlanaCuota
	}
	for _, b := range ssBrackets2025 {
		if b.To == 0 || (netMonthlyIncome >= b.From && netMonthlyIncome < b.To) {
			return b.Cuota
		}
	}
	return ssBrackets2025[len(ssBrackets2025)-1].Cuota
}

// IRPFEstimate computes the annual income tax over a net yearly profit using
// the progressive bracket table. Annual projection only; the quarterly
// prepayment keeps its flat 20%.
func IRPFEstimate(annualProfit float64) float64 {
	if annualProfit <= 0 {
		return 0
	}
	var due float64
	for _, b := range irpfBrackets2025 {
		if annualProfit <= b.From {
			break
		}
		upper := annualProfit
		if b.To > 0 && upper > b.To {
			upper = b.To
		}
		due += (upper - b.From) * b.Rate
	}
	return tax.Round2(due)
}
