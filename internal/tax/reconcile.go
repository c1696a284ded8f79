package tax

import "math"

// DiscrepancyTolerance is the largest gap, in euros, between the extracted
// and the recomputed IVA amount that is still attributed to rounding.
const DiscrepancyTolerance = 0.05

// Reconcile recomputes the IVA amount from the base and the rate and compares
// it against the extracted/claimed amount. The calculated value is always the
// value of record: upstream extraction misreads amounts far more often than
// it misreads bases and rates. The discrepancy flag is surfaced so the caller
// can have a human sanity-check the entry even though it was auto-corrected.
func Reconcile(base float64, tipoIVA int, claimed float64) (corrected float64, discrepancy bool) {
	corrected = Round2(base * float64(tipoIVA) / 100)
	discrepancy = math.Abs(claimed-corrected) > DiscrepancyTolerance
	return corrected, discrepancy
}

// DeductibleCuota computes the deductible share of an IVA amount.
func DeductibleCuota(cuotaIVA float64, pct int) float64 {
	return Round2(cuotaIVA * float64(pct) / 100)
}

// Round2 rounds to 2 decimal places
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
