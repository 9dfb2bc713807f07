package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUTORY DEDUCTIONS - Income tax and social contributions
// =============================================================================

const IncomeTaxCode = "income_tax"

// StatutoryResult holds the withholding lines. Each line is rounded once.
type StatutoryResult struct {
	IncomeTax     DeductionLine
	Contributions []DeductionLine
	Total         decimal.Decimal
}

// IncomeTax applies progressive brackets to base. Brackets must be sorted
// ascending. The sum of bracket slices is rounded once.
func IncomeTax(base decimal.Decimal, brackets []TaxBracket, scale int32) decimal.Decimal {
	owed := decimal.Zero
	for i, b := range brackets {
		if !base.GreaterThan(b.LowerBound) {
			break
		}
		upper := base
		if i+1 < len(brackets) {
			upper = minDecimal(base, brackets[i+1].LowerBound)
		}
		owed = owed.Add(upper.Sub(b.LowerBound).Mul(b.Rate))
	}
	return RoundMoney(owed, scale)
}

// Contribution applies the ceiling to gross, then the rate.
func Contribution(gross decimal.Decimal, scheme ContributionScheme, scale int32) DeductionLine {
	base := gross
	if scheme.Ceiling != nil {
		base = minDecimal(base, *scheme.Ceiling)
	}
	return DeductionLine{
		Code:   scheme.Code,
		Base:   base,
		Rate:   scheme.Rate,
		Amount: RoundMoney(base.Mul(scheme.Rate), scale),
	}
}

// CalculateStatutory computes every contribution and the income tax on
// gross. With TaxAfterContributions the tax base is gross minus the
// (rounded) contributions.
func CalculateStatutory(gross decimal.Decimal, rt *RuleTableVersion) StatutoryResult {
	scale := rt.CurrencyScale
	res := StatutoryResult{Total: decimal.Zero}

	contributed := decimal.Zero
	for _, scheme := range rt.Contributions {
		line := Contribution(gross, scheme, scale)
		res.Contributions = append(res.Contributions, line)
		contributed = contributed.Add(line.Amount)
	}

	taxBase := gross
	if rt.TaxAfterContributions {
		taxBase = maxDecimal(decimal.Zero, gross.Sub(contributed))
	}
	res.IncomeTax = DeductionLine{
		Code:   IncomeTaxCode,
		Base:   taxBase,
		Rate:   marginalRate(taxBase, rt.TaxBrackets),
		Amount: IncomeTax(taxBase, rt.TaxBrackets, scale),
	}

	res.Total = res.IncomeTax.Amount.Add(contributed)
	return res
}

// marginalRate is the marginal rate of the bracket base falls in, reported
// on the tax line for payslips.
func marginalRate(base decimal.Decimal, brackets []TaxBracket) decimal.Decimal {
	rate := decimal.Zero
	for _, b := range brackets {
		if !base.GreaterThan(b.LowerBound) {
			break
		}
		rate = b.Rate
	}
	return rate
}
