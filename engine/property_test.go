package engine_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
)

// TestNetIdentity verifies net == gross - total deductions for any salary,
// overtime and allowance mix.
func TestNetIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	eng := newTestEngine(testTable(), nil)

	properties.Property("net equals gross minus deductions", prop.ForAll(
		func(baseCents int64, overtimeMinutes int, allowanceCents int64) bool {
			profile := permanentProfile("0")
			profile.Category = engine.ContractProbation
			profile.BaseSalary = decimal.New(baseCents, -2)

			end := at(3, 18, overtimeMinutes)
			req := request(profile, workday(3, at(3, 9, 0), end, engine.StatusOnTime))
			req.Allowances = []engine.PayItem{{Code: "meal", Amount: decimal.New(allowanceCents, -2)}}

			out, err := eng.Calculate(context.Background(), req)
			if err != nil {
				return false
			}
			r := out.Result
			return r.NetSalary.Equal(r.GrossSalary.Sub(r.TotalDeductions)) &&
				!r.GrossSalary.IsNegative() &&
				!r.TotalDeductions.IsNegative()
		},
		gen.Int64Range(0, 100_000_000),
		gen.IntRange(0, 240),
		gen.Int64Range(0, 5_000_000),
	))

	properties.TestingRun(t)
}

// TestCalculateIdempotent verifies two runs over the same request agree.
func TestCalculateIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	eng := newTestEngine(testTable(), nil)

	properties.Property("same request gives same result", prop.ForAll(
		func(baseCents int64, lateMinutes int) bool {
			profile := permanentProfile("0")
			profile.Category = engine.ContractProbation
			profile.BaseSalary = decimal.New(baseCents, -2)
			req := request(profile, workday(4, at(4, 9, lateMinutes), at(4, 18, 0), engine.StatusLate))

			a, errA := eng.Calculate(context.Background(), req)
			b, errB := eng.Calculate(context.Background(), req)
			if errA != nil || errB != nil {
				return errA != nil && errB != nil
			}
			return a.Result.NetSalary.Equal(b.Result.NetSalary) &&
				a.Result.Provenance.InputHash == b.Result.Provenance.InputHash
		},
		gen.Int64Range(0, 50_000_000),
		gen.IntRange(0, 59),
	))

	properties.TestingRun(t)
}

// TestIncomeTaxMonotonic verifies tax never decreases as the base grows and
// is zero at or below the first taxed threshold.
func TestIncomeTaxMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	brackets := testTable().TaxBrackets

	properties.Property("tax(a) <= tax(a+delta)", prop.ForAll(
		func(baseCents, deltaCents int64) bool {
			a := decimal.New(baseCents, -2)
			b := a.Add(decimal.New(deltaCents, -2))
			return !engine.IncomeTax(a, brackets, 2).GreaterThan(engine.IncomeTax(b, brackets, 2))
		},
		gen.Int64Range(0, 50_000_000),
		gen.Int64Range(0, 10_000_000),
	))

	properties.Property("zero tax up to the first taxed threshold", prop.ForAll(
		func(baseCents int64) bool {
			return engine.IncomeTax(decimal.New(baseCents, -2), brackets, 2).IsZero()
		},
		gen.Int64Range(0, 3_000_000),
	))

	properties.TestingRun(t)
}

// TestOvertimeTierProgressivity verifies overtime pay grows with hours and
// never exceeds paying every hour at the top multiplier.
func TestOvertimeTierProgressivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	rt := testTable()
	hourly := d("937.5")
	top := rt.OvertimeTiers[len(rt.OvertimeTiers)-1].Multiplier
	bottom := rt.OvertimeTiers[0].Multiplier

	properties.Property("pay is monotonic in minutes", prop.ForAll(
		func(minutes, extra int) bool {
			a := engine.CalculateOvertime(minutes, hourly, rt).Pay
			b := engine.CalculateOvertime(minutes+extra, hourly, rt).Pay
			return !a.GreaterThan(b)
		},
		gen.IntRange(0, 3000),
		gen.IntRange(0, 600),
	))

	properties.Property("pay is bounded by bottom and top multipliers", prop.ForAll(
		func(minutes int) bool {
			base := decimal.NewFromInt(int64(minutes)).Mul(hourly)
			sixty := decimal.NewFromInt(60)
			pay := engine.CalculateOvertime(minutes, hourly, rt).Pay
			low := engine.RoundMoney(base.Mul(bottom).Div(sixty), 2)
			high := engine.RoundMoney(base.Mul(top).Div(sixty), 2)
			return !pay.LessThan(low) && !pay.GreaterThan(high)
		},
		gen.IntRange(0, 3000),
	))

	properties.TestingRun(t)
}
