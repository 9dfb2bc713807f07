/*
Package payslip renders payroll results as PDF payslips.

The layout is a single A4 page: header, earnings, attendance deductions,
statutory withholdings, totals and a provenance footer. Amounts are
printed exactly as stored in the result; nothing is recomputed here.
*/
package payslip

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
)

// Employee is the identity printed on the payslip header.
type Employee struct {
	Name  string
	Email string
}

// Renderer builds payslip PDFs. The zero value is ready to use.
type Renderer struct {
	Company string
}

const (
	labelWidth  = 120.0
	amountWidth = 60.0
	lineHeight  = 7.0
)

// Render returns the PDF bytes for one result.
func (r Renderer) Render(emp Employee, out engine.Outcome) ([]byte, error) {
	res := out.Result
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Payslip %s %s", res.EmployeeID, res.Period), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	title := "Payslip"
	if r.Company != "" {
		title = r.Company + " - Payslip"
	}
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, lineHeight, fmt.Sprintf("Employee: %s (%s)", emp.Name, res.EmployeeID))
	pdf.Ln(lineHeight)
	if emp.Email != "" {
		pdf.Cell(0, lineHeight, fmt.Sprintf("Email: %s", emp.Email))
		pdf.Ln(lineHeight)
	}
	pdf.Cell(0, lineHeight, fmt.Sprintf("Period: %s to %s",
		res.Period.Start().Format("2006-01-02"), res.Period.End().Format("2006-01-02")))
	pdf.Ln(lineHeight + 3)

	cur := res.Currency
	section := func(name string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(labelWidth+amountWidth, lineHeight, name, "", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	line := func(label string, amount decimal.Decimal) {
		pdf.CellFormat(labelWidth, lineHeight, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(amountWidth, lineHeight, formatAmount(amount, cur), "", 1, "R", false, 0, "")
	}

	section("Earnings")
	line("Base salary", res.BaseSalary)
	if !res.EarnedBaseSalary.Equal(res.BaseSalary) {
		line("Earned base (pro-rated)", res.EarnedBaseSalary)
	}
	for _, tier := range res.OvertimeTiers {
		pdf.CellFormat(labelWidth+amountWidth, lineHeight,
			fmt.Sprintf("  Overtime %s h at x%s", tier.Hours.StringFixed(2), tier.Multiplier.String()),
			"", 1, "L", false, 0, "")
	}
	line(fmt.Sprintf("Overtime (%s h)", res.OvertimeHours.StringFixed(2)), res.OvertimePay)
	line("Allowances", res.Allowances)
	line("Bonuses", res.Bonuses)

	section("Attendance deductions")
	line(fmt.Sprintf("Absence (%d days)", res.Attendance.UnpaidAbsenceDays()), res.AbsenceDeduction.Neg())
	line(fmt.Sprintf("Delay penalty (%d min)", res.Attendance.DelayMinutes+res.Attendance.EarlyDepartureMinutes), res.DelayPenalty.Neg())

	pdf.SetFont("Helvetica", "B", 11)
	line("Gross salary", res.GrossSalary)

	section("Statutory deductions")
	for _, c := range res.Contributions {
		line(fmt.Sprintf("%s (%s%% of %s)", c.Code, percent(c.Rate), c.Base.StringFixed(2)), c.Amount.Neg())
	}
	line(fmt.Sprintf("Income tax (base %s)", res.IncomeTax.Base.StringFixed(2)), res.IncomeTax.Amount.Neg())
	line("Total deductions", res.TotalDeductions.Neg())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 13)
	line("Net salary", res.NetSalary)
	pdf.Ln(4)

	if len(out.Warnings) > 0 {
		section("Notes")
		for _, w := range out.Warnings {
			pdf.MultiCell(labelWidth+amountWidth, lineHeight-1, w.Message, "", "L", false)
		}
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "I", 8)
	p := res.Provenance
	pdf.MultiCell(0, 4, fmt.Sprintf("Rule table %s@%s | %s | input %s | calculated %s",
		p.RuleTableID, p.RuleTableVersion, p.EngineVersion, p.InputHash, p.CalculatedAt.UTC().Format(time.RFC3339)),
		"", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders a payslip into dir as <employee>-<period>.pdf and
// returns the path.
func (r Renderer) WriteFile(dir string, emp Employee, out engine.Outcome) (string, error) {
	data, err := r.Render(emp, out)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create payslip dir: %w", err)
	}
	path := filepath.Join(dir, FileName(out.Result))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write payslip: %w", err)
	}
	return path, nil
}

// FileName is the payslip's file name for a result.
func FileName(res engine.PayrollCalculationResult) string {
	return fmt.Sprintf("%s-%s.pdf", res.EmployeeID, res.Period)
}

func formatAmount(d decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", d.StringFixed(2), currency)
}

func percent(rate decimal.Decimal) string {
	return rate.Shift(2).String()
}
