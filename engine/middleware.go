package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// CALCULATOR - composable entry point
// =============================================================================

// Calculator is anything that turns a request into an outcome. *Engine is
// the core implementation; wrappers add logging, auditing and tracing.
type Calculator interface {
	Calculate(ctx context.Context, req CalculationRequest) (*Outcome, error)
}

// CalculatorFunc adapts a function to Calculator.
type CalculatorFunc func(ctx context.Context, req CalculationRequest) (*Outcome, error)

func (f CalculatorFunc) Calculate(ctx context.Context, req CalculationRequest) (*Outcome, error) {
	return f(ctx, req)
}

// Middleware wraps a Calculator.
type Middleware func(Calculator) Calculator

// Chain applies middlewares so the first one listed is the outermost.
func Chain(calc Calculator, mws ...Middleware) Calculator {
	for i := len(mws) - 1; i >= 0; i-- {
		calc = mws[i](calc)
	}
	return calc
}

// OutcomeLabel classifies a calculation for logs, audit rows and metrics.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRuleTableUnresolved):
		return "rule_table_unresolved"
	case errors.Is(err, ErrBlockingViolation):
		return "blocked"
	case errors.Is(err, ErrArithmeticInconsistency):
		return "inconsistent"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// =============================================================================
// LOGGING
// =============================================================================

// WithLogging logs every calculation with its duration and outcome.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next Calculator) Calculator {
		return CalculatorFunc(func(ctx context.Context, req CalculationRequest) (*Outcome, error) {
			start := time.Now()
			out, err := next.Calculate(ctx, req)
			attrs := []any{
				slog.String("employee_id", string(req.Profile.EmployeeID)),
				slog.String("period", req.Period.String()),
				slog.String("outcome", OutcomeLabel(err)),
				slog.Duration("duration", time.Since(start)),
			}
			switch {
			case err == nil:
				attrs = append(attrs,
					slog.String("gross", out.Result.GrossSalary.String()),
					slog.String("net", out.Result.NetSalary.String()),
					slog.Int("warnings", len(out.Warnings)),
				)
				logger.InfoContext(ctx, "payroll calculated", attrs...)
			case errors.Is(err, ErrArithmeticInconsistency):
				logger.ErrorContext(ctx, "payroll calculation inconsistent", append(attrs, slog.Any("error", err))...)
			default:
				logger.WarnContext(ctx, "payroll calculation failed", append(attrs, slog.Any("error", err))...)
			}
			return out, err
		})
	}
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditRecord is one calculation attempt as written to an audit trail.
type AuditRecord struct {
	EmployeeID       EmployeeID            `json:"employee_id"`
	Period           PayPeriod             `json:"period"`
	Outcome          string                `json:"outcome"`
	RuleTableID      string                `json:"rule_table_id,omitempty"`
	RuleTableVersion string                `json:"rule_table_version,omitempty"`
	InputHash        string                `json:"input_hash,omitempty"`
	Violations       []ValidationViolation `json:"violations,omitempty"`
	Error            string                `json:"error,omitempty"`
	Duration         time.Duration         `json:"duration"`
	RecordedAt       time.Time             `json:"recorded_at"`
}

// AuditSink receives one record per calculation attempt.
type AuditSink interface {
	RecordCalculation(ctx context.Context, rec AuditRecord) error
}

// WithAudit writes an AuditRecord for every attempt, successful or not. A
// failed audit write fails the calculation.
func WithAudit(sink AuditSink) Middleware {
	return func(next Calculator) Calculator {
		return CalculatorFunc(func(ctx context.Context, req CalculationRequest) (*Outcome, error) {
			start := time.Now()
			out, err := next.Calculate(ctx, req)

			rec := AuditRecord{
				EmployeeID: req.Profile.EmployeeID,
				Period:     req.Period,
				Outcome:    OutcomeLabel(err),
				Duration:   time.Since(start),
				RecordedAt: time.Now().UTC(),
			}
			if out != nil {
				rec.RuleTableID = out.Result.Provenance.RuleTableID
				rec.RuleTableVersion = out.Result.Provenance.RuleTableVersion
				rec.InputHash = out.Result.Provenance.InputHash
				rec.Violations = out.Warnings
			}
			if err != nil {
				rec.Error = err.Error()
				var calcErr *CalculationError
				if errors.As(err, &calcErr) {
					rec.Violations = calcErr.Violations
				}
			}

			if auditErr := sink.RecordCalculation(ctx, rec); auditErr != nil {
				return nil, errors.Join(err, auditErr)
			}
			return out, err
		})
	}
}

// =============================================================================
// TELEMETRY
// =============================================================================

const instrumentationName = "github.com/warp/payroll-engine/engine"

// WithTelemetry wraps each calculation in a span and records a counter and
// a duration histogram through the global OpenTelemetry providers.
func WithTelemetry() Middleware {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	calculations, _ := meter.Int64Counter("payroll.calculations",
		metric.WithDescription("Payroll calculations by outcome"))
	duration, _ := meter.Float64Histogram("payroll.calculation.duration",
		metric.WithDescription("Payroll calculation latency"),
		metric.WithUnit("s"))

	return func(next Calculator) Calculator {
		return CalculatorFunc(func(ctx context.Context, req CalculationRequest) (*Outcome, error) {
			ctx, span := tracer.Start(ctx, "payroll.calculate", trace.WithAttributes(
				attribute.String("payroll.employee_id", string(req.Profile.EmployeeID)),
				attribute.String("payroll.period", req.Period.String()),
			))
			defer span.End()

			start := time.Now()
			out, err := next.Calculate(ctx, req)
			elapsed := time.Since(start)

			outcome := attribute.String("payroll.outcome", OutcomeLabel(err))
			span.SetAttributes(outcome)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetAttributes(attribute.String("payroll.rule_table", out.Result.Provenance.RuleTableID))
			}
			if calculations != nil {
				calculations.Add(ctx, 1, metric.WithAttributes(outcome))
			}
			if duration != nil {
				duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(outcome))
			}
			return out, err
		})
	}
}
