package services

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// ServiceMetrics holds the instruments recorded by the license service.
type ServiceMetrics struct {
	IssueAttempts    metric.Int64Counter
	IssueFailures    metric.Int64Counter
	IssueDuration    metric.Float64Histogram
	VerifyAttempts   metric.Int64Counter
	VerifyFailures   metric.Int64Counter
	VerifyMismatches metric.Int64Counter
	VerifyDuration   metric.Float64Histogram
	ParseFailures    metric.Int64Counter
}

// NewServiceMetrics creates the service instruments on the given meter.
func NewServiceMetrics(meter metric.Meter) (*ServiceMetrics, error) {
	m := &ServiceMetrics{}
	var err error

	m.IssueAttempts, err = meter.Int64Counter("license_issue_attempts_total",
		metric.WithDescription("Total number of license issue attempts"))
	if err != nil {
		return nil, fmt.Errorf("failed to create issue attempts counter: %w", err)
	}

	m.IssueFailures, err = meter.Int64Counter("license_issue_failures_total",
		metric.WithDescription("Total number of failed license issue attempts"))
	if err != nil {
		return nil, fmt.Errorf("failed to create issue failures counter: %w", err)
	}

	m.IssueDuration, err = meter.Float64Histogram("license_issue_duration_seconds",
		metric.WithDescription("License issue duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create issue duration histogram: %w", err)
	}

	m.VerifyAttempts, err = meter.Int64Counter("license_verify_attempts_total",
		metric.WithDescription("Total number of license verification attempts"))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify attempts counter: %w", err)
	}

	m.VerifyFailures, err = meter.Int64Counter("license_verify_failures_total",
		metric.WithDescription("Total number of verification attempts that errored"))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify failures counter: %w", err)
	}

	m.VerifyMismatches, err = meter.Int64Counter("license_verify_mismatches_total",
		metric.WithDescription("Total number of verifications that completed with an invalid signature"))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify mismatches counter: %w", err)
	}

	m.VerifyDuration, err = meter.Float64Histogram("license_verify_duration_seconds",
		metric.WithDescription("License verification duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify duration histogram: %w", err)
	}

	m.ParseFailures, err = meter.Int64Counter("license_parse_failures_total",
		metric.WithDescription("Total number of documents rejected as malformed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create parse failures counter: %w", err)
	}

	return m, nil
}
