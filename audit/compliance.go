package audit

import (
	"fmt"
	"time"
)

// Rule evaluates one event's compliance.
type Rule func(Event) ComplianceStatus

// RuleSet maps event kinds to their compliance rule. Kinds without a rule
// are compliant by default.
type RuleSet map[Kind]Rule

// Evaluate applies the rule registered for the event's kind.
func (r RuleSet) Evaluate(event Event) ComplianceStatus {
	if rule, ok := r[event.Kind]; ok {
		return rule(event)
	}
	return Compliant
}

// DefaultRules returns the platform's PIPA-derived rule set: a consent
// creation must disclose purpose, data types, retention period and recipient
// to count as compliant.
func DefaultRules() RuleSet {
	return RuleSet{
		KindConsentCreated: requireMetadata("purpose", "dataTypes", "retentionPeriod", "recipient"),
	}
}

func requireMetadata(fields ...string) Rule {
	return func(event Event) ComplianceStatus {
		if event.Metadata == nil {
			return NonCompliant
		}
		for _, field := range fields {
			if _, ok := event.Metadata[field]; !ok {
				return NonCompliant
			}
		}
		return Compliant
	}
}

// Violation is one non-compliant event in a compliance report.
type Violation struct {
	EventID     string    `json:"eventId"`
	Kind        Kind      `json:"eventType"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// ComplianceReport summarizes consent activity over a period.
type ComplianceReport struct {
	ReportID          string      `json:"reportId"`
	PeriodStart       time.Time   `json:"periodStart"`
	PeriodEnd         time.Time   `json:"periodEnd"`
	TotalConsents     int         `json:"totalConsents"`
	ActiveConsents    int         `json:"activeConsents"`
	WithdrawnConsents int         `json:"withdrawnConsents"`
	DataTransfers     int         `json:"dataTransfers"`
	Violations        []Violation `json:"complianceViolations"`
	GeneratedAt       time.Time   `json:"generatedAt"`
}

// Report builds a compliance report over [start, end].
func (c *Chain) Report(start time.Time, end time.Time) ComplianceReport {
	report := ComplianceReport{
		ReportID:    fmt.Sprintf("compliance_%s", newID()),
		PeriodStart: start,
		PeriodEnd:   end,
		Violations:  []Violation{},
		GeneratedAt: TimeNow(),
	}

	for _, event := range c.Query(Filter{Start: &start, End: &end}) {
		switch event.Kind {
		case KindConsentCreated:
			report.TotalConsents++
		case KindConsentWithdrawn:
			report.WithdrawnConsents++
		case KindDataDelivered:
			report.DataTransfers++
		}
		if event.Compliance == NonCompliant {
			report.Violations = append(report.Violations, Violation{
				EventID:     event.ID,
				Kind:        event.Kind,
				Description: fmt.Sprintf("non-compliant %s", event.Kind),
				Timestamp:   event.Timestamp,
			})
		}
	}
	report.ActiveConsents = report.TotalConsents - report.WithdrawnConsents
	return report
}
