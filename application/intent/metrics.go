package intent

import (
	"time"

	"factoryops/domain/intent"
)

// Metrics Engine instrumentation. Implemented by infrastructure/metrics.
type Metrics interface {
	ObserveOutcome(category intent.Category, status intent.Status)
	ObserveValidation(group, result string, took time.Duration)
	ValidationDegraded(group string, policy intent.ValidationPolicy)
	TokenIssued(ephemeral bool)
	TokenSettled(result string)
}

// Token settlement results reported to Metrics.
const (
	tokenConsumed    = "consumed"
	tokenExpired     = "expired"
	tokenAlreadyUsed = "already_used"
	tokenNotFound    = "not_found"
	tokenRejected    = "rejected"
)

type nopMetrics struct{}

func (nopMetrics) ObserveOutcome(intent.Category, intent.Status)      {}
func (nopMetrics) ObserveValidation(string, string, time.Duration)    {}
func (nopMetrics) ValidationDegraded(string, intent.ValidationPolicy) {}
func (nopMetrics) TokenIssued(bool)                                   {}
func (nopMetrics) TokenSettled(string)                                {}
