// Package aggregator computes metrics snapshots from the persisted records.
// Snapshots are computed on every call; nothing is cached or refreshed in the
// background.
package aggregator

import (
	"fmt"
	"math"

	"github.com/cuemby/riskfeed/pkg/types"
)

const (
	// HighRiskThreshold is the minimum risk score counted as a high-risk alert
	HighRiskThreshold = 0.8

	// FallbackAlertRate is reported while there are no transactions
	FallbackAlertRate = 0.031

	// Placeholders, not derived from data
	AvgResponseMinutes = 7.2
	FPRate             = 0.014
	LatencyMsP95       = 82
)

// OpenCaseStatuses are the case states counted as open
var OpenCaseStatuses = []types.CaseStatus{types.CaseStatusOpen, types.CaseStatusInReview}

// Source is the subset of the store the aggregator reads
type Source interface {
	CountTransactions() (int, error)
	CountHighRiskOpenAlerts(minRisk float64) (int, error)
	CountCasesByStatus(statuses ...types.CaseStatus) (int, error)
}

// Aggregator builds metrics snapshots
type Aggregator struct {
	source Source
}

// New creates an aggregator reading from source
func New(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Snapshot computes the current metrics
func (a *Aggregator) Snapshot() (types.Metrics, error) {
	total, err := a.source.CountTransactions()
	if err != nil {
		return types.Metrics{}, fmt.Errorf("failed to count transactions: %w", err)
	}

	highRisk, err := a.source.CountHighRiskOpenAlerts(HighRiskThreshold)
	if err != nil {
		return types.Metrics{}, fmt.Errorf("failed to count high-risk alerts: %w", err)
	}

	openCases, err := a.source.CountCasesByStatus(OpenCaseStatuses...)
	if err != nil {
		return types.Metrics{}, fmt.Errorf("failed to count open cases: %w", err)
	}

	return types.Metrics{
		TotalTransactions:  total,
		HighRiskAlerts:     highRisk,
		OpenCases:          openCases,
		AvgResponseMinutes: AvgResponseMinutes,
		AlertRate:          AlertRate(highRisk, total),
		FPRate:             FPRate,
		LatencyMsP95:       LatencyMsP95,
	}, nil
}

// AlertRate is highRisk/total rounded to three decimals, or FallbackAlertRate
// when total is zero
func AlertRate(highRisk, total int) float64 {
	if total <= 0 {
		return FallbackAlertRate
	}
	return math.Round(float64(highRisk)/float64(total)*1000) / 1000
}
