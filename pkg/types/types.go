package types

import (
	"time"
)

// CaseStatus is the investigation state of a case
type CaseStatus string

const (
	CaseStatusOpen     CaseStatus = "open"
	CaseStatusInReview CaseStatus = "in_review"
	CaseStatusResolved CaseStatus = "resolved"
	CaseStatusClosed   CaseStatus = "closed"
)

// Valid reports whether s is one of the known case statuses
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusOpen, CaseStatusInReview, CaseStatusResolved, CaseStatusClosed:
		return true
	}
	return false
}

// CasePriority is fixed when a case is opened
type CasePriority string

const (
	CasePriorityHigh     CasePriority = "high"
	CasePriorityCritical CasePriority = "critical"
)

// AlertStatus is derived from the risk score when an alert is raised
type AlertStatus string

const (
	AlertStatusHigh     AlertStatus = "high"
	AlertStatusCritical AlertStatus = "critical"
	AlertStatusResolved AlertStatus = "resolved"
)

// Case is an investigation opened in response to a high-risk alert
type Case struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Status    CaseStatus   `json:"status"`
	Priority  CasePriority `json:"priority"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Summary   string       `json:"summary"`
	Owner     string       `json:"owner"`
}

// Alert flags a transaction as risk-worthy. CaseID is set at most once.
type Alert struct {
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"created_at"`
	Member      string      `json:"member"`
	RiskScore   float64     `json:"risk_score"`
	Amount      float64     `json:"amount"`
	Channel     string      `json:"channel"`
	Type        string      `json:"type"`
	Status      AlertStatus `json:"status"`
	Description string      `json:"description"`
	CaseID      *string     `json:"case_id"`
}

// Transaction is a single synthesized payment
type Transaction struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Amount    float64   `json:"amount"`
	Channel   string    `json:"channel"`
	Member    string    `json:"member"`
	Merchant  string    `json:"merchant"`
	RiskScore float64   `json:"risk_score"`
	CaseID    *string   `json:"case_id"`
}

// CaseDetail is a case together with the records that reference it
type CaseDetail struct {
	Case
	Alerts       []*Alert       `json:"alerts"`
	Transactions []*Transaction `json:"transactions"`
}

// Metrics is a point-in-time summary computed from persisted records.
// AvgResponseMinutes, FPRate and LatencyMsP95 are placeholders.
type Metrics struct {
	TotalTransactions  int     `json:"totalTransactions"`
	HighRiskAlerts     int     `json:"highRiskAlerts"`
	OpenCases          int     `json:"openCases"`
	AvgResponseMinutes float64 `json:"avgResponseMinutes"`
	AlertRate          float64 `json:"alertRate"`
	FPRate             float64 `json:"fpRate"`
	LatencyMsP95       float64 `json:"latencyMsP95"`
}

// Seed is the first-run dataset loaded into an empty store
type Seed struct {
	Cases        []*Case        `json:"cases"`
	Alerts       []*Alert       `json:"alerts"`
	Transactions []*Transaction `json:"transactions"`
}

// StoreStats holds record counts per collection
type StoreStats struct {
	Cases        int `json:"cases"`
	Alerts       int `json:"alerts"`
	Transactions int `json:"transactions"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
