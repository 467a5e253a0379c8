// Package synth fabricates demo transactions, alerts and cases.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// Risk scores are drawn uniformly from [MinRisk, MaxRisk]
	MinRisk = 0.35
	MaxRisk = 0.90

	// Amounts are drawn uniformly from [MinAmount, MaxAmount]
	MinAmount = 50.0
	MaxAmount = 12050.0

	// AlertThreshold is the lowest risk score that raises an alert
	AlertThreshold = 0.65
	// CaseThreshold is the lowest risk score that escalates an alert into a case
	CaseThreshold = 0.85
	// CriticalThreshold marks alerts and cases as critical
	CriticalThreshold = 0.9

	// CaseOwner is assigned to every escalated case
	CaseOwner = "FFS On-Call Team"
)

var (
	Channels = []string{"Card", "ACH", "RTP", "Wire", "ITM", "Online", "Mobile"}

	Merchants = []string{
		"Electronics Hub",
		"Travel Junction",
		"Payroll Services",
		"University Bookstore",
		"Security Holdings LLC",
		"Medical Services",
		"Utility Payments",
		"Online Marketplace",
	}

	Members = []string{
		"Sarah Martinez",
		"Robert Thompson",
		"James Whitaker",
		"Erin Fields",
		"Dana Patel",
		"Ashley Nguyen",
		"Samuel Ortiz",
	}

	AlertTypes = []string{
		"Account takeover",
		"Impersonation scam",
		"Check kiting",
		"RTP scam",
		"Velocity spike",
		"Suspicious transfer",
	}
)

var usd = message.NewPrinter(language.AmericanEnglish)

// Writer is the subset of the store a synthesis cycle writes through
type Writer interface {
	CreateCase(c *types.Case) error
	CreateAlert(alert *types.Alert) error
	CreateTransaction(txn *types.Transaction) error
}

// Result describes what one cycle created. Alert and Case are nil when the
// cycle did not produce them.
type Result struct {
	Transaction *types.Transaction
	Alert       *types.Alert
	Case        *types.Case
}

// Synthesizer fabricates transaction, alert and case activity
type Synthesizer struct {
	store  Writer
	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	newID  func(prefix string) string
	logger zerolog.Logger
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithSeed makes the random draws reproducible. A zero seed keeps the
// time-based default.
func WithSeed(seed uint64) Option {
	return func(s *Synthesizer) {
		if seed != 0 {
			s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// WithClock replaces time.Now for record timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		s.now = now
	}
}

// WithIDGenerator replaces the uuid-based id generator
func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Synthesizer) {
		s.newID = newID
	}
}

// New creates a synthesizer writing through store
func New(store Writer, opts ...Option) *Synthesizer {
	seed := uint64(time.Now().UnixNano())
	s := &Synthesizer{
		store:  store,
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  NewID,
		logger: log.WithComponent("synth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a collision-resistant identifier such as TXN-<uuid>
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Cycle runs one synthesis cycle with a freshly drawn risk score
func (s *Synthesizer) Cycle() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cycle(s.drawRisk())
}

// CycleWithRisk runs one synthesis cycle with a fixed risk score. The other
// attributes are still drawn at random.
func (s *Synthesizer) CycleWithRisk(risk float64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cycle(risk)
}

// cycle persists the transaction, then the case (if any) and finally the
// alert. The first failing write aborts the cycle.
func (s *Synthesizer) cycle(risk float64) (*Result, error) {
	amount := round2(MinAmount + s.rng.Float64()*(MaxAmount-MinAmount))
	member := pick(s.rng, Members)
	channel := pick(s.rng, Channels)
	merchant := pick(s.rng, Merchants)
	alertType := pick(s.rng, AlertTypes)
	createdAt := s.now()

	txn := &types.Transaction{
		ID:        s.newID("TXN"),
		CreatedAt: createdAt,
		Amount:    amount,
		Channel:   channel,
		Member:    member,
		Merchant:  merchant,
		RiskScore: risk,
		CaseID:    nil,
	}
	if err := s.store.CreateTransaction(txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	result := &Result{Transaction: txn}
	if risk < AlertThreshold {
		return result, nil
	}

	alert := &types.Alert{
		ID:          s.newID("ALERT"),
		CreatedAt:   createdAt,
		Member:      member,
		RiskScore:   risk,
		Amount:      amount,
		Channel:     channel,
		Type:        alertType,
		Status:      AlertStatusFor(risk),
		Description: fmt.Sprintf("%s detected on %s channel", alertType, channel),
	}

	if risk >= CaseThreshold {
		c := s.newCase(alert)
		if err := s.store.CreateCase(c); err != nil {
			return nil, fmt.Errorf("failed to create case: %w", err)
		}
		alert.CaseID = types.StringPtr(c.ID)
		result.Case = c

		caseLog := log.WithCaseID(c.ID)
		caseLog.Info().
			Str("component", "synth").
			Str("priority", string(c.Priority)).
			Msg("Case opened")
	}

	if err := s.store.CreateAlert(alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	result.Alert = alert

	s.logger.Debug().
		Str("alert_id", alert.ID).
		Float64("risk_score", risk).
		Bool("escalated", result.Case != nil).
		Msg("Alert synthesized")

	return result, nil
}

func (s *Synthesizer) newCase(alert *types.Alert) *types.Case {
	now := s.now()
	return &types.Case{
		ID:        s.newID("CASE"),
		Title:     alert.Type + " investigation",
		Status:    types.CaseStatusOpen,
		Priority:  CasePriorityFor(alert.RiskScore),
		CreatedAt: now,
		UpdatedAt: now,
		Summary:   fmt.Sprintf("%s flagged for %s (%s).", alert.Type, alert.Member, FormatCurrency(alert.Amount)),
		Owner:     CaseOwner,
	}
}

func (s *Synthesizer) drawRisk() float64 {
	return round2(MinRisk + s.rng.Float64()*(MaxRisk-MinRisk))
}

// AlertStatusFor maps a risk score to the status of a new alert
func AlertStatusFor(risk float64) types.AlertStatus {
	if risk >= CriticalThreshold {
		return types.AlertStatusCritical
	}
	return types.AlertStatusHigh
}

// CasePriorityFor maps a risk score to the priority of a new case
func CasePriorityFor(risk float64) types.CasePriority {
	if risk >= CriticalThreshold {
		return types.CasePriorityCritical
	}
	return types.CasePriorityHigh
}

// FormatCurrency renders an amount as US dollars, e.g. $12,049.99
func FormatCurrency(amount float64) string {
	return usd.Sprintf("$%.2f", amount)
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.IntN(len(items))]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
