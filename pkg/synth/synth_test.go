package synth

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/riskfeed/pkg/storage"
	"github.com/cuemby/riskfeed/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter records writes and fails the selected operation
type failingWriter struct {
	seedWriter
	failOn string
}

var errWrite = errors.New("write failed")

func (w *failingWriter) CreateCase(c *types.Case) error {
	if w.failOn == "case" {
		return errWrite
	}
	return w.seedWriter.CreateCase(c)
}

func (w *failingWriter) CreateAlert(alert *types.Alert) error {
	if w.failOn == "alert" {
		return errWrite
	}
	return w.seedWriter.CreateAlert(alert)
}

func (w *failingWriter) CreateTransaction(txn *types.Transaction) error {
	if w.failOn == "transaction" {
		return errWrite
	}
	return w.seedWriter.CreateTransaction(txn)
}

func TestCycleWithRisk(t *testing.T) {
	tests := []struct {
		name         string
		risk         float64
		expectAlert  bool
		expectCase   bool
		alertStatus  types.AlertStatus
		casePriority types.CasePriority
	}{
		{name: "below alert threshold", risk: 0.35},
		{name: "just below alert threshold", risk: 0.64},
		{name: "alert threshold", risk: 0.65, expectAlert: true, alertStatus: types.AlertStatusHigh},
		{name: "just below case threshold", risk: 0.84, expectAlert: true, alertStatus: types.AlertStatusHigh},
		{name: "case threshold", risk: 0.85, expectAlert: true, expectCase: true, alertStatus: types.AlertStatusHigh, casePriority: types.CasePriorityHigh},
		{name: "critical threshold", risk: 0.9, expectAlert: true, expectCase: true, alertStatus: types.AlertStatusCritical, casePriority: types.CasePriorityCritical},
		{name: "forced critical", risk: 0.92, expectAlert: true, expectCase: true, alertStatus: types.AlertStatusCritical, casePriority: types.CasePriorityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &seedWriter{}
			s := New(w, WithSeed(7))

			result, err := s.CycleWithRisk(tt.risk)
			require.NoError(t, err)

			// Every cycle persists exactly one transaction without a case reference
			require.Len(t, w.seed.Transactions, 1)
			assert.Same(t, result.Transaction, w.seed.Transactions[0])
			assert.Nil(t, result.Transaction.CaseID)
			assert.Equal(t, tt.risk, result.Transaction.RiskScore)

			if !tt.expectAlert {
				assert.Nil(t, result.Alert)
				assert.Nil(t, result.Case)
				assert.Empty(t, w.seed.Alerts)
				assert.Empty(t, w.seed.Cases)
				return
			}

			require.NotNil(t, result.Alert)
			require.Len(t, w.seed.Alerts, 1)
			alert := result.Alert
			assert.Equal(t, tt.alertStatus, alert.Status)
			assert.Equal(t, result.Transaction.CreatedAt, alert.CreatedAt)
			assert.Equal(t, result.Transaction.Amount, alert.Amount)
			assert.Equal(t, result.Transaction.Member, alert.Member)
			assert.Equal(t, result.Transaction.Channel, alert.Channel)
			assert.Equal(t, fmt.Sprintf("%s detected on %s channel", alert.Type, alert.Channel), alert.Description)

			if !tt.expectCase {
				assert.Nil(t, alert.CaseID)
				assert.Nil(t, result.Case)
				assert.Empty(t, w.seed.Cases)
				return
			}

			require.Len(t, w.seed.Cases, 1)
			c := w.seed.Cases[0]
			require.NotNil(t, alert.CaseID)
			assert.Equal(t, c.ID, *alert.CaseID)
			assert.Equal(t, tt.casePriority, c.Priority)
			assert.Equal(t, types.CaseStatusOpen, c.Status)
			assert.Equal(t, CaseOwner, c.Owner)
			assert.Equal(t, alert.Type+" investigation", c.Title)
			assert.Contains(t, c.Summary, alert.Member)
			assert.Contains(t, c.Summary, FormatCurrency(alert.Amount))
		})
	}
}

func TestCycleDistribution(t *testing.T) {
	w := &seedWriter{}
	s := New(w, WithSeed(1234))

	const cycles = 1000
	alerts, cases := 0, 0
	for i := 0; i < cycles; i++ {
		result, err := s.Cycle()
		require.NoError(t, err)

		txn := result.Transaction
		assert.GreaterOrEqual(t, txn.RiskScore, MinRisk)
		assert.LessOrEqual(t, txn.RiskScore, MaxRisk)
		assert.GreaterOrEqual(t, txn.Amount, MinAmount)
		assert.LessOrEqual(t, txn.Amount, MaxAmount)
		assert.Contains(t, Members, txn.Member)
		assert.Contains(t, Channels, txn.Channel)
		assert.Contains(t, Merchants, txn.Merchant)

		assert.Equal(t, txn.RiskScore >= AlertThreshold, result.Alert != nil)
		assert.Equal(t, txn.RiskScore >= CaseThreshold, result.Case != nil)
		if result.Alert != nil {
			alerts++
			assert.Contains(t, AlertTypes, result.Alert.Type)
		}
		if result.Case != nil {
			cases++
		}
	}

	assert.Len(t, w.seed.Transactions, cycles)
	assert.Len(t, w.seed.Alerts, alerts)
	assert.Len(t, w.seed.Cases, cases)
	// Roughly 45% of draws alert and 9% escalate
	assert.Greater(t, alerts, 300)
	assert.Greater(t, cases, 30)
}

func TestCycleUniqueIDs(t *testing.T) {
	w := &seedWriter{}
	s := New(w)

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		result, err := s.CycleWithRisk(0.95)
		require.NoError(t, err)
		for _, id := range []string{result.Transaction.ID, result.Alert.ID, result.Case.ID} {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
}

func TestCycleSeedIsReproducible(t *testing.T) {
	ids := 0
	gen := func(prefix string) string {
		ids++
		return fmt.Sprintf("%s-%d", prefix, ids)
	}
	clock := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	run := func() []*types.Transaction {
		ids = 0
		w := &seedWriter{}
		s := New(w, WithSeed(99), WithClock(clock), WithIDGenerator(gen))
		for i := 0; i < 20; i++ {
			_, err := s.Cycle()
			require.NoError(t, err)
		}
		return w.seed.Transactions
	}

	assert.Equal(t, run(), run())
}

func TestCycleFailures(t *testing.T) {
	tests := []struct {
		failOn       string
		risk         float64
		transactions int
		cases        int
	}{
		{failOn: "transaction", risk: 0.95, transactions: 0, cases: 0},
		{failOn: "case", risk: 0.95, transactions: 1, cases: 0},
		{failOn: "alert", risk: 0.95, transactions: 1, cases: 1},
		{failOn: "alert", risk: 0.70, transactions: 1, cases: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s at %.2f", tt.failOn, tt.risk), func(t *testing.T) {
			w := &failingWriter{failOn: tt.failOn}
			s := New(w)

			result, err := s.CycleWithRisk(tt.risk)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errWrite))
			assert.Nil(t, result, "a failed cycle must not hand back an alert to broadcast")
			assert.Len(t, w.seed.Transactions, tt.transactions)
			assert.Len(t, w.seed.Cases, tt.cases)
			assert.Empty(t, w.seed.Alerts)
		})
	}
}

func TestCycleAgainstBoltStore(t *testing.T) {
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "riskfeed.db"))
	require.NoError(t, err)
	defer store.Close()

	s := New(store)
	result, err := s.CycleWithRisk(0.92)
	require.NoError(t, err)

	detail, err := store.GetCaseWithRelated(*result.Alert.CaseID)
	require.NoError(t, err)
	assert.Equal(t, types.CasePriorityCritical, detail.Priority)
	require.Len(t, detail.Alerts, 1)
	assert.Equal(t, result.Alert.ID, detail.Alerts[0].ID)
	// The transaction does not carry the case id; the alert does
	assert.Empty(t, detail.Transactions)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, types.StoreStats{Cases: 1, Alerts: 1, Transactions: 1}, stats)
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{50, "$50.00"},
		{1234.5, "$1,234.50"},
		{12049.99, "$12,049.99"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatCurrency(tt.amount))
	}
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, types.AlertStatusHigh, AlertStatusFor(0.89))
	assert.Equal(t, types.AlertStatusCritical, AlertStatusFor(0.9))
	assert.Equal(t, types.CasePriorityHigh, CasePriorityFor(0.85))
	assert.Equal(t, types.CasePriorityCritical, CasePriorityFor(0.95))
}
