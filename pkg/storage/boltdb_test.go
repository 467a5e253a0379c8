package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/riskfeed/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "nested", "riskfeed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAlert(id string, at time.Time, risk float64, status types.AlertStatus, caseID *string) *types.Alert {
	return &types.Alert{
		ID:          id,
		CreatedAt:   at,
		Member:      "Dana Patel",
		RiskScore:   risk,
		Amount:      420.50,
		Channel:     "Wire",
		Type:        "Check kiting",
		Status:      status,
		Description: "Check kiting detected on Wire channel",
		CaseID:      caseID,
	}
}

func testTransaction(id string, at time.Time, caseID *string) *types.Transaction {
	return &types.Transaction{
		ID:        id,
		CreatedAt: at,
		Amount:    99.99,
		Channel:   "Card",
		Member:    "Erin Fields",
		Merchant:  "Electronics Hub",
		RiskScore: 0.4,
		CaseID:    caseID,
	}
}

func testCase(id string, at time.Time, status types.CaseStatus) *types.Case {
	return &types.Case{
		ID:        id,
		Title:     "Account takeover investigation",
		Status:    status,
		Priority:  types.CasePriorityHigh,
		CreatedAt: at,
		UpdatedAt: at,
		Summary:   "Account takeover flagged for Erin Fields ($99.99).",
		Owner:     "FFS On-Call Team",
	}
}

func TestNewBoltStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewBoltStore(filepath.Join(dir, "riskfeed.db"))
	require.NoError(t, err)
	defer store.Close()

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, types.StoreStats{}, stats)
}

func TestCreateRejectsDuplicateIDs(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateCase(testCase("CASE-1", baseTime, types.CaseStatusOpen)))
	err := store.CreateCase(testCase("CASE-1", baseTime, types.CaseStatusOpen))
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	require.NoError(t, store.CreateAlert(testAlert("ALERT-1", baseTime, 0.7, types.AlertStatusHigh, nil)))
	err = store.CreateAlert(testAlert("ALERT-1", baseTime.Add(time.Second), 0.7, types.AlertStatusHigh, nil))
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	require.NoError(t, store.CreateTransaction(testTransaction("TXN-1", baseTime, nil)))
	err = store.CreateTransaction(testTransaction("TXN-1", baseTime, nil))
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	// A rejected duplicate must not leave a second index entry behind
	alerts, err := store.ListAlerts(0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestCreateRequiresID(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.CreateAlert(testAlert("", baseTime, 0.7, types.AlertStatusHigh, nil)))
}

func TestListAlertsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	// Insert out of chronological order
	offsets := []int{3, 0, 4, 1, 2}
	for _, off := range offsets {
		id := fmt.Sprintf("ALERT-%d", off)
		require.NoError(t, store.CreateAlert(testAlert(id, baseTime.Add(time.Duration(off)*time.Minute), 0.7, types.AlertStatusHigh, nil)))
	}

	alerts, err := store.ListAlerts(3)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "ALERT-4", alerts[0].ID)
	assert.Equal(t, "ALERT-3", alerts[1].ID)
	assert.Equal(t, "ALERT-2", alerts[2].ID)

	all, err := store.ListAlerts(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "ALERT-0", all[4].ID)
}

func TestListAlertsBeforeEpoch(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateAlert(testAlert("ALERT-1960", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), 0.7, types.AlertStatusHigh, nil)))
	require.NoError(t, store.CreateAlert(testAlert("ALERT-now", baseTime, 0.7, types.AlertStatusHigh, nil)))
	require.NoError(t, store.CreateAlert(testAlert("ALERT-1969", time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC), 0.7, types.AlertStatusHigh, nil)))
	require.NoError(t, store.CreateAlert(testAlert("ALERT-epoch", time.Unix(0, 0), 0.7, types.AlertStatusHigh, nil)))

	alerts, err := store.ListAlerts(0)
	require.NoError(t, err)
	require.Len(t, alerts, 4)

	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"ALERT-now", "ALERT-epoch", "ALERT-1969", "ALERT-1960"}, ids)
}

func TestListTransactionsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("TXN-%02d", i)
		require.NoError(t, store.CreateTransaction(testTransaction(id, baseTime.Add(time.Duration(i)*time.Second), nil)))
	}

	txns, err := store.ListTransactions(15)
	require.NoError(t, err)
	require.Len(t, txns, 15)
	assert.Equal(t, "TXN-19", txns[0].ID)
	assert.Equal(t, "TXN-05", txns[14].ID)
	for i := 1; i < len(txns); i++ {
		assert.False(t, txns[i].CreatedAt.After(txns[i-1].CreatedAt))
	}
}

func TestListEmpty(t *testing.T) {
	store := newTestStore(t)

	alerts, err := store.ListAlerts(10)
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)

	cases, err := store.ListCases()
	require.NoError(t, err)
	assert.NotNil(t, cases)
	assert.Empty(t, cases)
}

func TestListCasesByUpdateTime(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateCase(testCase("CASE-A", baseTime, types.CaseStatusOpen)))
	require.NoError(t, store.CreateCase(testCase("CASE-B", baseTime.Add(time.Hour), types.CaseStatusOpen)))
	require.NoError(t, store.CreateCase(testCase("CASE-C", baseTime.Add(2*time.Hour), types.CaseStatusOpen)))

	cases, err := store.ListCases()
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, []string{"CASE-C", "CASE-B", "CASE-A"}, []string{cases[0].ID, cases[1].ID, cases[2].ID})

	// Touching the oldest case moves it to the front
	require.NoError(t, store.UpdateCaseStatus("CASE-A", types.CaseStatusInReview, baseTime.Add(3*time.Hour)))

	cases, err = store.ListCases()
	require.NoError(t, err)
	assert.Equal(t, "CASE-A", cases[0].ID)
	assert.Equal(t, types.CaseStatusInReview, cases[0].Status)
}

func TestUpdateCaseStatusNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateCaseStatus("CASE-missing", types.CaseStatusResolved, baseTime)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetCase(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateCase(testCase("CASE-1", baseTime, types.CaseStatusOpen)))

	c, err := store.GetCase("CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "FFS On-Call Team", c.Owner)
	assert.True(t, c.CreatedAt.Equal(baseTime))

	_, err = store.GetCase("CASE-2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetCaseWithRelated(t *testing.T) {
	store := newTestStore(t)

	caseID := "CASE-1"
	require.NoError(t, store.CreateCase(testCase(caseID, baseTime, types.CaseStatusOpen)))
	require.NoError(t, store.CreateAlert(testAlert("ALERT-1", baseTime, 0.88, types.AlertStatusHigh, types.StringPtr(caseID))))
	require.NoError(t, store.CreateAlert(testAlert("ALERT-2", baseTime.Add(time.Minute), 0.95, types.AlertStatusCritical, types.StringPtr(caseID))))
	require.NoError(t, store.CreateAlert(testAlert("ALERT-3", baseTime, 0.7, types.AlertStatusHigh, nil)))
	require.NoError(t, store.CreateTransaction(testTransaction("TXN-1", baseTime, types.StringPtr(caseID))))
	require.NoError(t, store.CreateTransaction(testTransaction("TXN-2", baseTime, nil)))

	detail, err := store.GetCaseWithRelated(caseID)
	require.NoError(t, err)
	assert.Equal(t, caseID, detail.ID)
	require.Len(t, detail.Alerts, 2)
	assert.Equal(t, "ALERT-2", detail.Alerts[0].ID)
	require.Len(t, detail.Transactions, 1)
	assert.Equal(t, "TXN-1", detail.Transactions[0].ID)

	// A case without related records yields empty, non-nil slices
	require.NoError(t, store.CreateCase(testCase("CASE-2", baseTime, types.CaseStatusOpen)))
	detail, err = store.GetCaseWithRelated("CASE-2")
	require.NoError(t, err)
	assert.NotNil(t, detail.Alerts)
	assert.Empty(t, detail.Alerts)

	_, err = store.GetCaseWithRelated("CASE-404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateAlert(testAlert("A1", baseTime, 0.80, types.AlertStatusHigh, nil)))
	require.NoError(t, store.CreateAlert(testAlert("A2", baseTime, 0.95, types.AlertStatusCritical, nil)))
	require.NoError(t, store.CreateAlert(testAlert("A3", baseTime, 0.99, types.AlertStatusResolved, nil)))
	require.NoError(t, store.CreateAlert(testAlert("A4", baseTime, 0.79, types.AlertStatusHigh, nil)))

	require.NoError(t, store.CreateCase(testCase("C1", baseTime, types.CaseStatusOpen)))
	require.NoError(t, store.CreateCase(testCase("C2", baseTime, types.CaseStatusInReview)))
	require.NoError(t, store.CreateCase(testCase("C3", baseTime, types.CaseStatusResolved)))

	for i := 0; i < 7; i++ {
		require.NoError(t, store.CreateTransaction(testTransaction(fmt.Sprintf("T%d", i), baseTime, nil)))
	}

	highRisk, err := store.CountHighRiskOpenAlerts(0.8)
	require.NoError(t, err)
	assert.Equal(t, 2, highRisk)

	open, err := store.CountCasesByStatus(types.CaseStatusOpen, types.CaseStatusInReview)
	require.NoError(t, err)
	assert.Equal(t, 2, open)

	none, err := store.CountCasesByStatus()
	require.NoError(t, err)
	assert.Zero(t, none)

	txns, err := store.CountTransactions()
	require.NoError(t, err)
	assert.Equal(t, 7, txns)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, types.StoreStats{Cases: 3, Alerts: 4, Transactions: 7}, stats)
}

func TestNullCaseIDRoundTrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateAlert(testAlert("ALERT-1", baseTime, 0.7, types.AlertStatusHigh, nil)))

	alerts, err := store.ListAlerts(1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Nil(t, alerts[0].CaseID)
}
