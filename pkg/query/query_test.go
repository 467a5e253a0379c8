package query

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/riskfeed/pkg/aggregator"
	"github.com/cuemby/riskfeed/pkg/storage"
	"github.com/cuemby/riskfeed/pkg/types"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 10},
		{"abc", 10},
		{"0", 10},
		{"-5", 10},
		{"3", 3},
		{" 7 ", 7},
		{"500", 500},
		{"501", 500},
		{"99999999", 500},
		{"2.5", 2},
		{"5.5", 5},
		{"1e2", 100},
		{"1e9", 500},
		{"0.5", 10},
		{"-0.5", 10},
		{"NaN", 10},
		{"Inf", 10},
		{"-Inf", 10},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLimit(tt.raw, 10))
		})
	}
}

func newService(t *testing.T) (*Service, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "query.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, aggregator.New(store)), store
}

func TestListAlertsLimit(t *testing.T) {
	svc, store := newService(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		require.NoError(t, store.CreateAlert(&types.Alert{
			ID:        "ALT-" + string(rune('a'+i)),
			RiskScore: 0.7,
			Status:    types.AlertStatusHigh,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	alerts, err := svc.ListAlerts("not-a-number")
	require.NoError(t, err)
	require.Len(t, alerts, DefaultAlertLimit)
	assert.Equal(t, "ALT-t", alerts[0].ID)

	alerts, err = svc.ListAlerts("3")
	require.NoError(t, err)
	assert.Len(t, alerts, 3)
}

func TestListTransactionsDefault(t *testing.T) {
	svc, store := newService(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		require.NoError(t, store.CreateTransaction(&types.Transaction{
			ID:        "TXN-" + string(rune('A'+i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	txns, err := svc.ListTransactions("")
	require.NoError(t, err)
	assert.Len(t, txns, DefaultTransactionLimit)
}

func TestGetCase(t *testing.T) {
	svc, store := newService(t)

	now := time.Now().UTC()
	require.NoError(t, store.CreateCase(&types.Case{ID: "CASE-1", Status: types.CaseStatusOpen, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.CreateAlert(&types.Alert{ID: "ALT-1", CaseID: types.StringPtr("CASE-1"), CreatedAt: now}))

	detail, err := svc.GetCase("CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "CASE-1", detail.ID)
	assert.Len(t, detail.Alerts, 1)
	assert.Empty(t, detail.Transactions)

	_, err = svc.GetCase("CASE-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.GetCase("  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetrics(t *testing.T) {
	svc, store := newService(t)

	m, err := svc.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalTransactions)
	assert.Equal(t, aggregator.FallbackAlertRate, m.AlertRate)

	require.NoError(t, store.CreateTransaction(&types.Transaction{ID: "TXN-1", CreatedAt: time.Now()}))
	m, err = svc.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalTransactions)
}

func TestUpdateCaseStatus(t *testing.T) {
	svc, store := newService(t)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	edited := created.Add(time.Hour)
	svc.now = func() time.Time { return edited }
	require.NoError(t, store.CreateCase(&types.Case{ID: "CASE-1", Status: types.CaseStatusOpen, CreatedAt: created, UpdatedAt: created}))

	c, err := svc.UpdateCaseStatus(" CASE-1 ", types.CaseStatusInReview)
	require.NoError(t, err)
	assert.Equal(t, types.CaseStatusInReview, c.Status)
	assert.True(t, c.UpdatedAt.Equal(edited))
	assert.True(t, c.CreatedAt.Equal(created))

	stored, err := store.GetCase("CASE-1")
	require.NoError(t, err)
	assert.Equal(t, types.CaseStatusInReview, stored.Status)

	_, err = svc.UpdateCaseStatus("CASE-1", "escalated")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateCaseStatus("CASE-404", types.CaseStatusClosed)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateCaseStatus("", types.CaseStatusClosed)
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingStore struct{}

func (failingStore) ListAlerts(int) ([]*types.Alert, error) { return nil, errors.New("boom") }
func (failingStore) ListCases() ([]*types.Case, error)      { return nil, errors.New("boom") }
func (failingStore) GetCaseWithRelated(string) (*types.CaseDetail, error) {
	return nil, errors.New("boom")
}
func (failingStore) ListTransactions(int) ([]*types.Transaction, error) {
	return nil, errors.New("boom")
}
func (failingStore) GetCase(string) (*types.Case, error) { return nil, errors.New("boom") }
func (failingStore) UpdateCaseStatus(string, types.CaseStatus, time.Time) error {
	return errors.New("boom")
}

func TestStoreErrorsAreNotNotFound(t *testing.T) {
	svc := NewService(failingStore{}, nil)

	_, err := svc.GetCase("CASE-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = svc.ListAlerts("")
	assert.Error(t, err)
	_, err = svc.ListCases()
	assert.Error(t, err)
	_, err = svc.ListTransactions("")
	assert.Error(t, err)

	_, err = svc.UpdateCaseStatus("CASE-1", types.CaseStatusClosed)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
