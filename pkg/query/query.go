// Package query serves the dashboard: bounded listings, case detail, case
// status edits and the current metrics snapshot.
package query

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/riskfeed/pkg/storage"
	"github.com/cuemby/riskfeed/pkg/types"
)

const (
	DefaultAlertLimit       = 10
	DefaultTransactionLimit = 15
	MaxLimit                = 500
)

var (
	// ErrNotFound is returned for an unknown case id
	ErrNotFound = fmt.Errorf("case %w", storage.ErrNotFound)
	// ErrInvalidStatus is returned by UpdateCaseStatus for an unknown status
	ErrInvalidStatus = errors.New("invalid case status")
)

// Reader is the subset of the store queries read from
type Reader interface {
	ListAlerts(limit int) ([]*types.Alert, error)
	ListCases() ([]*types.Case, error)
	GetCaseWithRelated(id string) (*types.CaseDetail, error)
	ListTransactions(limit int) ([]*types.Transaction, error)
}

// CaseEditor changes case records
type CaseEditor interface {
	GetCase(id string) (*types.Case, error)
	UpdateCaseStatus(id string, status types.CaseStatus, at time.Time) error
}

// Store is everything the service needs from persistence
type Store interface {
	Reader
	CaseEditor
}

// Snapshotter computes a metrics snapshot
type Snapshotter interface {
	Snapshot() (types.Metrics, error)
}

// Service answers read queries
type Service struct {
	store   Store
	metrics Snapshotter
	now     func() time.Time
}

// NewService creates a query service
func NewService(store Store, metrics Snapshotter) *Service {
	return &Service{
		store:   store,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListAlerts returns the most recent alerts. limit is the raw request
// parameter and is coerced by ParseLimit.
func (s *Service) ListAlerts(limit string) ([]*types.Alert, error) {
	alerts, err := s.store.ListAlerts(ParseLimit(limit, DefaultAlertLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// ListCases returns every case, most recently updated first
func (s *Service) ListCases() ([]*types.Case, error) {
	cases, err := s.store.ListCases()
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

// GetCase returns a case with its related alerts and transactions
func (s *Service) GetCase(id string) (*types.CaseDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	detail, err := s.store.GetCaseWithRelated(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return detail, nil
}

// UpdateCaseStatus moves a case to status and returns the updated case
func (s *Service) UpdateCaseStatus(id string, status types.CaseStatus) (*types.Case, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	err := s.store.UpdateCaseStatus(id, status, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update case %s: %w", id, err)
	}

	c, err := s.store.GetCase(id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload case %s: %w", id, err)
	}
	return c, nil
}

// ListTransactions returns the most recent transactions
func (s *Service) ListTransactions(limit string) ([]*types.Transaction, error) {
	txns, err := s.store.ListTransactions(ParseLimit(limit, DefaultTransactionLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// Metrics returns a freshly computed snapshot
func (s *Service) Metrics() (types.Metrics, error) {
	m, err := s.metrics.Snapshot()
	if err != nil {
		return types.Metrics{}, fmt.Errorf("failed to compute metrics: %w", err)
	}
	return m, nil
}

// ParseLimit converts a raw limit parameter. Any numeric form is accepted
// ("7", "5.5", "1e2") and truncated toward zero. Missing, non-numeric and
// non-finite values, or ones below 1 after truncation, yield def; larger
// values are capped at MaxLimit.
func ParseLimit(raw string, def int) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	f = math.Trunc(f)
	if f < 1 {
		return def
	}
	return int(min(f, MaxLimit))
}
