package storage

import (
	"errors"
	"time"

	"github.com/cuemby/riskfeed/pkg/types"
)

var (
	// ErrNotFound is returned when a record lookup matches nothing
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an insert collides with an existing id
	ErrAlreadyExists = errors.New("already exists")
	// ErrSeedMissing is returned when an empty store has no seed source to load
	ErrSeedMissing = errors.New("seed source missing")
	// ErrSeedMalformed is returned when the seed source cannot be decoded
	ErrSeedMalformed = errors.New("seed source malformed")
)

// Store defines the persistence operations for cases, alerts and transactions.
// Records are append-only apart from UpdateCaseStatus, which exists for
// external case editors.
type Store interface {
	// Cases
	CreateCase(c *types.Case) error
	GetCase(id string) (*types.Case, error)
	GetCaseWithRelated(id string) (*types.CaseDetail, error)
	ListCases() ([]*types.Case, error)
	UpdateCaseStatus(id string, status types.CaseStatus, at time.Time) error
	CountCasesByStatus(statuses ...types.CaseStatus) (int, error)

	// Alerts
	CreateAlert(alert *types.Alert) error
	ListAlerts(limit int) ([]*types.Alert, error)
	CountHighRiskOpenAlerts(minRisk float64) (int, error)

	// Transactions
	CreateTransaction(txn *types.Transaction) error
	ListTransactions(limit int) ([]*types.Transaction, error)
	CountTransactions() (int, error)

	// Utility
	Stats() (types.StoreStats, error)
	Close() error
}
