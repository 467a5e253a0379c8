package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/types"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketCases        = []byte("cases")
	bucketAlerts       = []byte("alerts")
	bucketTransactions = []byte("transactions")

	// Time indexes: key = big-endian sign-flipped unix nanos + id, value = id
	bucketAlertsByTime       = []byte("alerts_by_time")
	bucketTransactionsByTime = []byte("transactions_by_time")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// NewBoltStore opens (creating if needed) the database file at dbPath and
// defines the buckets. The parent directory is created if it does not exist.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketCases,
			bucketAlerts,
			bucketTransactions,
			bucketAlertsByTime,
			bucketTransactionsByTime,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{
		db:     db,
		logger: log.WithComponent("storage"),
	}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// timeKey builds a time index key that sorts chronologically. The sign bit
// is flipped so times before 1970 order ahead of later ones.
func timeKey(t time.Time, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(t.UTC().UnixNano())^(1<<63))
	return append(key, id...)
}

// putNew stores value under id, failing if the id is already taken
func putNew(b *bolt.Bucket, kind, id string, value any) error {
	if id == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if b.Get([]byte(id)) != nil {
		return fmt.Errorf("%s %s: %w", kind, id, ErrAlreadyExists)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), data)
}

// Case operations

func (s *BoltStore) CreateCase(c *types.Case) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return insertCase(tx, c)
	})
}

func insertCase(tx *bolt.Tx, c *types.Case) error {
	return putNew(tx.Bucket(bucketCases), "case", c.ID, c)
}

func (s *BoltStore) GetCase(id string) (*types.Case, error) {
	var c types.Case
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCases).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("case %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCaseWithRelated returns the case plus the alerts and transactions that
// reference it, newest first
func (s *BoltStore) GetCaseWithRelated(id string) (*types.CaseDetail, error) {
	detail := &types.CaseDetail{
		Alerts:       []*types.Alert{},
		Transactions: []*types.Transaction{},
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCases).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("case %s: %w", id, ErrNotFound)
		}
		if err := json.Unmarshal(data, &detail.Case); err != nil {
			return err
		}

		err := tx.Bucket(bucketAlerts).ForEach(func(k, v []byte) error {
			var alert types.Alert
			if err := json.Unmarshal(v, &alert); err != nil {
				return err
			}
			if alert.CaseID != nil && *alert.CaseID == id {
				detail.Alerts = append(detail.Alerts, &alert)
			}
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket(bucketTransactions).ForEach(func(k, v []byte) error {
			var txn types.Transaction
			if err := json.Unmarshal(v, &txn); err != nil {
				return err
			}
			if txn.CaseID != nil && *txn.CaseID == id {
				detail.Transactions = append(detail.Transactions, &txn)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(detail.Alerts, func(i, j int) bool {
		return detail.Alerts[i].CreatedAt.After(detail.Alerts[j].CreatedAt)
	})
	sort.SliceStable(detail.Transactions, func(i, j int) bool {
		return detail.Transactions[i].CreatedAt.After(detail.Transactions[j].CreatedAt)
	})
	return detail, nil
}

// ListCases returns every case ordered by update time, most recent first
func (s *BoltStore) ListCases() ([]*types.Case, error) {
	cases := []*types.Case{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCases).ForEach(func(k, v []byte) error {
			var c types.Case
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			cases = append(cases, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].UpdatedAt.Equal(cases[j].UpdatedAt) {
			return cases[i].ID > cases[j].ID
		}
		return cases[i].UpdatedAt.After(cases[j].UpdatedAt)
	})
	return cases, nil
}

// UpdateCaseStatus changes a case's status and bumps its update time
func (s *BoltStore) UpdateCaseStatus(id string, status types.CaseStatus, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCases)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("case %s: %w", id, ErrNotFound)
		}

		var c types.Case
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		c.Status = status
		c.UpdatedAt = at

		updated, err := json.Marshal(&c)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// CountCasesByStatus counts cases whose status is one of statuses
func (s *BoltStore) CountCasesByStatus(statuses ...types.CaseStatus) (int, error) {
	wanted := make(map[types.CaseStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCases).ForEach(func(k, v []byte) error {
			var c struct {
				Status types.CaseStatus `json:"status"`
			}
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if wanted[c.Status] {
				count++
			}
			return nil
		})
	})
	return count, err
}

// Alert operations

func (s *BoltStore) CreateAlert(alert *types.Alert) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return insertAlert(tx, alert)
	})
}

func insertAlert(tx *bolt.Tx, alert *types.Alert) error {
	if err := putNew(tx.Bucket(bucketAlerts), "alert", alert.ID, alert); err != nil {
		return err
	}
	return tx.Bucket(bucketAlertsByTime).Put(timeKey(alert.CreatedAt, alert.ID), []byte(alert.ID))
}

// ListAlerts returns up to limit alerts, newest first. A limit <= 0 returns all.
func (s *BoltStore) ListAlerts(limit int) ([]*types.Alert, error) {
	alerts := []*types.Alert{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return newestFirst(tx, bucketAlertsByTime, bucketAlerts, limit, func(v []byte) error {
			var alert types.Alert
			if err := json.Unmarshal(v, &alert); err != nil {
				return err
			}
			alerts = append(alerts, &alert)
			return nil
		})
	})
	return alerts, err
}

// CountHighRiskOpenAlerts counts alerts at or above minRisk that are not resolved
func (s *BoltStore) CountHighRiskOpenAlerts(minRisk float64) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAlerts).ForEach(func(k, v []byte) error {
			var alert struct {
				RiskScore float64           `json:"risk_score"`
				Status    types.AlertStatus `json:"status"`
			}
			if err := json.Unmarshal(v, &alert); err != nil {
				return err
			}
			if alert.RiskScore >= minRisk && alert.Status != types.AlertStatusResolved {
				count++
			}
			return nil
		})
	})
	return count, err
}

// Transaction operations

func (s *BoltStore) CreateTransaction(txn *types.Transaction) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return insertTransaction(tx, txn)
	})
}

func insertTransaction(tx *bolt.Tx, txn *types.Transaction) error {
	if err := putNew(tx.Bucket(bucketTransactions), "transaction", txn.ID, txn); err != nil {
		return err
	}
	return tx.Bucket(bucketTransactionsByTime).Put(timeKey(txn.CreatedAt, txn.ID), []byte(txn.ID))
}

// ListTransactions returns up to limit transactions, newest first. A limit <= 0 returns all.
func (s *BoltStore) ListTransactions(limit int) ([]*types.Transaction, error) {
	txns := []*types.Transaction{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return newestFirst(tx, bucketTransactionsByTime, bucketTransactions, limit, func(v []byte) error {
			var txn types.Transaction
			if err := json.Unmarshal(v, &txn); err != nil {
				return err
			}
			txns = append(txns, &txn)
			return nil
		})
	})
	return txns, err
}

func (s *BoltStore) CountTransactions() (int, error) {
	return s.count(bucketTransactions)
}

// Utility

// Stats returns the number of records in each collection
func (s *BoltStore) Stats() (types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.View(func(tx *bolt.Tx) error {
		stats.Cases = tx.Bucket(bucketCases).Stats().KeyN
		stats.Alerts = tx.Bucket(bucketAlerts).Stats().KeyN
		stats.Transactions = tx.Bucket(bucketTransactions).Stats().KeyN
		return nil
	})
	return stats, err
}

func (s *BoltStore) count(bucket []byte) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// newestFirst walks index in reverse key order and calls fn with the record
// each entry points at, stopping after limit records when limit > 0
func newestFirst(tx *bolt.Tx, index, records []byte, limit int, fn func(v []byte) error) error {
	b := tx.Bucket(records)
	c := tx.Bucket(index).Cursor()

	n := 0
	for k, id := c.Last(); k != nil; k, id = c.Prev() {
		if limit > 0 && n >= limit {
			break
		}
		data := b.Get(id)
		if data == nil {
			// Dangling index entry
			continue
		}
		if err := fn(data); err != nil {
			return err
		}
		n++
	}
	return nil
}
