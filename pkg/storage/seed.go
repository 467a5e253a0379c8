package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuemby/riskfeed/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// SeedLoader produces the first-run dataset. It is only called when the
// alert collection is empty.
type SeedLoader func() (*types.Seed, error)

// SeedFromFile returns a SeedLoader reading the JSON seed file at path
func SeedFromFile(path string) SeedLoader {
	return func() (*types.Seed, error) {
		return LoadSeedFile(path)
	}
}

// LoadSeedFile reads and decodes a seed file
func LoadSeedFile(path string) (*types.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSeedMissing, path)
		}
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed types.Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSeedMalformed, path, err)
	}
	return &seed, nil
}

// WriteSeedFile encodes seed as indented JSON at path
func WriteSeedFile(path string, seed *types.Seed) error {
	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode seed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create seed directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write seed file: %w", err)
	}
	return nil
}

// SeedIfEmpty loads the seed dataset when no alert exists yet. All records
// are inserted in a single transaction, so an interrupted or failed seed
// leaves the store empty. It reports whether seeding happened.
func (s *BoltStore) SeedIfEmpty(load SeedLoader) (bool, error) {
	var counts types.StoreStats
	seeded := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketAlerts).Stats().KeyN > 0 {
			return nil
		}

		seed, err := load()
		if err != nil {
			return err
		}

		for _, c := range seed.Cases {
			if err := insertCase(tx, c); err != nil {
				return fmt.Errorf("failed to seed case: %w", err)
			}
		}
		for _, alert := range seed.Alerts {
			if err := insertAlert(tx, alert); err != nil {
				return fmt.Errorf("failed to seed alert: %w", err)
			}
		}
		for _, txn := range seed.Transactions {
			if err := insertTransaction(tx, txn); err != nil {
				return fmt.Errorf("failed to seed transaction: %w", err)
			}
		}

		counts = types.StoreStats{
			Cases:        len(seed.Cases),
			Alerts:       len(seed.Alerts),
			Transactions: len(seed.Transactions),
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if seeded {
		s.logger.Info().
			Int("cases", counts.Cases).
			Int("alerts", counts.Alerts).
			Int("transactions", counts.Transactions).
			Msg("Store seeded")
	}
	return seeded, nil
}

// Initialize opens the store at dbPath and seeds it from load if it holds no
// alerts. Any error here means the server must not start.
func Initialize(dbPath string, load SeedLoader) (*BoltStore, error) {
	store, err := NewBoltStore(dbPath)
	if err != nil {
		return nil, err
	}

	seeded, err := store.SeedIfEmpty(load)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}
	if !seeded {
		store.logger.Debug().Msg("Store already populated, skipping seed")
	}

	return store, nil
}
