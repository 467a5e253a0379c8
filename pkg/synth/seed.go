package synth

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cuemby/riskfeed/pkg/types"
)

// SeedOptions controls GenerateSeed
type SeedOptions struct {
	Transactions int
	Alerts       int
	Seed         uint64
	End          time.Time     // timestamp of the newest record
	Span         time.Duration // records are spread evenly over [End-Span, End]
}

// seedWriter collects records in memory instead of persisting them
type seedWriter struct {
	seed types.Seed
}

func (w *seedWriter) CreateCase(c *types.Case) error {
	w.seed.Cases = append(w.seed.Cases, c)
	return nil
}

func (w *seedWriter) CreateAlert(alert *types.Alert) error {
	w.seed.Alerts = append(w.seed.Alerts, alert)
	return nil
}

func (w *seedWriter) CreateTransaction(txn *types.Transaction) error {
	w.seed.Transactions = append(w.seed.Transactions, txn)
	return nil
}

// GenerateSeed builds a first-run dataset by running synthesis cycles against
// an in-memory writer. Exactly opts.Alerts of the opts.Transactions cycles
// raise an alert; the rest stay below the alert threshold.
func GenerateSeed(opts SeedOptions) (*types.Seed, error) {
	if opts.Transactions <= 0 {
		return nil, fmt.Errorf("transactions must be positive, got %d", opts.Transactions)
	}
	if opts.Alerts < 0 || opts.Alerts > opts.Transactions {
		return nil, fmt.Errorf("alerts must be between 0 and %d, got %d", opts.Transactions, opts.Alerts)
	}
	if opts.End.IsZero() {
		opts.End = time.Now().UTC()
	}
	if opts.Span <= 0 {
		opts.Span = 7 * 24 * time.Hour
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	rng := rand.New(rand.NewPCG(opts.Seed, ^opts.Seed))

	step := opts.Span / time.Duration(opts.Transactions)
	clock := opts.End.Add(-opts.Span)
	now := func() time.Time { return clock }

	w := &seedWriter{}
	s := New(w, WithSeed(opts.Seed), WithClock(now))

	alerting := make(map[int]bool, opts.Alerts)
	for _, i := range rng.Perm(opts.Transactions)[:opts.Alerts] {
		alerting[i] = true
	}

	for i := 0; i < opts.Transactions; i++ {
		clock = clock.Add(step)

		var risk float64
		if alerting[i] {
			risk = round2(AlertThreshold + rng.Float64()*(MaxRisk-AlertThreshold))
		} else {
			risk = round2(MinRisk + rng.Float64()*(AlertThreshold-MinRisk))
			if risk >= AlertThreshold {
				risk = AlertThreshold - 0.01
			}
		}

		if _, err := s.CycleWithRisk(risk); err != nil {
			return nil, err
		}
	}

	if w.seed.Cases == nil {
		w.seed.Cases = []*types.Case{}
	}
	if w.seed.Alerts == nil {
		w.seed.Alerts = []*types.Alert{}
	}
	return &w.seed, nil
}
