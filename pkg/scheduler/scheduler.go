package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/riskfeed/pkg/events"
	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/metrics"
	"github.com/cuemby/riskfeed/pkg/synth"
	"github.com/cuemby/riskfeed/pkg/types"
)

// DefaultInterval is the synthesis period
const DefaultInterval = 8 * time.Second

// ErrPaused is returned by RunOnce while the feed is paused
var ErrPaused = errors.New("feed paused")

// Cycler runs one synthesis cycle
type Cycler interface {
	Cycle() (*synth.Result, error)
}

// Publisher broadcasts a new alert with a fresh metrics snapshot
type Publisher interface {
	PublishAlert(alert *types.Alert) (events.DeliveryReport, error)
}

// Status reports the state of the feed
type Status struct {
	Running     bool       `json:"running"`
	Paused      bool       `json:"paused"`
	Interval    string     `json:"interval"`
	Cycles      int64      `json:"cycles"`
	Alerts      int64      `json:"alerts"`
	Cases       int64      `json:"cases"`
	Errors      int64      `json:"errors"`
	LastCycleAt *time.Time `json:"last_cycle_at"`
	LastError   string     `json:"last_error,omitempty"`
}

// Scheduler fires the synthesizer on a fixed period and hands every new
// alert to the publisher
type Scheduler struct {
	cycler    Cycler
	publisher Publisher
	interval  time.Duration
	logger    zerolog.Logger

	cycleMu sync.Mutex // serialises cycles between the loop and RunOnce

	mu      sync.RWMutex
	status  Status
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a new feed scheduler
func NewScheduler(cycler Cycler, publisher Publisher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		cycler:    cycler,
		publisher: publisher,
		interval:  interval,
		logger:    log.WithComponent("feed"),
		status:    Status{Interval: interval.String()},
		stopCh:    make(chan struct{}),
	}
}

// Start begins the scheduler loop. Calling Start again is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.status.Running = true
	s.mu.Unlock()

	metrics.UpdateComponent(metrics.ComponentFeed, true, "")
	s.logger.Info().Dur("interval", s.interval).Msg("Feed started")

	s.wg.Add(1)
	go s.run()
}

// Stop halts the loop and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || !s.status.Running {
		s.mu.Unlock()
		return
	}
	s.status.Running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	metrics.UpdateComponent(metrics.ComponentFeed, false, "stopped")
	s.logger.Info().Msg("Feed stopped")
}

// Pause skips ticks until Resume is called
func (s *Scheduler) Pause() Status {
	s.mu.Lock()
	s.status.Paused = true
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info().Msg("Feed paused")
	return st
}

// Resume re-enables ticks after Pause
func (s *Scheduler) Resume() Status {
	s.mu.Lock()
	s.status.Paused = false
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info().Msg("Feed resumed")
	return st
}

// Status returns a copy of the current feed state
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// RunOnce performs one cycle immediately, outside the ticker
func (s *Scheduler) RunOnce() (*synth.Result, error) {
	s.mu.RLock()
	paused := s.status.Paused
	s.mu.RUnlock()
	if paused {
		return nil, ErrPaused
	}
	return s.tick()
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			paused := s.status.Paused
			s.mu.RUnlock()
			if paused {
				continue
			}
			// Errors are recorded in Status; the next tick still fires
			_, _ = s.tick()
		case <-s.stopCh:
			return
		}
	}
}

// tick performs one synthesis cycle and broadcasts its alert, if any
func (s *Scheduler) tick() (*synth.Result, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CycleDuration)

	result, err := s.cycler.Cycle()
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("Synthesis cycle failed")
		s.record(nil, err)
		return nil, err
	}

	metrics.CyclesTotal.WithLabelValues("transaction").Inc()
	if result.Alert == nil {
		s.record(result, nil)
		return result, nil
	}

	metrics.CyclesTotal.WithLabelValues("alert").Inc()
	if result.Case != nil {
		metrics.CyclesTotal.WithLabelValues("case").Inc()
	}

	report, err := s.publisher.PublishAlert(result.Alert)
	if err != nil {
		// Records are persisted; only the broadcast is lost
		alertLog := log.WithAlertID(result.Alert.ID)
		alertLog.Error().Err(err).Str("component", "feed").Msg("Failed to broadcast alert")
		s.record(result, err)
		return result, err
	}

	s.logger.Debug().
		Str("alert_id", result.Alert.ID).
		Int("delivered", report.Delivered).
		Int("dropped", report.Dropped).
		Int("removed", report.Removed).
		Msg("Alert broadcast")
	s.record(result, nil)
	return result, nil
}

func (s *Scheduler) record(result *synth.Result, err error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastCycleAt = &now
	if err != nil {
		s.status.Errors++
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
	}
	if result == nil {
		return
	}
	s.status.Cycles++
	if result.Alert != nil {
		s.status.Alerts++
	}
	if result.Case != nil {
		s.status.Cases++
	}
}

func (s *Scheduler) snapshotLocked() Status {
	st := s.status
	if st.LastCycleAt != nil {
		at := *st.LastCycleAt
		st.LastCycleAt = &at
	}
	return st
}
