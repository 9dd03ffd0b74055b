package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
)

// HousekeepingService periodically deletes expired links, authorization
// codes, invitations and MFA challenges.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each table is cleaned independently so one
// failure does not stop the others. It returns the number of rows removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := time.Now().UTC()

	jobs := []struct {
		name string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"one_time_tokens", s.Store.OneTimeTokens().DeleteExpiredOneTimeTokens},
		{"flow_states", s.Store.FlowStates().DeleteExpiredFlowStates},
		{"invitations", s.Store.Invitations().DeleteExpiredInvitations},
		{"mfa_challenges", s.Store.MFAChallenges().DeleteExpiredMFAChallenges},
	}

	var total int64
	for _, job := range jobs {
		n, err := job.fn(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping cleanup failed", "table", job.name, "error", err)
			continue
		}
		if n > 0 {
			s.Logger.Debug("deleted expired rows", "table", job.name, "count", n)
		}
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
	return total
}
