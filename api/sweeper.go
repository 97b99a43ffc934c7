/*
sweeper.go - Scheduled cleanup of superseded drafts

PURPOSE:
  Drafts accumulate while operators explore scenarios; superseded ones that
  never became primary are noise after a while. The sweeper archives
  non-primary Drafts older than a TTL on a cron schedule.

  The sweeper learns case ids from the invalidation feed: RefreshCase both
  registers a case for future sweeps and sweeps it immediately, so a case
  touched by another node gets tidied here too.

CONFIGURATION:
  - Cron spec (default: hourly)
  - DraftTTL: age after which a non-primary Draft is archived

SEE ALSO:
  - feed/feed.go: Invalidation signals that drive RefreshCase
  - plan/version.go: The Archived status this flips versions into
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/plan-engine/plan"
)

// Sweeper archives stale non-primary drafts on a schedule.
type Sweeper struct {
	Store    plan.VersionStore
	Log      *logrus.Logger
	DraftTTL time.Duration

	cron  *cron.Cron
	mu    sync.Mutex
	cases map[plan.CaseID]struct{}
}

// NewSweeper creates a sweeper. A zero ttl defaults to 7 days.
func NewSweeper(store plan.VersionStore, log *logrus.Logger, ttl time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sweeper{
		Store:    store,
		Log:      log,
		DraftTTL: ttl,
		cases:    make(map[plan.CaseID]struct{}),
	}
}

// Start schedules the sweep with the given cron spec (e.g. "@hourly").
func (s *Sweeper) Start(spec string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.Log.WithField("spec", spec).Info("draft sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.Log.Info("draft sweeper stopped")
	}
}

// RefreshCase registers a case for sweeping and sweeps it immediately.
// Wired as the invalidation feed handler.
func (s *Sweeper) RefreshCase(caseID plan.CaseID) {
	s.mu.Lock()
	s.cases[caseID] = struct{}{}
	s.mu.Unlock()
	s.sweepCase(context.Background(), caseID)
}

func (s *Sweeper) sweep() {
	s.mu.Lock()
	ids := make([]plan.CaseID, 0, len(s.cases))
	for id := range s.cases {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	ctx := context.Background()
	for _, id := range ids {
		s.sweepCase(ctx, id)
	}
}

func (s *Sweeper) sweepCase(ctx context.Context, caseID plan.CaseID) {
	versions, err := s.Store.ListVersions(ctx, caseID)
	if err != nil {
		s.Log.WithError(err).WithField("case_id", caseID).Warn("sweep: list failed")
		return
	}
	cutoff := time.Now().Add(-s.DraftTTL)
	archived := 0
	for _, v := range versions {
		if v.Status != plan.VersionDraft || v.IsPrimary {
			continue
		}
		if v.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.Store.UpdateVersionStatus(ctx, v.ID, plan.VersionArchived); err != nil {
			s.Log.WithError(err).WithField("version_id", v.ID).Warn("sweep: archive failed")
			continue
		}
		archived++
	}
	if archived > 0 {
		s.Log.WithFields(logrus.Fields{
			"case_id": caseID, "archived": archived,
		}).Info("sweep: archived stale drafts")
	}
}
