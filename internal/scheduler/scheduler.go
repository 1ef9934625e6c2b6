package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/engage"
	"github.com/keywatch/keywatch/internal/scanner"
)

// Scheduler periodically scans active campaigns and engages pending
// matches for campaigns with auto-engagement enabled. The two cycles
// run on independent intervals.
type Scheduler struct {
	db      *database.DB
	scanner *scanner.Scanner
	engager *engage.Engager

	scanInterval   time.Duration
	engageInterval time.Duration
}

// New creates a Scheduler. Intervals <= 0 fall back to 10 and 5
// minutes respectively.
func New(db *database.DB, sc *scanner.Scanner, en *engage.Engager, scanInterval, engageInterval time.Duration) *Scheduler {
	if scanInterval <= 0 {
		scanInterval = 10 * time.Minute
	}
	if engageInterval <= 0 {
		engageInterval = 5 * time.Minute
	}
	return &Scheduler{
		db:             db,
		scanner:        sc,
		engager:        en,
		scanInterval:   scanInterval,
		engageInterval: engageInterval,
	}
}

// Run blocks until the context is cancelled, firing scan and engage
// cycles on their tickers. Both cycles run once immediately on start.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler started (scan every %v, engage every %v)", s.scanInterval, s.engageInterval)

	s.RunScanCycle(ctx)
	s.RunEngageCycle(ctx)

	scanTick := time.NewTicker(s.scanInterval)
	defer scanTick.Stop()
	engageTick := time.NewTicker(s.engageInterval)
	defer engageTick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler stopped")
			return
		case <-scanTick.C:
			s.RunScanCycle(ctx)
		case <-engageTick.C:
			s.RunEngageCycle(ctx)
		}
	}
}

// RunScanCycle scans every active campaign once. A failing campaign is
// logged and does not block the others.
func (s *Scheduler) RunScanCycle(ctx context.Context) {
	campaigns, err := s.db.GetActiveCampaigns()
	if err != nil {
		log.Printf("scan cycle: loading campaigns: %v", err)
		return
	}
	for i := range campaigns {
		if ctx.Err() != nil {
			return
		}
		c := &campaigns[i]
		r := s.scanner.Scan(ctx, c)
		if len(r.PlatformErrors) > 0 {
			for p, err := range r.PlatformErrors {
				log.Printf("scan campaign %d: %s: %v", c.ID, p, err)
			}
		}
		if r.NewMatches > 0 {
			log.Printf("scan campaign %d: %d new matches (%d duplicates)", c.ID, r.NewMatches, r.Duplicates)
		}
	}
}

// RunEngageCycle processes one batch of pending matches for every
// campaign with auto-engagement enabled.
func (s *Scheduler) RunEngageCycle(ctx context.Context) {
	campaigns, err := s.db.GetAutoEngageCampaigns()
	if err != nil {
		log.Printf("engage cycle: loading campaigns: %v", err)
		return
	}
	for i := range campaigns {
		if ctx.Err() != nil {
			return
		}
		c := &campaigns[i]
		r, err := s.engager.ProcessCampaign(ctx, c)
		if err != nil {
			log.Printf("engage campaign %d: %v", c.ID, err)
			continue
		}
		if r.Processed > 0 {
			log.Printf("engage campaign %d: %d engaged, %d skipped, %d failed", c.ID, r.Engaged, r.Skipped, r.Failed)
		}
	}
}
