package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"optipress/internal/fetch"
	"optipress/internal/store"
	"optipress/internal/verify"
)

// Scheduler periodically re-audits published drafts on their cron
// schedule. A redis lock prevents duplicate runs across replicas.
type Scheduler struct {
	Store    *store.Store
	Stop     chan struct{}
	Rdb      *redis.Client
	Verifier *verify.Verifier
	Fetcher  fetch.Fetcher
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	drafts, err := s.Store.ListPublishedDrafts(ctx)
	if err != nil {
		s.Logger.Printf("list published drafts: %v", err)
		return
	}
	for _, d := range drafts {
		last, _ := s.Store.LatestImpactTime(ctx, d.ID)
		if !isDue(d.ReauditCron, last) {
			continue
		}

		unlock := func() {}
		if s.Rdb != nil {
			lockKey := "reaudit:lock:" + d.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
			unlock = func() { s.Rdb.Del(ctx, lockKey) }
		}

		go s.reaudit(ctx, d, unlock)
	}
}

// reaudit snapshots the live page and runs a score-only verification
// against it. The previous stored score becomes the baseline. The lock
// is held until the verification and score update complete.
func (s *Scheduler) reaudit(ctx context.Context, d store.Draft, unlock func()) {
	defer unlock()

	// jitter to avoid stampedes
	time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)

	body := d.OptimizedBody
	if s.Fetcher != nil {
		snap, err := s.Fetcher.Snapshot(ctx, d.Permalink)
		if err != nil {
			s.Logger.Printf("snapshot %s: %v", d.Permalink, err)
		} else if snap.Text != "" {
			body = snap.Text
		}
	}

	rec := s.Verifier.VerifyAfterPublish(ctx, verify.Params{
		UserID:       d.UserID,
		DraftID:      d.ID,
		SchemaSource: verify.SchemaNone,
		Body:         body,
		PreScore:     d.Score,
		Permalink:    d.Permalink,
	})
	if rec.ScoreAfter != nil {
		if err := s.Store.SetDraftScore(ctx, d.ID, *rec.ScoreAfter); err != nil {
			s.Logger.Printf("update score %s: %v", d.ID, err)
		}
	}
}

// isDue determines if a draft with cronSpec should re-audit now based
// on the last verification time. Supports "@daily", "@hourly", and
// standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
