// Package jobs runs the background housekeeping of the console: purging
// expired session records and evicting idle in-memory state.
package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"admin-console/core/utils"
	"github.com/robfig/cron/v3"
)

type SessionSweeper interface {
	PurgeExpired(ctx context.Context) (int64, error)
	SweepIdle(idle time.Duration) int
	IsCached(id string) bool
}

type EditorSweeper interface {
	Retain(keep func(sessionID string) bool) int
}

type JanitorOptions struct {
	Schedule  string
	IdleAfter time.Duration
	Timeout   time.Duration
}

type SweepResult struct {
	Purged  int64 `json:"purged"`
	Evicted int   `json:"evicted"`
	Editors int   `json:"editors"`
}

type JanitorStats struct {
	TicksTotal      uint64     `json:"ticks_total"`
	TickErrorsTotal uint64     `json:"tick_errors_total"`
	PurgedTotal     uint64     `json:"purged_total"`
	LastTickAtUTC   *time.Time `json:"last_tick_at_utc,omitempty"`
}

type janitorObs struct {
	ticks      atomic.Uint64
	tickErrors atomic.Uint64
	purged     atomic.Uint64
	lastTickNs atomic.Int64
}

// Janitor sweeps sessions on a cron schedule.
type Janitor struct {
	opts     JanitorOptions
	sessions SessionSweeper
	editors  EditorSweeper
	logger   *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	obs     janitorObs
}

func NewJanitor(opts JanitorOptions, sessions SessionSweeper, editors EditorSweeper, logger *utils.Logger) (*Janitor, error) {
	if sessions == nil {
		return nil, errors.New("janitor needs a session sweeper")
	}
	opts.Schedule = strings.TrimSpace(opts.Schedule)
	if opts.Schedule == "" {
		opts.Schedule = "@every 15m"
	}
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, err
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Janitor{opts: opts, sessions: sessions, editors: editors, logger: logger}, nil
}

func (j *Janitor) StartWithContext(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(j.opts.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, j.opts.Timeout)
		defer cancel()
		_, _ = j.RunOnce(runCtx)
	}); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	j.running = true
	j.logger.Printf("session janitor started schedule=%q", j.opts.Schedule)
	return nil
}

// StopWithContext waits for a running sweep to finish or ctx to expire.
func (j *Janitor) StopWithContext(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	purged, err := j.sessions.PurgeExpired(ctx)
	if err != nil {
		j.logger.Errorf("janitor purge: %v", err)
	} else {
		res.Purged = purged
	}
	res.Evicted = j.sessions.SweepIdle(j.opts.IdleAfter)
	if j.editors != nil {
		res.Editors = j.editors.Retain(j.sessions.IsCached)
	}
	j.record(time.Now(), res, err)
	if res.Purged > 0 || res.Evicted > 0 || res.Editors > 0 {
		j.logger.Printf("janitor sweep purged=%d evicted=%d editors=%d", res.Purged, res.Evicted, res.Editors)
	}
	return res, err
}

func (j *Janitor) record(now time.Time, res SweepResult, err error) {
	j.obs.ticks.Add(1)
	if err != nil {
		j.obs.tickErrors.Add(1)
	}
	if res.Purged > 0 {
		j.obs.purged.Add(uint64(res.Purged))
	}
	j.obs.lastTickNs.Store(now.UTC().UnixNano())
}

func (j *Janitor) StatsSnapshot() JanitorStats {
	if j == nil {
		return JanitorStats{}
	}
	ns := j.obs.lastTickNs.Load()
	var last *time.Time
	if ns > 0 {
		t := time.Unix(0, ns).UTC()
		last = &t
	}
	return JanitorStats{
		TicksTotal:      j.obs.ticks.Load(),
		TickErrorsTotal: j.obs.tickErrors.Load(),
		PurgedTotal:     j.obs.purged.Load(),
		LastTickAtUTC:   last,
	}
}
