package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"aidflow/internal/core"
	"aidflow/internal/data"
	"aidflow/internal/storage"
)

// SeriesStore persists materialized per-year series.
type SeriesStore interface {
	ReplaceYearlySeries(ctx context.Context, calendarID, recordKind string, points []storage.YearlySeriesRow) error
}

// SeriesProcessorConfig holds configuration for the series processor.
type SeriesProcessorConfig struct {
	// PollInterval is how often to refresh all series (default: 5m)
	PollInterval time.Duration

	// Parallelism caps concurrent per-calendar refreshes (default: 4)
	Parallelism int
}

// DefaultSeriesProcessorConfig returns sensible defaults.
func DefaultSeriesProcessorConfig() SeriesProcessorConfig {
	return SeriesProcessorConfig{
		PollInterval: 5 * time.Minute,
		Parallelism:  4,
	}
}

// SeriesProcessor maintains the materialized yearly series: for every stored
// calendar (plus the plain calendar year) and every record kind it
// recomputes the allocation series and swaps it into storage. It runs a
// periodic full refresh and accepts on-demand triggers from AMQP messages.
type SeriesProcessor struct {
	alloc     *AllocationService
	calendars data.CalendarStore
	store     SeriesStore
	config    SeriesProcessorConfig

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	triggerCh chan struct{}
}

func NewSeriesProcessor(alloc *AllocationService, calendars data.CalendarStore, store SeriesStore, config SeriesProcessorConfig) *SeriesProcessor {
	return &SeriesProcessor{
		alloc:     alloc,
		calendars: calendars,
		store:     store,
		config:    config,
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *SeriesProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("series processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.triggerCh = make(chan struct{}, 1)
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Series processor started",
		"poll_interval", p.config.PollInterval,
		"parallelism", p.config.Parallelism)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SeriesProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Series processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Series processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running.
func (p *SeriesProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger requests an immediate refresh without waiting for the next poll.
// Coalesces with any refresh already pending.
func (p *SeriesProcessor) Trigger() {
	p.mu.Lock()
	ch := p.triggerCh
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *SeriesProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Refresh immediately on startup
	if err := p.RefreshAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial series refresh failed", "error", err)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-p.triggerCh:
			if err := p.RefreshAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Triggered series refresh failed", "error", err)
			}
		case <-ticker.C:
			if err := p.RefreshAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic series refresh failed", "error", err)
			}
		}
	}
}

// RefreshAll recomputes and stores the series for every calendar and record
// kind. Calendars refresh in parallel; one bad calendar does not stop the
// rest.
func (p *SeriesProcessor) RefreshAll(ctx context.Context) error {
	start := time.Now()

	p.alloc.InvalidateAll()

	defs, err := p.calendars.ListCustomYears(ctx)
	if err != nil {
		return fmt.Errorf("list custom years: %w", err)
	}

	cals := make([]*core.Calendar, 0, len(defs)+1)
	cals = append(cals, core.CalendarYear())
	for _, def := range defs {
		cal, err := core.NewCalendar(def)
		if err != nil {
			slog.WarnContext(ctx, "Skipping invalid calendar definition",
				"calendar_id", def.ID, "error", err)
			continue
		}
		cals = append(cals, cal)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Parallelism)

	for _, cal := range cals {
		g.Go(func() error {
			return p.refreshCalendar(gctx, cal)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh series: %w", err)
	}

	slog.InfoContext(ctx, "Series refresh completed",
		"calendars", len(cals),
		"duration", time.Since(start).Round(time.Millisecond))

	return nil
}

func (p *SeriesProcessor) refreshCalendar(ctx context.Context, cal *core.Calendar) error {
	for _, kind := range []string{KindTransactions, KindBudgets, KindPlannedDisbursements} {
		overviews, err := p.alloc.Series(ctx, kind, cal.ID(), "")
		if err != nil {
			return fmt.Errorf("compute %s series for calendar %s: %w", kind, cal.ID(), err)
		}

		points := make([]storage.YearlySeriesRow, 0, len(overviews))
		for _, ov := range overviews {
			points = append(points, storage.YearlySeriesRow{
				CalendarID: cal.ID(),
				RecordKind: kind,
				Year:       ov.Year,
				Label:      ov.Label,
				Amount:     ov.Total,
			})
		}

		if err := p.store.ReplaceYearlySeries(ctx, cal.ID(), kind, points); err != nil {
			return fmt.Errorf("store %s series for calendar %s: %w", kind, cal.ID(), err)
		}
	}
	return nil
}
