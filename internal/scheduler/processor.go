package scheduler

import (
	"context"
	"fmt"
	"time"

	"shelfsync/internal/database"
	"shelfsync/internal/domain"
	"shelfsync/internal/events"
	"shelfsync/internal/metrics"
	"shelfsync/internal/models"
	"shelfsync/internal/worker"

	"github.com/rs/zerolog"
)

const (
	catalogTimeout   = 30 * time.Second
	dueBatchSize     = 50
	defaultSchedPoll = 60 * time.Second
)

// Processor fires due price adjustment schedules: it resolves the
// pending trigger, pushes the promotional or original prices to the
// catalog target and advances the schedule clock. A failed price push
// is logged but never stalls the clock.
type Processor struct {
	db           *database.DB
	target       domain.CatalogTarget
	bus          domain.EventPublisher
	logger       zerolog.Logger
	pollInterval time.Duration
	retry        worker.RetryPolicy
	now          func() time.Time
}

func NewProcessor(db *database.DB, target domain.CatalogTarget, bus domain.EventPublisher, logger *zerolog.Logger) *Processor {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "schedule_processor").Logger()
	}

	return &Processor{
		db:           db,
		target:       target,
		bus:          bus,
		logger:       log,
		pollInterval: defaultSchedPoll,
		retry:        worker.RetryPolicy{MaxAttempts: 1},
		now:          time.Now,
	}
}

// SetRetryPolicy configures in-process retries for the price pushes.
// Transient catalog errors are retried within a single trigger; a push
// that still fails after that is logged and the clock advances anyway.
func (p *Processor) SetRetryPolicy(policy worker.RetryPolicy) {
	if policy.MaxAttempts > 0 {
		p.retry = policy
	}
}

// SetPollInterval overrides the sleep between poll passes.
func (p *Processor) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// Start runs the poll loop until ctx is done. A due schedule always
// finishes processing before the loop re-checks ctx.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info().Dur("poll_interval", p.pollInterval).Msg("schedule processor started")
	defer p.logger.Info().Msg("schedule processor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.runPass(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *Processor) runPass(ctx context.Context) {
	now := p.now()
	due, err := p.db.GetDueSchedules(ctx, now, dueBatchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("get due schedules")
		return
	}

	for i := range due {
		if err := p.ProcessOne(ctx, &due[i]); err != nil {
			p.logger.Error().Err(err).Int64("schedule_id", due[i].ID).Msg("process schedule")
		}
	}
}

// ProcessOne evaluates one schedule right now. It is the shared entry
// point for the poll loop and the manual trigger endpoint.
func (p *Processor) ProcessOne(ctx context.Context, s *models.PriceAdjustmentSchedule) error {
	if !s.IsActive {
		return fmt.Errorf("schedule %d is not active", s.ID)
	}

	store, err := p.db.GetStore(ctx, s.TargetID)
	if err != nil {
		return fmt.Errorf("resolve store: %w", err)
	}
	loc, err := time.LoadLocation(store.Timezone)
	if err != nil {
		return fmt.Errorf("load store timezone %q: %w", store.Timezone, err)
	}

	now := p.now()
	trig, ok := NextTrigger(s, now, loc)
	if !ok {
		return p.deactivate(ctx, s)
	}

	if trig.At.After(now.Add(BoundaryTolerance)) {
		// Not actually due yet; repair the persisted trigger instant
		// without firing.
		last := now
		if s.LastTriggeredAt != nil {
			last = *s.LastTriggeredAt
		}
		return p.db.UpdateScheduleTrigger(ctx, s.ID, &trig.At, last)
	}

	p.fire(ctx, s, store, trig)

	// Advance strictly past the fired boundary even when the fire
	// happened within the tolerance window.
	advanceFrom := now
	if earliest := trig.At.Add(BoundaryTolerance); advanceFrom.Before(earliest) {
		advanceFrom = earliest
	}
	next, ok := NextTrigger(s, advanceFrom, loc)
	if !ok {
		if err := p.deactivate(ctx, s); err != nil {
			return err
		}
		return p.touchLastTriggered(ctx, s, now)
	}
	return p.db.UpdateScheduleTrigger(ctx, s.ID, &next.At, now)
}

// fire applies one trigger's price changes. Errors are logged and
// reported, never returned: the schedule clock must keep moving.
func (p *Processor) fire(ctx context.Context, s *models.PriceAdjustmentSchedule, store *models.Store, trig Trigger) {
	updates := make([]models.PriceUpdate, 0, len(s.Products))
	for _, product := range s.Products {
		switch trig.Kind {
		case EventStart:
			updates = append(updates, models.PriceUpdate{Code: product.Code, Price: product.PromotionalPrice})
		case EventEnd:
			if product.OriginalPrice == nil {
				p.logger.Warn().
					Int64("schedule_id", s.ID).
					Str("product_code", product.Code).
					Msg("no original price recorded, skipping restore")
				if p.bus != nil {
					_ = p.bus.PublishJSON(events.EventPriceRestoreSkipped, events.SchedulePayload{
						ScheduleID:  s.ID,
						TargetID:    s.TargetID,
						ProductCode: product.Code,
					})
				}
				continue
			}
			updates = append(updates, models.PriceUpdate{Code: product.Code, Price: *product.OriginalPrice})
		}
	}

	metrics.IncScheduleTrigger(string(trig.Kind))
	if p.bus != nil {
		_ = p.bus.PublishJSON(events.EventScheduleTriggered, events.SchedulePayload{
			ScheduleID:   s.ID,
			TargetID:     s.TargetID,
			Event:        string(trig.Kind),
			ProductCount: len(updates),
		})
	}

	if len(updates) == 0 {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	start := time.Now()
	err := p.retry.Do(callCtx, func(ctx context.Context) error {
		return p.target.BulkSetPrice(ctx, store, updates)
	})
	metrics.ObserveCatalogCall(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error().
			Err(err).
			Int64("schedule_id", s.ID).
			Str("event", string(trig.Kind)).
			Int("products", len(updates)).
			Msg("bulk price push failed")
		return
	}

	p.logger.Info().
		Int64("schedule_id", s.ID).
		Str("event", string(trig.Kind)).
		Time("trigger_at", trig.At).
		Int("products", len(updates)).
		Msg("schedule trigger applied")
}

func (p *Processor) deactivate(ctx context.Context, s *models.PriceAdjustmentSchedule) error {
	if err := p.db.DeactivateSchedule(ctx, s.ID); err != nil {
		return err
	}
	s.IsActive = false
	s.NextTriggerAt = nil
	if p.bus != nil {
		_ = p.bus.PublishJSON(events.EventScheduleDeactivated, events.SchedulePayload{
			ScheduleID: s.ID,
			TargetID:   s.TargetID,
		})
	}
	p.logger.Info().Int64("schedule_id", s.ID).Msg("schedule exhausted, deactivated")
	return nil
}

func (p *Processor) touchLastTriggered(ctx context.Context, s *models.PriceAdjustmentSchedule, now time.Time) error {
	return p.db.TouchLastTriggered(ctx, s.ID, now)
}
