package worker

import (
	"context"
	"encoding/json"
	"time"

	"shelfsync/internal/database"
	"shelfsync/internal/domain"
	"shelfsync/internal/events"
	"shelfsync/internal/metrics"
	"shelfsync/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	deadLetterKey  = "syncer:deadletter"
	catalogTimeout = 30 * time.Second
)

// Processor drains the sync queue and pushes each item to the catalog
// target. Items move pending -> syncing -> succeeded | pending (retry)
// | failed; every attempt writes a sync log entry.
type Processor struct {
	db           *database.DB
	target       domain.CatalogTarget
	redis        *redis.Client
	bus          domain.EventPublisher
	logger       zerolog.Logger
	pollInterval time.Duration
	batchSize    int
}

// NewProcessor builds a queue processor with sane defaults.
func NewProcessor(db *database.DB, target domain.CatalogTarget, redisClient *redis.Client, bus domain.EventPublisher, logger *zerolog.Logger) *Processor {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "sync_processor").Logger()
	}

	return &Processor{
		db:           db,
		target:       target,
		redis:        redisClient,
		bus:          bus,
		logger:       log,
		pollInterval: time.Duration(models.DefaultQueuePollSeconds) * time.Second,
		batchSize:    models.DefaultQueueBatchSize,
	}
}

// SetPollInterval overrides the sleep between poll passes.
func (p *Processor) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// SetBatchSize overrides how many items one pass claims.
func (p *Processor) SetBatchSize(n int) {
	if n > 0 {
		p.batchSize = n
	}
}

// Start runs the poll loop until ctx is done. An in-flight item always
// completes before the loop re-checks ctx, so nothing is left stuck in
// syncing on shutdown.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info().Dur("poll_interval", p.pollInterval).Int("batch_size", p.batchSize).Msg("sync processor started")
	defer p.logger.Info().Msg("sync processor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		items, err := p.db.ClaimPending(ctx, p.batchSize)
		if err != nil {
			p.logger.Error().Err(err).Msg("claim pending items")
			p.sleep(ctx)
			continue
		}

		for i := range items {
			p.ProcessItem(ctx, &items[i])
		}

		if stats, err := p.db.GetQueueStats(ctx); err == nil {
			metrics.SetQueuePending(stats.Pending)
		}

		if len(items) == 0 {
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}

// ProcessItem pushes one claimed item to the catalog target and applies
// the resulting state transition.
func (p *Processor) ProcessItem(ctx context.Context, item *models.SyncQueueItem) {
	start := time.Now()

	err := p.apply(ctx, item)
	duration := time.Since(start)
	metrics.ObserveCatalogCall(duration.Seconds())

	if err == nil {
		if markErr := p.db.MarkSucceeded(ctx, item.ID); markErr != nil {
			p.logger.Error().Err(markErr).Int64("item_id", item.ID).Msg("mark succeeded")
		}
		p.appendLog(ctx, item, models.LogSucceeded, "", "", duration)
		metrics.IncQueueProcessed("succeeded")
		p.logger.Info().
			Int64("item_id", item.ID).
			Str("operation", item.Operation).
			Int64("subject_id", item.SubjectID).
			Int64("target_id", item.TargetID).
			Dur("duration", duration).
			Msg("sync item succeeded")
		return
	}

	kind := Classify(err)
	switch kind {
	case KindPermanent:
		p.failItem(ctx, item, item.RetryCount, models.ErrCodePermanent, err, duration)
	case KindTransient:
		p.appendLog(ctx, item, models.LogFailed, models.ErrCodeTransient, err.Error(), duration)
		if item.RetryCount+1 >= item.MaxRetries {
			p.failTerminal(ctx, item, item.RetryCount+1, models.ErrCodeTransient, err)
			return
		}
		if reqErr := p.db.Requeue(ctx, item.ID, item.RetryCount+1); reqErr != nil {
			p.logger.Error().Err(reqErr).Int64("item_id", item.ID).Msg("requeue item")
		}
		metrics.IncQueueProcessed("retried")
		p.logger.Warn().
			Err(err).
			Int64("item_id", item.ID).
			Int("retry_count", item.RetryCount+1).
			Int("max_retries", item.MaxRetries).
			Msg("sync item requeued")
	}
}

// apply resolves the subject and target and invokes the catalog call
// under a timeout so one stuck call cannot wedge the loop.
func (p *Processor) apply(ctx context.Context, item *models.SyncQueueItem) error {
	store, err := p.db.GetStore(ctx, item.TargetID)
	if err != nil {
		return err
	}

	product, err := p.db.GetProduct(ctx, item.SubjectID)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	err = p.target.Apply(callCtx, item.Operation, product, store)
	if err != nil && item.Operation == models.OpDelete && IsNotFound(err) {
		// Already absent on the target: the delete is satisfied.
		p.logger.Debug().Int64("item_id", item.ID).Msg("delete target not found, treating as success")
		return nil
	}
	return err
}

// failItem marks a permanent failure: no retry, retry count unchanged.
func (p *Processor) failItem(ctx context.Context, item *models.SyncQueueItem, retryCount int, code string, cause error, duration time.Duration) {
	p.appendLog(ctx, item, models.LogFailed, code, cause.Error(), duration)
	p.failTerminal(ctx, item, retryCount, code, cause)
}

// failTerminal finalizes a failed item, mirrors it to the dead letter
// list and publishes a failure event.
func (p *Processor) failTerminal(ctx context.Context, item *models.SyncQueueItem, retryCount int, code string, cause error) {
	details := detailsJSON(item, code, cause)
	if err := p.db.MarkFailed(ctx, item.ID, retryCount, cause.Error(), details); err != nil {
		p.logger.Error().Err(err).Int64("item_id", item.ID).Msg("mark failed")
	}
	metrics.IncQueueProcessed("failed")
	p.pushDeadLetter(ctx, item)

	if p.bus != nil {
		_ = p.bus.PublishJSON(events.EventSyncItemFailed, events.SyncFailurePayload{
			QueueItemID:  item.ID,
			SubjectID:    item.SubjectID,
			TargetID:     item.TargetID,
			Operation:    item.Operation,
			ErrorCode:    code,
			ErrorMessage: cause.Error(),
			RetryCount:   retryCount,
		})
	}

	p.logger.Error().
		Err(cause).
		Int64("item_id", item.ID).
		Str("error_code", code).
		Int("retry_count", retryCount).
		Msg("sync item failed")
}

func (p *Processor) appendLog(ctx context.Context, item *models.SyncQueueItem, status, code, message string, duration time.Duration) {
	entry := &models.SyncLogEntry{
		QueueItemID:  item.ID,
		SubjectID:    item.SubjectID,
		TargetID:     item.TargetID,
		Operation:    item.Operation,
		Status:       status,
		ErrorCode:    code,
		ErrorMessage: message,
		DurationMs:   duration.Milliseconds(),
	}
	if err := p.db.AppendSyncLog(ctx, entry); err != nil {
		p.logger.Error().Err(err).Int64("item_id", item.ID).Msg("append sync log")
	}
}

func (p *Processor) pushDeadLetter(ctx context.Context, item *models.SyncQueueItem) {
	if p.redis == nil {
		return
	}
	data, err := json.Marshal(item)
	if err != nil {
		p.logger.Error().Err(err).Int64("item_id", item.ID).Msg("encode deadletter")
		return
	}
	if err := p.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		p.logger.Error().Err(err).Int64("item_id", item.ID).Msg("deadletter push")
	}
}

func detailsJSON(item *models.SyncQueueItem, code string, cause error) string {
	details, err := json.Marshal(map[string]interface{}{
		"uid":        item.UID,
		"error_kind": code,
		"error":      cause.Error(),
	})
	if err != nil {
		return ""
	}
	return string(details)
}
