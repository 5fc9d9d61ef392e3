package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shelfsync/internal/database"
	"shelfsync/internal/events"
	"shelfsync/internal/models"
	"shelfsync/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceRecorder struct {
	pushes   [][]models.PriceUpdate
	pushErr  error
	pushErrs []error
}

func (r *priceRecorder) Apply(ctx context.Context, operation string, product *models.Product, store *models.Store) error {
	return nil
}

func (r *priceRecorder) BulkSetPrice(ctx context.Context, store *models.Store, prices []models.PriceUpdate) error {
	r.pushes = append(r.pushes, prices)
	if len(r.pushErrs) > 0 {
		err := r.pushErrs[0]
		r.pushErrs = r.pushErrs[1:]
		return err
	}
	return r.pushErr
}

type recordingBus struct {
	types []string
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	b.types = append(b.types, eventType)
	return nil
}

func setupScheduler(t *testing.T, target *priceRecorder, bus *recordingBus) (*Processor, *database.DB) {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.UpsertStore(context.Background(), &models.Store{
		ID: 1, Name: "Store", ExternalCode: "S001", Timezone: "Europe/Berlin", Active: true,
	}))

	p := NewProcessor(db, target, nil, &logger)
	if bus != nil {
		p.bus = bus
	}
	return p, db
}

func createSchedule(t *testing.T, db *database.DB, s *models.PriceAdjustmentSchedule) {
	t.Helper()
	require.NoError(t, db.CreateSchedule(context.Background(), s))
}

func promoSchedule(original *float64) *models.PriceAdjustmentSchedule {
	next := time.Date(2026, 3, 3, 10, 0, 0, 0, berlin)
	return &models.PriceAdjustmentSchedule{
		TargetID: 1,
		Name:     "Promo",
		Products: []models.ScheduleProduct{
			{Code: "SKU-1", PromotionalPrice: 4.99, OriginalPrice: original},
		},
		StartDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, berlin),
		RepeatType:    models.RepeatDaily,
		TimeSlots:     []models.TimeSlot{{StartTime: "10:00", EndTime: "17:00"}},
		IsActive:      true,
		NextTriggerAt: &next,
	}
}

func TestProcessOneFiresStart(t *testing.T) {
	target := &priceRecorder{}
	bus := &recordingBus{}
	p, db := setupScheduler(t, target, bus)

	original := 9.99
	s := promoSchedule(&original)
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 10, 0, 10, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	require.Len(t, target.pushes, 1)
	require.Len(t, target.pushes[0], 1)
	assert.Equal(t, "SKU-1", target.pushes[0][0].Code)
	assert.Equal(t, 4.99, target.pushes[0][0].Price)
	assert.Contains(t, bus.types, events.EventScheduleTriggered)

	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	// Clock advanced to the same day's end boundary.
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, berlin).Unix(), got.NextTriggerAt.Unix())
	require.NotNil(t, got.LastTriggeredAt)
}

func TestProcessOneFiresEndRestoresOriginal(t *testing.T) {
	target := &priceRecorder{}
	p, db := setupScheduler(t, target, nil)

	original := 9.99
	s := promoSchedule(&original)
	end := time.Date(2026, 3, 3, 17, 0, 0, 0, berlin)
	s.NextTriggerAt = &end
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 17, 0, 20, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	require.Len(t, target.pushes, 1)
	assert.Equal(t, 9.99, target.pushes[0][0].Price)

	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	// Next boundary is tomorrow's window open.
	assert.Equal(t, time.Date(2026, 3, 4, 10, 0, 0, 0, berlin).Unix(), got.NextTriggerAt.Unix())
}

func TestProcessOneMissingOriginalSkipsRestore(t *testing.T) {
	target := &priceRecorder{}
	bus := &recordingBus{}
	p, db := setupScheduler(t, target, bus)

	s := promoSchedule(nil)
	end := time.Date(2026, 3, 3, 17, 0, 0, 0, berlin)
	s.NextTriggerAt = &end
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 17, 0, 20, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	// No price push happened, but the clock still advanced.
	assert.Empty(t, target.pushes)
	assert.Contains(t, bus.types, events.EventPriceRestoreSkipped)

	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	assert.True(t, got.NextTriggerAt.After(end))
}

func TestProcessOnePushFailureStillAdvances(t *testing.T) {
	target := &priceRecorder{pushErr: errors.New("esl offline")}
	p, db := setupScheduler(t, target, nil)

	original := 9.99
	s := promoSchedule(&original)
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 10, 0, 10, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, berlin).Unix(), got.NextTriggerAt.Unix())
}

func TestProcessOneRetriesTransientPush(t *testing.T) {
	target := &priceRecorder{pushErrs: []error{&worker.StatusError{Code: 503, Body: "unavailable"}}}
	p, db := setupScheduler(t, target, nil)
	p.SetRetryPolicy(worker.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond})

	original := 9.99
	s := promoSchedule(&original)
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 10, 0, 10, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	// First push hit a 503, the in-process retry got through.
	require.Len(t, target.pushes, 2)
	assert.Equal(t, 4.99, target.pushes[1][0].Price)

	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, berlin).Unix(), got.NextTriggerAt.Unix())
}

func TestProcessOnePermanentPushNotRetried(t *testing.T) {
	target := &priceRecorder{pushErrs: []error{&worker.StatusError{Code: 400, Body: "bad payload"}}}
	p, db := setupScheduler(t, target, nil)
	p.SetRetryPolicy(worker.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond})

	original := 9.99
	s := promoSchedule(&original)
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 10, 0, 10, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	require.Len(t, target.pushes, 1)

	// The clock moves on even when the push failed for good.
	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, berlin).Unix(), got.NextTriggerAt.Unix())
}

func TestProcessOneExhaustedDeactivates(t *testing.T) {
	target := &priceRecorder{}
	bus := &recordingBus{}
	p, db := setupScheduler(t, target, bus)

	original := 9.99
	s := promoSchedule(&original)
	s.RepeatType = models.RepeatNone
	end := time.Date(2026, 3, 2, 17, 0, 0, 0, berlin)
	s.NextTriggerAt = &end
	createSchedule(t, db, s)

	// Firing the final end boundary of a one-shot schedule.
	p.now = func() time.Time { return time.Date(2026, 3, 2, 17, 0, 20, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	require.Len(t, target.pushes, 1)
	assert.Contains(t, bus.types, events.EventScheduleDeactivated)

	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.NextTriggerAt)
	require.NotNil(t, got.LastTriggeredAt)
}

func TestProcessOneNotDueRepairsTrigger(t *testing.T) {
	target := &priceRecorder{}
	p, db := setupScheduler(t, target, nil)

	original := 9.99
	s := promoSchedule(&original)
	// Persisted trigger is stale: it claims the schedule is due while
	// the real next boundary is hours away.
	stale := time.Date(2026, 3, 3, 2, 0, 0, 0, berlin)
	s.NextTriggerAt = &stale
	createSchedule(t, db, s)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 3, 0, 0, 0, berlin) }
	require.NoError(t, p.ProcessOne(context.Background(), s))

	// Nothing fired, trigger repaired to the real boundary.
	assert.Empty(t, target.pushes)
	got, err := db.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, berlin).Unix(), got.NextTriggerAt.Unix())
}

func TestProcessOneInactiveSchedule(t *testing.T) {
	target := &priceRecorder{}
	p, db := setupScheduler(t, target, nil)

	original := 9.99
	s := promoSchedule(&original)
	s.IsActive = false
	createSchedule(t, db, s)

	err := p.ProcessOne(context.Background(), s)
	assert.Error(t, err)
	assert.Empty(t, target.pushes)
}

func TestRunPassProcessesDueOnly(t *testing.T) {
	target := &priceRecorder{}
	p, db := setupScheduler(t, target, nil)

	original := 9.99
	due := promoSchedule(&original)
	createSchedule(t, db, due)

	notDue := promoSchedule(&original)
	later := time.Date(2026, 3, 10, 10, 0, 0, 0, berlin)
	notDue.NextTriggerAt = &later
	createSchedule(t, db, notDue)

	p.now = func() time.Time { return time.Date(2026, 3, 3, 10, 0, 10, 0, berlin) }
	p.runPass(context.Background())

	assert.Len(t, target.pushes, 1)
}
