package report

import (
	"bytes"
	"testing"
	"time"

	"shelfsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteSyncReport(t *testing.T) {
	errMsg := "catalog returned status 503"
	entries := []models.SyncLogEntry{
		{
			ID: 1, QueueItemID: 10, SubjectID: 100, TargetID: 1,
			Operation: models.OpUpdate, Status: models.LogSucceeded,
			DurationMs: 42, CreatedAt: time.Now(),
		},
		{
			ID: 2, QueueItemID: 11, SubjectID: 101, TargetID: 1,
			Operation: models.OpDelete, Status: models.LogFailed,
			ErrorCode: models.ErrCodeTransient, ErrorMessage: errMsg,
			DurationMs: 1000, CreatedAt: time.Now(),
		},
	}
	failed := []models.SyncQueueItem{
		{
			ID: 11, SubjectID: 101, TargetID: 1, Operation: models.OpDelete,
			Status: models.QueueFailed, RetryCount: 3,
			ErrorMessage: &errMsg, ScheduledAt: time.Now(),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSyncReport(&buf, entries, failed))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.GetSheetList(), "Sync Log")
	assert.Contains(t, f.GetSheetList(), "Failed Items")

	status, err := f.GetCellValue("Sync Log", "F2")
	require.NoError(t, err)
	assert.Equal(t, models.LogSucceeded, status)

	code, err := f.GetCellValue("Sync Log", "G3")
	require.NoError(t, err)
	assert.Equal(t, models.ErrCodeTransient, code)

	retries, err := f.GetCellValue("Failed Items", "E2")
	require.NoError(t, err)
	assert.Equal(t, "3", retries)
}

func TestWriteSyncReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSyncReport(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.GetSheetList(), "Sync Log")
	assert.NotContains(t, f.GetSheetList(), "Failed Items")

	header, err := f.GetCellValue("Sync Log", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)
}
