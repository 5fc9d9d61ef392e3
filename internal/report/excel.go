// Package report renders operator-facing exports of the sync audit trail.
package report

import (
	"fmt"
	"io"

	"shelfsync/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sync Log"

// WriteSyncReport renders recent sync log entries plus failed queue
// items as an xlsx workbook.
func WriteSyncReport(w io.Writer, entries []models.SyncLogEntry, failed []models.SyncQueueItem) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Queue Item", "Product", "Store", "Operation", "Status", "Error Code", "Error", "Duration (ms)", "At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for row, e := range entries {
		values := []interface{}{
			e.ID, e.QueueItemID, e.SubjectID, e.TargetID, e.Operation,
			e.Status, e.ErrorCode, e.ErrorMessage, e.DurationMs,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	if len(failed) > 0 {
		failedSheet := "Failed Items"
		if _, err := f.NewSheet(failedSheet); err != nil {
			return fmt.Errorf("error creating sheet: %w", err)
		}

		headers := []string{"ID", "Product", "Store", "Operation", "Retries", "Error", "Scheduled", "Processed"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(failedSheet, cell, h)
		}

		for row, item := range failed {
			errMsg := ""
			if item.ErrorMessage != nil {
				errMsg = *item.ErrorMessage
			}
			processed := ""
			if item.ProcessedAt != nil {
				processed = item.ProcessedAt.Format("2006-01-02 15:04:05")
			}
			values := []interface{}{
				item.ID, item.SubjectID, item.TargetID, item.Operation,
				item.RetryCount, errMsg,
				item.ScheduledAt.Format("2006-01-02 15:04:05"), processed,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				_ = f.SetCellValue(failedSheet, cell, v)
			}
		}
	}

	return f.Write(w)
}
