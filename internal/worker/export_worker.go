package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fatture/internal/amqp"
	"fatture/internal/export"
	"fatture/internal/log"
	"fatture/internal/storage"
)

// ExportWorker mirrors materialized ledger entries into an external ledger
// document. It is driven by AMQP entry-created messages, with a startup
// backlog sweep to recover from messages lost while the worker was down.
type ExportWorker struct {
	repo      storage.Repository
	writer    export.EntryWriter
	batchSize int
}

func NewExportWorker(repo storage.Repository, writer export.EntryWriter, batchSize int) *ExportWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &ExportWorker{
		repo:      repo,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleEntryCreated processes a single entry created message from AMQP
func (w *ExportWorker) HandleEntryCreated(ctx context.Context, msg *amqp.EntryCreatedMessage) error {
	slog.InfoContext(ctx, "Processing entry created message",
		log.FieldComponent, log.ComponentExport,
		log.FieldEntryID, msg.EntryID,
		log.FieldOrgID, msg.OrgID)

	return w.exportEntry(ctx, msg.OrgID, msg.EntryID)
}

// ProcessPendingEntries exports entries that were materialized but never
// exported. This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingEntries(ctx context.Context) error {
	pending, err := w.repo.ListUnexportedEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unexported entries: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, entry := range pending {
		if err := w.exportEntry(ctx, entry.OrgID, entry.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry",
				log.FieldComponent, log.ComponentExport,
				log.FieldEntryID, entry.ID,
				log.FieldOrgID, entry.OrgID,
				log.FieldError, err)
			continue
		}
	}

	return nil
}

// StartupExportCheck sweeps the unexported backlog at worker startup. Useful
// to recover from missed AMQP messages or worker downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	// Get a larger batch for startup check
	pending, err := w.repo.ListUnexportedEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unexported entries for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unexported entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unexported entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, entry := range pending {
		if err := w.exportEntry(ctx, entry.OrgID, entry.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry during startup",
				log.FieldComponent, log.ComponentExport,
				log.FieldEntryID, entry.ID,
				log.FieldOrgID, entry.OrgID,
				log.FieldError, err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportEntry(ctx context.Context, orgID, entryID string) error {
	entry, err := w.repo.GetEntry(ctx, orgID, entryID)
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	org, err := w.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("get organization from storage: %w", err)
	}

	ref, err := w.writer.Append(ctx, org, entry)
	if err != nil {
		return fmt.Errorf("append to ledger sheet: %w", err)
	}

	if err := w.repo.MarkExported(ctx, orgID, entryID); err != nil {
		// The append worked; a retry would duplicate the row, so log and
		// accept the message anyway.
		slog.ErrorContext(ctx, "Failed to mark entry as exported",
			log.FieldComponent, log.ComponentExport,
			log.FieldEntryID, entryID,
			log.FieldOrgID, orgID,
			log.FieldError, err)
		return nil
	}

	slog.InfoContext(ctx, "Successfully exported entry",
		log.FieldComponent, log.ComponentExport,
		log.FieldEntryID, entryID,
		log.FieldOrgID, orgID,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, entry.Amount.Cents)

	return nil
}
