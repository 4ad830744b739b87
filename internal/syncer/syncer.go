// Package syncer runs the single-pass inventory synchronization: every
// record carrying a Wink id is looked up against the Wink API, classified,
// and written back to the record store.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/eyewearops/syncdeck/internal/core/domain"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/nocodb"
	"github.com/eyewearops/syncdeck/internal/wink"
)

// ProductSource is the remote inventory API consulted per record.
type ProductSource interface {
	Login(ctx context.Context) error
	Product(ctx context.Context, winkID string) (map[string]any, bool, error)
	StoreNames() map[string]string
}

// RecordStore is the tabular database holding the product rows.
type RecordStore interface {
	ListRecordsWithWinkID(ctx context.Context) ([]nocodb.Record, error)
	UpdateStock(ctx context.Context, recordID string, status domain.StockStatus, inventory domain.LocationInventory) error
}

// Syncer implements ports.SyncRunner for the wink-sync service.
type Syncer struct {
	source ProductSource
	store  RecordStore

	// Pause between per-record lookups, a fixed courtesy delay.
	requestDelay time.Duration

	// Optional cap on records processed, used for test runs.
	limit int
}

func New(source ProductSource, store RecordStore, requestDelay time.Duration) *Syncer {
	return &Syncer{
		source:       source,
		store:        store,
		requestDelay: requestDelay,
	}
}

// WithLimit caps the number of records processed in a pass.
func (s *Syncer) WithLimit(limit int) *Syncer {
	s.limit = limit
	return s
}

// Run executes one sequential pass. Authentication or record-store
// enumeration failures abort the run; a single record's failure is tallied
// and the pass continues. The report callback receives percent-complete and
// a log line after each record.
func (s *Syncer) Run(ctx context.Context, report func(progress int, line string)) (*domain.SyncStats, error) {
	if report == nil {
		report = func(int, string) {}
	}

	stats := &domain.SyncStats{}

	if err := s.source.Login(ctx); err != nil {
		return stats, fmt.Errorf("authentication failed: %w", err)
	}
	report(0, "Authenticated with Wink API")

	records, err := s.store.ListRecordsWithWinkID(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch records: %w", err)
	}
	stats.TotalRecords = len(records)
	report(0, fmt.Sprintf("Found %d records with Wink Id", len(records)))

	if s.limit > 0 && len(records) > s.limit {
		records = records[:s.limit]
		report(0, fmt.Sprintf("Limit set, processing first %d records", s.limit))
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		progress := (i + 1) * 100 / len(records)
		recordID := record.ID()
		winkID := record.WinkID()

		if recordID == "" || winkID == "" {
			stats.Errors++
			report(progress, fmt.Sprintf("Skipping record with missing id (record=%q wink=%q)", recordID, winkID))
			continue
		}

		line := s.syncRecord(ctx, recordID, winkID, stats)
		stats.Processed++
		report(progress, line)

		if s.requestDelay > 0 && i < len(records)-1 {
			select {
			case <-time.After(s.requestDelay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	return stats, nil
}

// syncRecord handles one record end to end and returns the log line for it.
func (s *Syncer) syncRecord(ctx context.Context, recordID, winkID string, stats *domain.SyncStats) string {
	product, found, err := s.source.Product(ctx, winkID)
	if err != nil {
		stats.Errors++
		logger.Error("wink lookup failed", "wink_id", winkID, "error", err)
		return fmt.Sprintf("Error looking up Wink Id %s: %v", winkID, err)
	}

	inventory := wink.ParseInventory(product, s.source.StoreNames())
	status := wink.Classify(inventory, found)

	if err := s.store.UpdateStock(ctx, recordID, status, inventory); err != nil {
		stats.Errors++
		logger.Error("record update failed", "record_id", recordID, "error", err)
		return fmt.Sprintf("Error updating record %s: %v", recordID, err)
	}

	stats.Updated++
	stats.CountStatus(status)
	if status == domain.StockNotFound {
		return fmt.Sprintf("Wink Id %s not found", winkID)
	}
	return fmt.Sprintf("Wink Id %s: %s (total %d)", winkID, status, inventory.Total())
}
