package journal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"livesync/core/database"
	"livesync/core/reconcile"
	"livesync/core/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnomalyRecord is one persisted reconciliation anomaly.
type AnomalyRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Feed       string    `gorm:"size:64;index:idx_feed_created" json:"feed"`
	Type       string    `gorm:"size:32" json:"type"`
	Kind       string    `gorm:"size:32" json:"kind"`
	EntityID   string    `gorm:"size:191" json:"entity_id"`
	Detail     string    `gorm:"size:1024" json:"detail"`
	OccurredAt time.Time `gorm:"index:idx_feed_created" json:"occurred_at"`
}

// TableName sets the table name.
func (AnomalyRecord) TableName() string {
	return "anomaly_records"
}

// Config holds journal tuning.
type Config struct {
	// QueueSize bounds records waiting to be written. Extra records are dropped.
	QueueSize int `mapstructure:"queue_size" default:"1024" validate:"gte=0"`
	// BatchSize is the maximum number of records per insert.
	BatchSize int `mapstructure:"batch_size" default:"100" validate:"gte=0"`
	// FlushIntervalMS is how long a partial batch may wait before it is written.
	FlushIntervalMS int `mapstructure:"flush_interval_ms" default:"500" validate:"gte=0"`
}

// Journal persists anomalies asynchronously. It implements reconcile.Recorder, so
// Apply never waits on the database.
type Journal struct {
	db      *gorm.DB
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	queue   chan AnomalyRecord
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Migrate creates or updates the journal table and checks the result.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&AnomalyRecord{}); err != nil {
		return fmt.Errorf("failed to migrate anomaly journal: %w", err)
	}
	missing, err := database.MissingColumns(db, AnomalyRecord{}.TableName(), "feed", "type", "kind", "entity_id", "detail", "occurred_at")
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("anomaly journal table is missing columns %v", missing)
	}
	return nil
}

// New starts the background writer. Call Close to flush and stop it.
func New(db *gorm.DB, cfg Config, logger *zap.Logger) *Journal {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushIntervalMS <= 0 {
		cfg.FlushIntervalMS = 500
	}
	j := &Journal{
		db:     db,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		queue:  make(chan AnomalyRecord, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go j.run()
	return j
}

// Applied is a no-op; the journal only keeps anomalies.
func (j *Journal) Applied(string, reconcile.Kind) {}

// Anomaly queues a record. It never blocks.
func (j *Journal) Anomaly(feed string, a reconcile.Anomaly) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	rec := AnomalyRecord{
		Feed:       utils.Truncate(feed, 64),
		Type:       utils.Truncate(string(a.Type), 32),
		Kind:       utils.Truncate(string(a.Kind), 32),
		EntityID:   utils.Truncate(string(a.ID), 191),
		Detail:     utils.Truncate(a.Detail, 1024),
		OccurredAt: j.now().UTC(),
	}
	select {
	case j.queue <- rec:
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			j.logger.Warn("Anomaly journal queue full, dropping records", zap.Int64("dropped", n))
		}
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Close stops accepting records, writes everything queued and waits for the writer.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	<-j.done
}

// Recent returns the newest records for feed, newest first. An empty feed matches all.
func (j *Journal) Recent(ctx context.Context, feed string, limit int) ([]AnomalyRecord, error) {
	return Recent(ctx, j.db, feed, limit)
}

// Recent queries the journal table directly, for callers without a running Journal.
func Recent(ctx context.Context, db *gorm.DB, feed string, limit int) ([]AnomalyRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := db.WithContext(ctx).Order("occurred_at DESC").Order("id DESC").Limit(limit)
	if feed != "" {
		q = q.Where("feed = ?", feed)
	}
	var records []AnomalyRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query anomaly journal: %w", err)
	}
	return records, nil
}

func (j *Journal) run() {
	defer close(j.done)

	ticker := time.NewTicker(time.Duration(j.cfg.FlushIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]AnomalyRecord, 0, j.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.db.CreateInBatches(batch, j.cfg.BatchSize).Error; err != nil {
			j.logger.Error("Failed to write anomaly journal", zap.Error(err), zap.Int("records", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-j.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= j.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
