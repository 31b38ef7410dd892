package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/damage-analyzer/internal/logging"
)

// AnalysisLog is a persisted audit row for one analysis request.
type AnalysisLog struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"column:request_id;uniqueIndex;size:64"`
	EvidenceCID string    `gorm:"column:evidence_cid;size:128"`
	ReportCID   string    `gorm:"column:report_cid;size:128"`
	Severity    float64   `gorm:"column:severity"`
	Confidence  float64   `gorm:"column:confidence"`
	DamageParts string    `gorm:"column:damage_parts;type:text"`
	IsVehicle   bool      `gorm:"column:is_vehicle"`
	ImageSHA1   string    `gorm:"column:image_sha1;index;size:40"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AnalysisLog) TableName() string {
	return "analysis_logs"
}

// PartsList splits the stored comma-joined part names.
func (l *AnalysisLog) PartsList() []string {
	if l.DamageParts == "" {
		return []string{}
	}
	return strings.Split(l.DamageParts, ",")
}

// JoinParts builds the stored representation of a part list.
func JoinParts(parts []string) string {
	return strings.Join(parts, ",")
}

// MetricsAggregation holds raw aggregates over the audit log.
type MetricsAggregation struct {
	TotalCount        int64
	VehicleCount      int64
	AverageSeverity   float64
	AverageConfidence float64
}

// AnalysisRepository provides persistence APIs for analysis logs.
type AnalysisRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAnalysisRepository creates a new repository instance.
func NewAnalysisRepository(db *gorm.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:             db,
		logger:         logger.Named("analysis_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *AnalysisRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AnalysisLog{})
}

// SaveLog persists an analysis log entry.
func (r *AnalysisRepository) SaveLog(ctx context.Context, log *AnalysisLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves the log row for a request.
func (r *AnalysisRepository) FindByRequestID(ctx context.Context, requestID string) (*AnalysisLog, error) {
	var log AnalysisLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error; err != nil {
		return nil, logging.NewOperationError("repository.find_by_request_id", requestID, err)
	}
	return &log, nil
}

// AggregateMetrics computes summary aggregates over all logs.
func (r *AnalysisRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	row := r.db.WithContext(ctx).
		Model(&AnalysisLog{}).
		Select("COUNT(*), " +
			"COALESCE(SUM(CASE WHEN is_vehicle THEN 1 ELSE 0 END), 0), " +
			"COALESCE(AVG(severity), 0), " +
			"COALESCE(AVG(confidence), 0)").
		Row()
	if err := row.Scan(&agg.TotalCount, &agg.VehicleCount, &agg.AverageSeverity, &agg.AverageConfidence); err != nil {
		return nil, logging.NewOperationError("repository.aggregate_metrics", "", err)
	}
	return &agg, nil
}

// IsNotFound reports whether err is a missing-record lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (r *AnalysisRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
