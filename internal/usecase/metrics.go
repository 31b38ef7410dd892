package usecase

import (
	"context"
	"errors"
)

// ErrPersistenceDisabled is returned by audit-log operations when the
// service runs without a database.
var ErrPersistenceDisabled = errors.New("persistence is disabled")

// MetricsSummary represents aggregated analysis insights.
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	VehicleRequests   int64   `json:"vehicle_requests"`
	VehicleRate       float64 `json:"vehicle_rate"`
	AverageSeverity   float64 `json:"average_severity"`
	AverageConfidence float64 `json:"average_confidence"`
}

// GetMetricsSummary aggregates analysis metrics from persisted logs.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, ErrPersistenceDisabled
	}

	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:     aggregation.TotalCount,
		VehicleRequests:   aggregation.VehicleCount,
		AverageSeverity:   aggregation.AverageSeverity,
		AverageConfidence: aggregation.AverageConfidence,
	}

	if aggregation.TotalCount > 0 {
		summary.VehicleRate = float64(aggregation.VehicleCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
