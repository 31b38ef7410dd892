package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/damage-analyzer/internal/analyzer"
	"github.com/example/damage-analyzer/internal/logging"
	"github.com/example/damage-analyzer/internal/repository"
)

const (
	reportFilename = "ml_report.json"
	cacheTTL       = 5 * time.Minute
)

// Report is the full analysis record returned to the caller and published to
// the pinning service. EvidenceCID is only set for analyze-by-reference;
// MLReportCID only after a successful publish.
type Report struct {
	RequestID       string   `json:"request_id"`
	Severity        float64  `json:"severity"`
	DamageParts     []string `json:"damage_parts"`
	Confidence      float64  `json:"confidence"`
	Timestamp       string   `json:"timestamp"`
	EvidenceCID     string   `json:"evidenceCID,omitempty"`
	MLReportCID     string   `json:"mlReportCID,omitempty"`
	IsVehicle       bool     `json:"is_vehicle"`
	ValidationError string   `json:"validation_error,omitempty"`
}

// GateError signals that the vehicle gate rejected the image. The HTTP layer
// maps it to a 400 with structured detail.
type GateError struct {
	Message string
}

func (e *GateError) Error() string {
	return e.Message
}

// Fetcher downloads evidence content by CID.
type Fetcher interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// Publisher pins a serialized report and returns its CID.
type Publisher interface {
	Publish(ctx context.Context, filename string, payload []byte) (string, error)
}

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.AnalysisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// AnalysisUseCase chains fetch, inference, publication, caching, and audit
// persistence for one request. Repo and cache may be nil; both are additive
// and never change the analysis outcome.
type AnalysisUseCase struct {
	backend   analyzer.Backend
	fetcher   Fetcher
	publisher Publisher
	repo      AnalysisRepository
	cache     Cache
	logger    *zap.Logger
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(backend analyzer.Backend, fetcher Fetcher, publisher Publisher, repo AnalysisRepository, cache Cache, logger *zap.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		backend:   backend,
		fetcher:   fetcher,
		publisher: publisher,
		repo:      repo,
		cache:     cache,
		logger:    logger.Named("analysis_usecase"),
	}
}

// BackendReady reports whether a real inference backend is configured.
func (uc *AnalysisUseCase) BackendReady() bool {
	return uc.backend != nil && uc.backend.Ready()
}

// AnalyzeCID fetches the evidence image from the gateway and analyzes it.
func (uc *AnalysisUseCase) AnalyzeCID(ctx context.Context, cid string) (*Report, error) {
	image, err := uc.fetcher.Fetch(ctx, cid)
	if err != nil {
		uc.logger.Error("evidence fetch failed", zap.String("cid", cid), zap.Error(err))
		return nil, err
	}
	return uc.analyze(ctx, image, cid)
}

// AnalyzeUpload analyzes image bytes supplied directly by the caller.
func (uc *AnalysisUseCase) AnalyzeUpload(ctx context.Context, image []byte) (*Report, error) {
	return uc.analyze(ctx, image, "")
}

func (uc *AnalysisUseCase) analyze(ctx context.Context, image []byte, evidenceCID string) (*Report, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", requestID)

	hash := sha1.Sum(image)
	hashHex := hex.EncodeToString(hash[:])
	cacheKey := fmt.Sprintf("analysis:%s:%s", hashHex, evidenceCID)

	if cached := uc.cachedReport(ctx, opLogger, cacheKey); cached != nil {
		return cached, nil
	}

	result, err := uc.backend.Analyze(ctx, image)
	if err != nil {
		// Backends fail open; an error here is unexpected, degrade the
		// same way they do.
		opLogger.Warn("inference backend returned error, using mock result", zap.Error(err))
		result = analyzer.MockResult()
	}
	analyzer.ClampResult(result)

	if result.Rejected() {
		message := result.ValidationError
		if message == "" {
			message = "Image validation failed"
		}
		opLogger.Info("vehicle gate rejected image", zap.String("reason", message))
		uc.persistLog(ctx, opLogger, &Report{
			RequestID:       requestID,
			DamageParts:     []string{},
			EvidenceCID:     evidenceCID,
			ValidationError: message,
		}, hashHex)
		return nil, &GateError{Message: message}
	}

	report := &Report{
		RequestID:   requestID,
		Severity:    analyzer.Round(result.Severity, 2),
		DamageParts: result.DamageParts,
		Confidence:  analyzer.Round(result.Confidence, 3),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		EvidenceCID: evidenceCID,
		IsVehicle:   true,
	}

	uc.publishReport(ctx, opLogger, report)
	uc.persistLog(ctx, opLogger, report, hashHex)
	uc.cacheReport(ctx, opLogger, cacheKey, report)

	return report, nil
}

// publishReport pins the report JSON and annotates the report with the
// resulting CID. Failures are logged and swallowed.
func (uc *AnalysisUseCase) publishReport(ctx context.Context, opLogger *zap.Logger, report *Report) {
	if uc.publisher == nil {
		return
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		opLogger.Error("failed to serialize report for publication", zap.Error(err))
		return
	}
	cid, err := uc.publisher.Publish(ctx, reportFilename, payload)
	if err != nil {
		opLogger.Warn("report publication failed", zap.Error(err))
		return
	}
	report.MLReportCID = cid
}

func (uc *AnalysisUseCase) persistLog(ctx context.Context, opLogger *zap.Logger, report *Report, imageSHA1 string) {
	if uc.repo == nil {
		return
	}
	log := &repository.AnalysisLog{
		RequestID:   report.RequestID,
		EvidenceCID: report.EvidenceCID,
		ReportCID:   report.MLReportCID,
		Severity:    report.Severity,
		Confidence:  report.Confidence,
		DamageParts: repository.JoinParts(report.DamageParts),
		IsVehicle:   report.IsVehicle,
		ImageSHA1:   imageSHA1,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		opLogger.Warn("failed to persist analysis log", zap.Error(err))
	}
}

func (uc *AnalysisUseCase) cachedReport(ctx context.Context, opLogger *zap.Logger, key string) *Report {
	if uc.cache == nil {
		return nil
	}
	value, err := uc.cache.Get(ctx, key)
	if err != nil || value == "" {
		return nil
	}
	var report Report
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		opLogger.Warn("failed to decode cached report", zap.Error(err))
		return nil
	}
	opLogger.Debug("returning cached report", zap.String("cache_key", key))
	return &report
}

func (uc *AnalysisUseCase) cacheReport(ctx context.Context, opLogger *zap.Logger, key string, report *Report) {
	if uc.cache == nil {
		return
	}
	serialized, err := json.Marshal(report)
	if err != nil {
		opLogger.Warn("failed to serialize report for caching", zap.Error(err))
		return
	}
	if err := uc.cache.Set(ctx, key, string(serialized), cacheTTL); err != nil {
		opLogger.Warn("failed to cache report", zap.Error(err))
	}
}

// GetReport loads a persisted report from the audit log by request ID.
func (uc *AnalysisUseCase) GetReport(ctx context.Context, requestID string) (*Report, error) {
	if uc.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &Report{
		RequestID:   log.RequestID,
		Severity:    log.Severity,
		DamageParts: log.PartsList(),
		Confidence:  log.Confidence,
		Timestamp:   log.CreatedAt.UTC().Format(time.RFC3339Nano),
		EvidenceCID: log.EvidenceCID,
		MLReportCID: log.ReportCID,
		IsVehicle:   log.IsVehicle,
	}, nil
}
