// Package classifier implements the damage analyzer on top of a hosted
// image-classification endpoint (HuggingFace-style inference API). The
// endpoint returns generic category predictions; the damage severity is a
// fixed placeholder heuristic over the top score, not a learned signal.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/damage-analyzer/internal/analyzer"
)

const (
	topK = 5

	// Minimum score a vehicle-category prediction needs to pass the gate.
	minVehicleConfidence = 0.1
)

// vehicleVocabulary matches the ImageNet vehicle categories the analyzer
// accepts. Membership is checked on normalized label words, so "sports car"
// and "sports_car" both match.
var vehicleVocabulary = map[string]struct{}{
	"convertible":   {},
	"amphibian":     {},
	"beach wagon":   {},
	"station wagon": {},
	"limousine":     {},
	"minivan":       {},
	"racer":         {},
	"sports car":    {},
	"fire engine":   {},
	"garbage truck": {},
	"pickup":        {},
	"pickup truck":  {},
	"trailer truck": {},
	"tractor":       {},
	"truck":         {},
	"minibus":       {},
	"school bus":    {},
	"harvester":     {},
	"motor scooter": {},
	"motorcycle":    {},
	"moped":         {},
	"jeep":          {},
	"cab":           {},
	"tow truck":     {},
	"ambulance":     {},
}

type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Backend calls the classification endpoint and derives a damage estimate
// from the returned category scores.
type Backend struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New constructs a classifier backend for the given inference endpoint.
func New(endpoint, token string, logger *zap.Logger) *Backend {
	return &Backend{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("classifier_backend"),
	}
}

// Ready reports whether an endpoint is configured.
func (b *Backend) Ready() bool {
	return b.endpoint != ""
}

// Analyze classifies the image and maps the predictions to a damage
// estimate. Endpoint failures degrade to a mock result; only the vehicle
// gate and the low-confidence check produce rejection results.
func (b *Backend) Analyze(ctx context.Context, image []byte) (*analyzer.Result, error) {
	if b.endpoint == "" {
		return analyzer.MockResult(), nil
	}

	preds, err := b.classify(ctx, image)
	if err != nil {
		b.logger.Warn("classification request failed, falling back to mock result", zap.Error(err))
		return analyzer.MockResult(), nil
	}
	if len(preds) == 0 {
		b.logger.Warn("classification returned no predictions, falling back to mock result")
		return analyzer.MockResult(), nil
	}

	sort.Slice(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })
	if len(preds) > topK {
		preds = preds[:topK]
	}

	vehicleConfidence, vehicleLabel := matchVehicle(preds)
	if vehicleConfidence < minVehicleConfidence {
		return analyzer.Rejection(fmt.Sprintf(
			"Image does not appear to contain a vehicle. Detected class confidence: %.2f", vehicleConfidence)), nil
	}

	top := preds[0].Score
	if top < minVehicleConfidence {
		return &analyzer.Result{
			Severity:        0,
			DamageParts:     []string{},
			Confidence:      analyzer.Round(top, 3),
			IsVehicle:       true,
			ValidationError: "Low confidence in image classification. Image may be unclear or not a vehicle.",
		}, nil
	}

	result := &analyzer.Result{
		Severity:    analyzer.Round(analyzer.Clamp(top*100*1.2, 0, 100), 2),
		DamageParts: damageParts(top * 100 * 1.2),
		Confidence:  analyzer.Round(top, 3),
		IsVehicle:   true,
	}
	b.logger.Debug("classification accepted",
		zap.String("vehicle_label", vehicleLabel),
		zap.Float64("vehicle_confidence", vehicleConfidence),
		zap.Float64("severity", result.Severity))
	return result, nil
}

func (b *Backend) classify(ctx context.Context, image []byte) ([]prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier endpoint returned status %d", resp.StatusCode)
	}

	var preds []prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return preds, nil
}

// matchVehicle returns the score and label of the first prediction whose
// label is in the vehicle vocabulary, or zero when none match.
func matchVehicle(preds []prediction) (float64, string) {
	for _, p := range preds {
		if isVehicleLabel(p.Label) {
			return p.Score, p.Label
		}
	}
	return 0, ""
}

func isVehicleLabel(label string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(label, "_", " "))
	// ImageNet labels are comma-separated synonym lists, e.g.
	// "sports car, sport car".
	for _, synonym := range strings.Split(normalized, ",") {
		if _, ok := vehicleVocabulary[strings.TrimSpace(synonym)]; ok {
			return true
		}
	}
	return false
}

// damageParts appends conventional part names as severity thresholds are
// crossed. Part detection is a placeholder, not a trained estimator;
// severity here is pre-clamp.
func damageParts(severity float64) []string {
	parts := []string{}
	if severity > 50 {
		parts = append(parts, "front_bumper")
	}
	if severity > 60 {
		parts = append(parts, "headlight")
	}
	if severity > 70 {
		parts = append(parts, "hood")
	}
	if severity > 80 {
		parts = append(parts, "windshield")
	}
	return parts
}
