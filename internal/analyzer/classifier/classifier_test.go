package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, "test-token", zap.NewNop())
}

func predictionsHandler(t *testing.T, preds []prediction) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(preds); err != nil {
			t.Errorf("encode predictions: %v", err)
		}
	}
}

func TestAnalyzeAcceptsVehicleAndDerivesSeverity(t *testing.T) {
	backend := newTestBackend(t, predictionsHandler(t, []prediction{
		{Label: "sports_car, sport car", Score: 0.75},
		{Label: "racer", Score: 0.1},
	}))

	result, err := backend.Analyze(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsVehicle {
		t.Fatalf("expected vehicle acceptance, got %+v", result)
	}
	// severity = 0.75 * 100 * 1.2 = 90
	if result.Severity != 90 {
		t.Fatalf("expected severity 90, got %v", result.Severity)
	}
	if result.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %v", result.Confidence)
	}
	// 90 crosses the 50/60/70/80 thresholds
	want := []string{"front_bumper", "headlight", "hood", "windshield"}
	if len(result.DamageParts) != len(want) {
		t.Fatalf("expected parts %v, got %v", want, result.DamageParts)
	}
	for i, part := range want {
		if result.DamageParts[i] != part {
			t.Fatalf("expected parts %v, got %v", want, result.DamageParts)
		}
	}
}

func TestAnalyzeCapsSeverityAtHundred(t *testing.T) {
	backend := newTestBackend(t, predictionsHandler(t, []prediction{
		{Label: "pickup", Score: 0.95},
	}))

	result, err := backend.Analyze(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Severity != 100 {
		t.Fatalf("expected severity capped at 100, got %v", result.Severity)
	}
}

func TestAnalyzeRejectsNonVehicle(t *testing.T) {
	backend := newTestBackend(t, predictionsHandler(t, []prediction{
		{Label: "tabby, tabby cat", Score: 0.9},
		{Label: "tiger cat", Score: 0.05},
	}))

	result, err := backend.Analyze(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Rejected() {
		t.Fatalf("expected rejection, got %+v", result)
	}
	if result.Severity != 0 || result.Confidence != 0 {
		t.Fatalf("expected zeroed result, got %+v", result)
	}
	if result.ValidationError == "" {
		t.Fatal("expected validation error message")
	}
}

func TestAnalyzeRejectsLowScoreVehicleMatch(t *testing.T) {
	// A vehicle label below the gate threshold does not pass.
	backend := newTestBackend(t, predictionsHandler(t, []prediction{
		{Label: "barn", Score: 0.6},
		{Label: "minivan", Score: 0.05},
	}))

	result, err := backend.Analyze(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Rejected() {
		t.Fatalf("expected rejection, got %+v", result)
	}
}

func TestAnalyzeFallsBackToMockOnServerError(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	result, err := backend.Analyze(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsVehicle {
		t.Fatal("mock fallback must pass the gate")
	}
	if result.Severity < 30 || result.Severity > 90 {
		t.Fatalf("severity %v outside mock range", result.Severity)
	}
}

func TestAnalyzeUnconfiguredUsesMock(t *testing.T) {
	backend := New("", "", zap.NewNop())
	if backend.Ready() {
		t.Fatal("unconfigured backend must not report ready")
	}

	result, err := backend.Analyze(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsVehicle {
		t.Fatal("mock fallback must pass the gate")
	}
}

func TestIsVehicleLabelNormalization(t *testing.T) {
	cases := map[string]bool{
		"sports_car, sport car": true,
		"Sports Car":            true,
		"trailer truck":         true,
		"tabby, tabby cat":      false,
		"":                      false,
	}
	for label, want := range cases {
		if got := isVehicleLabel(label); got != want {
			t.Fatalf("isVehicleLabel(%q) = %v, want %v", label, got, want)
		}
	}
}
