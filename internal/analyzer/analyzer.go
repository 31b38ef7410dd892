package analyzer

import (
	"context"
	"math"
)

// Result is the outcome of a single damage analysis. Severity is bounded to
// [0,100] and confidence to [0,1]; ClampResult enforces both.
type Result struct {
	Severity        float64  `json:"severity"`
	DamageParts     []string `json:"damage_parts"`
	Confidence      float64  `json:"confidence"`
	IsVehicle       bool     `json:"is_vehicle"`
	ValidationError string   `json:"validation_error,omitempty"`
}

// Rejected reports whether the vehicle gate turned the image away. A set
// validation error counts as a rejection even when the image was classified
// as a vehicle, matching the low-confidence path.
func (r *Result) Rejected() bool {
	return !r.IsVehicle || r.ValidationError != ""
}

// Backend analyzes raw image bytes. Implementations must fail open: a
// misconfigured or unreachable backend yields a mock result, not an error.
// An error return is reserved for conditions the caller should surface.
type Backend interface {
	Analyze(ctx context.Context, image []byte) (*Result, error)
	Ready() bool
}

// Rejection builds the zeroed result the vehicle gate produces.
func Rejection(message string) *Result {
	return &Result{
		Severity:        0,
		DamageParts:     []string{},
		Confidence:      0,
		IsVehicle:       false,
		ValidationError: message,
	}
}

// ClampResult forces severity and confidence into their documented ranges.
func ClampResult(r *Result) {
	r.Severity = Clamp(r.Severity, 0, 100)
	r.Confidence = Clamp(r.Confidence, 0, 1)
	if r.DamageParts == nil {
		r.DamageParts = []string{}
	}
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// Round keeps the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
