package analyzer

import (
	"context"
	"math/rand"
)

// Mock returns randomized but well-formed results so development can proceed
// without model credentials. Also the fallback every real backend degrades to.
type Mock struct{}

// NewMock constructs the mock backend.
func NewMock() *Mock {
	return &Mock{}
}

// Analyze returns a randomized vehicle-positive result.
func (m *Mock) Analyze(_ context.Context, _ []byte) (*Result, error) {
	return MockResult(), nil
}

// Ready reports false: there is no real model behind the mock.
func (m *Mock) Ready() bool {
	return false
}

// MockResult produces severity in [30,90] and confidence in [0.6,0.95].
func MockResult() *Result {
	return &Result{
		Severity:    Round(30+rand.Float64()*60, 2),
		DamageParts: []string{"front_bumper", "headlight", "hood"},
		Confidence:  Round(0.6+rand.Float64()*0.35, 3),
		IsVehicle:   true,
	}
}
