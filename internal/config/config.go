package config

import (
	"os"
	"strings"
)

// Backend kinds selectable via ANALYZER_BACKEND.
const (
	BackendAuto       = "auto"
	BackendVision     = "vision"
	BackendClassifier = "classifier"
	BackendMock       = "mock"
)

// Config holds every runtime setting of the service. All values come from
// environment variables; missing credentials degrade features (mock
// inference, disabled persistence) instead of failing startup.
type Config struct {
	HTTPAddr string

	// Content-addressed storage.
	IPFSGatewayURL string
	PinEndpoint    string
	PinJWT         string
	PinAPIKey      string
	PinAPISecret   string

	// Inference backend selection.
	Backend         string
	OpenAIAPIKey    string
	OpenAIModel     string
	ClassifierURL   string
	ClassifierToken string

	// Optional infrastructure. Empty means disabled.
	DatabaseDSN string
	RedisAddr   string

	// Optional bearer auth on the analyze routes.
	JWTSecret   string
	JWTAudience string
}

// Load builds a Config from the environment.
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),

		IPFSGatewayURL: strings.TrimRight(getEnv("IPFS_GATEWAY_URL", "http://localhost:8080/ipfs"), "/"),
		PinEndpoint:    getEnv("IPFS_PIN_ENDPOINT", "http://localhost:5001/api/v0/add"),
		PinJWT:         os.Getenv("IPFS_PIN_JWT"),
		PinAPIKey:      os.Getenv("IPFS_PIN_API_KEY"),
		PinAPISecret:   os.Getenv("IPFS_PIN_API_SECRET"),

		Backend:         getEnv("ANALYZER_BACKEND", BackendAuto),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ClassifierURL:   os.Getenv("CLASSIFIER_URL"),
		ClassifierToken: os.Getenv("CLASSIFIER_TOKEN"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),
	}
}

// ResolveBackend maps the auto kind to whichever strategy has credentials,
// preferring the vision model when both are configured.
func (c *Config) ResolveBackend() string {
	if c.Backend != BackendAuto && c.Backend != "" {
		return c.Backend
	}
	switch {
	case c.OpenAIAPIKey != "":
		return BackendVision
	case c.ClassifierURL != "":
		return BackendClassifier
	default:
		return BackendMock
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
