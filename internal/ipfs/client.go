// Package ipfs talks to a content-addressed storage network: a read gateway
// for fetching evidence images and a pinning endpoint for publishing
// analysis reports.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/example/damage-analyzer/internal/config"
)

const fetchTimeout = 30 * time.Second

// FetchError reports a failed gateway download. StatusCode is zero for
// transport-level failures.
type FetchError struct {
	CID        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download %s: gateway returned status %d", e.CID, e.StatusCode)
	}
	return fmt.Sprintf("failed to download %s: %v", e.CID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches and publishes content. Auth for publishing is a bearer JWT
// when configured, else a Pinata-style key/secret header pair, else nothing
// (a local node API needs no credentials).
type Client struct {
	gatewayURL   string
	pinEndpoint  string
	pinJWT       string
	pinAPIKey    string
	pinAPISecret string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient builds a client from the service configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		gatewayURL:   cfg.IPFSGatewayURL,
		pinEndpoint:  cfg.PinEndpoint,
		pinJWT:       cfg.PinJWT,
		pinAPIKey:    cfg.PinAPIKey,
		pinAPISecret: cfg.PinAPISecret,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		logger:       logger.Named("ipfs"),
	}
}

// Fetch downloads the content behind cid through the gateway.
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.gatewayURL, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{CID: cid, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{CID: cid, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{CID: cid, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{CID: cid, Err: err}
	}
	return data, nil
}

// pinResponse covers both the node API ("Hash") and hosted pinning services
// ("IpfsHash").
type pinResponse struct {
	Hash     string `json:"Hash"`
	IpfsHash string `json:"IpfsHash"`
}

// Publish uploads the payload as a JSON file to the pinning endpoint and
// returns the resulting CID. Callers treat failures as non-fatal.
func (c *Client) Publish(ctx context.Context, filename string, payload []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "application/json")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(payload); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pinEndpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	switch {
	case c.pinJWT != "":
		req.Header.Set("Authorization", "Bearer "+c.pinJWT)
	case c.pinAPIKey != "" && c.pinAPISecret != "":
		req.Header.Set("pinata_api_key", c.pinAPIKey)
		req.Header.Set("pinata_secret_api_key", c.pinAPISecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pinning endpoint returned status %d", resp.StatusCode)
	}

	var pin pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}

	cid := pin.Hash
	if cid == "" {
		cid = pin.IpfsHash
	}
	if cid == "" {
		return "", fmt.Errorf("pin response contains no CID")
	}
	c.logger.Debug("report pinned", zap.String("cid", cid))
	return cid, nil
}
