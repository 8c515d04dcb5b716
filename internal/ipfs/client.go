package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const addPath = "/api/v0/add"

// PublishError marks a failed content-store upload.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return fmt.Sprintf("ipfs publish: %v", e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }

// Options parameterise the IPFS HTTP API client.
type Options struct {
	APIURL  string
	Timeout time.Duration
}

// Client uploads alert payloads to an IPFS node and returns their content
// identifiers.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an IPFS API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.APIURL, "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5001"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "ipfs_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Publish serialises the payload as JSON, adds it to the node, and returns
// the content identifier.
func (c *Client) Publish(ctx context.Context, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &PublishError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "payload.json")
	if err != nil {
		return "", &PublishError{Err: err}
	}
	if _, err := part.Write(body); err != nil {
		return "", &PublishError{Err: err}
	}
	if err := writer.Close(); err != nil {
		return "", &PublishError{Err: err}
	}

	endpoint := c.baseURL + addPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", &PublishError{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &PublishError{Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &PublishError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &PublishError{Err: parseHTTPError(resp.StatusCode, respBytes)}
	}

	var addRes addResponse
	if err := json.Unmarshal(respBytes, &addRes); err != nil {
		return "", &PublishError{Err: fmt.Errorf("decode add response: %w", err)}
	}
	if addRes.Hash == "" {
		return "", &PublishError{Err: errors.New("add response missing hash")}
	}

	c.logger.Debug().Str("cid", addRes.Hash).Msg("payload published")
	return addRes.Hash, nil
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

type errorResponse struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
}

func parseHTTPError(status int, body []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("ipfs api error (%d): %s", status, apiErr.Message)
	}
	if len(body) > 0 {
		return fmt.Errorf("ipfs api error (%d): %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("ipfs api error (%d)", status)
}
