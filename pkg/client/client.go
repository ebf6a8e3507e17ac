package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-photo-pipeline/pkg/pipeline"
)

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for a running photo pipeline server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new pipeline client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a new pipeline client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Health reports whether the server is up
func (c *Client) Health(ctx context.Context) (*pipeline.Health, error) {
	var out pipeline.Health
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Photos returns the render state of every row
func (c *Client) Photos(ctx context.Context) ([]pipeline.Photo, error) {
	var out []pipeline.Photo
	if err := c.doJSON(ctx, http.MethodGet, "/photos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Photo returns the render state of one row
func (c *Client) Photo(ctx context.Context, row int) (*pipeline.Photo, error) {
	var out pipeline.Photo
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/photos/%d", row), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Viewport returns the visible window and the rows with work in flight
func (c *Client) Viewport(ctx context.Context) (*pipeline.Viewport, error) {
	var out pipeline.Viewport
	if err := c.doJSON(ctx, http.MethodGet, "/viewport", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetViewport moves the visible window to count rows starting at first.
// While dragging is true the server holds new work back.
func (c *Client) SetViewport(ctx context.Context, first, count int, dragging bool) (*pipeline.Viewport, error) {
	req := pipeline.ViewportRequest{First: &first, Count: &count, Dragging: dragging}
	var out pipeline.Viewport
	if err := c.doJSON(ctx, http.MethodPut, "/viewport", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Image downloads and decodes the current image of row
func (c *Client) Image(ctx context.Context, row int) (image.Image, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/photos/%d/image", row), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		msg := string(bodyBytes)
		var apiErr pipeline.ErrorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}
