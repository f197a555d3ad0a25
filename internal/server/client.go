// Package server is the HTTP client for the mission server API: server
// identity, message-bus configuration, mission creation, sensor file upload,
// batch processing and bookmarks.
//
// All requests use HTTP basic auth. Request and response sizes are not
// bounded and no client-side timeout is applied, since sensor uploads can run
// for a long time; cancellation is driven by the caller's context.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/jsonutil"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 500

// Client talks to one mission server.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string

	// partWriter replaces writeParts when set.
	partWriter func(*multipart.Writer, []FilePart) error
}

// NewClient creates a client for serverURL authenticating with the given
// basic auth token. httpClient may be nil.
func NewClient(serverURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must be http or https: %s", serverURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL has no host: %s", serverURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, baseURL: u, token: token}, nil
}

// BaseURL returns the server URL the client was created with.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// endpoint resolves an API path (already escaped) against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	target := strings.TrimRight(c.baseURL.String(), "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// getJSON issues an authenticated GET and decodes the response as T.
func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint(path, nil), nil, "")
	if err != nil {
		var zero T
		return zero, err
	}
	return jsonutil.Decode[T](body)
}

// sendJSON issues an authenticated request with in as the JSON body and
// returns the raw response body.
func (c *Client) sendJSON(ctx context.Context, method, path string, in any) ([]byte, error) {
	var payload io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, c.endpoint(path, nil), payload, contentType)
}

// do sends one request and returns the response body. Non-2xx responses are
// returned as *StatusError.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debug().Str("method", method).Str("path", req.URL.Path).Msg("Server API request")
	startTime := time.Now()

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Server API response")
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("Server API response")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       jsonutil.Truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}
	return data, nil
}
