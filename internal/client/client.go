// Package client is the HTTP client other services use to talk to the
// storage facade. Transport failures and 5xx responses are retried with
// exponential backoff; 4xx responses are terminal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotFound reports that the requested blob or record does not exist on
// the server.
var ErrNotFound = errors.New("not found on storage service")

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultMaxConns   = 10
	defaultIdleConns  = 5
)

// Client talks to a running storage service.
type Client struct {
	baseURL    string
	httpc      *http.Client
	maxRetries uint64
	username   string
	password   string
	retryWait  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithMaxRetries overrides how many times a failed request is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBasicAuth attaches Basic credentials to every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithRetryInterval overrides the initial backoff interval between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryWait = d
	}
}

// New creates a Client for the service at baseURL (no trailing slash
// needed).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: defaultMaxRetries,
		retryWait:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpc == nil {
		c.httpc = &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     defaultMaxConns,
				MaxIdleConnsPerHost: defaultIdleConns,
			},
		}
	}

	return c
}

// SavePDF uploads content as the PDF for docID and returns the server-side
// path it was stored at.
func (c *Client) SavePDF(ctx context.Context, docID string, content []byte) (string, error) {
	var data struct {
		PDFPath string `json:"pdf_path"`
	}

	err := c.do(ctx, http.MethodPut, c.url("pdf", docID), content, func(payload []byte) error {
		return decodeData(payload, &data)
	})
	if err != nil {
		return "", fmt.Errorf("save pdf %s: %w", docID, err)
	}

	return data.PDFPath, nil
}

// GetPDF downloads the PDF stored for docID.
func (c *Client) GetPDF(ctx context.Context, docID string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, http.MethodGet, c.url("pdf", docID), nil, func(payload []byte) error {
		body = payload
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get pdf %s: %w", docID, err)
	}
	return body, nil
}

// SaveImage uploads content as the page image for (docID, page) and returns
// the server-side path.
func (c *Client) SaveImage(ctx context.Context, docID string, page int, content []byte) (string, error) {
	var data struct {
		ImagePath string `json:"image_path"`
	}

	err := c.do(ctx, http.MethodPut, c.url("image", docID, fmt.Sprint(page)), content, func(payload []byte) error {
		return decodeData(payload, &data)
	})
	if err != nil {
		return "", fmt.Errorf("save image %s page %d: %w", docID, page, err)
	}

	return data.ImagePath, nil
}

// GetImage downloads the page image stored for (docID, page).
func (c *Client) GetImage(ctx context.Context, docID string, page int) ([]byte, error) {
	var body []byte
	err := c.do(ctx, http.MethodGet, c.url("image", docID, fmt.Sprint(page)), nil, func(payload []byte) error {
		body = payload
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get image %s page %d: %w", docID, page, err)
	}
	return body, nil
}

// DeleteDocument removes the PDF and all page images for docID. Deleting a
// document that does not exist succeeds.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	err := c.do(ctx, http.MethodDelete, c.url("document", docID), nil, func([]byte) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// do issues a request, retrying transport errors and 5xx responses. The
// accept callback consumes the response payload on success and its errors
// are terminal.
func (c *Client) do(ctx context.Context, method, target string, body []byte, accept func(payload []byte) error) error {
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%s %s: %s: %s", method, target, resp.Status, errorMessage(payload))
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, errorMessage(payload)))
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("%s %s: %s: %s", method, target, resp.Status, errorMessage(payload)))
		}

		if err := accept(payload); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
}

// decodeData unpacks the "data" member of a response envelope into out.
func decodeData(payload []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// errorMessage extracts the server's error message from a JSON error body,
// falling back to the raw payload.
func errorMessage(payload []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(payload))
}
