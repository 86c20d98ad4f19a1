// Package downloader performs the HTTP side of media collection.
package downloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is one successful media fetch. The caller owns Body and
// must close it.
type Response struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 when the server did not send it
}

// Client fetches media assets. The configured timeout bounds the whole
// exchange including the body read.
type Client struct {
	http *resty.Client
}

// NewClient returns a client with the given per-download timeout.
func NewClient(timeout time.Duration) *Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	return &Client{http: c}
}

// SetBaseURL rewrites relative fetches onto base. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.http.SetBaseURL(base)
}

// Fetch streams url. Non-200 responses are errors.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, err
	}

	raw := resp.RawBody()
	if resp.StatusCode() != 200 {
		raw.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode())
	}

	length := int64(-1)
	if resp.RawResponse != nil && resp.RawResponse.ContentLength >= 0 {
		length = resp.RawResponse.ContentLength
	}

	return &Response{
		Body:          raw,
		ContentType:   resp.Header().Get("Content-Type"),
		ContentLength: length,
	}, nil
}
