// Package remote talks to the services the updater depends on: the core
// inventory, GitHub releases, the asset archive and plain file downloads.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

const (
	userAgent         = "pocketup/1.0"
	defaultTimeout    = 60 * time.Second
	defaultGitHubBase = "https://api.github.com"
)

var (
	// ErrNotFound reports a 404 from any remote endpoint.
	ErrNotFound = errors.New("remote resource not found")
	// ErrTransport wraps network failures, timeouts and unexpected statuses.
	ErrTransport = errors.New("transfer failed")
)

// Options configures a Client.
type Options struct {
	Timeout     time.Duration
	GitHubToken string
	GitHubAPI   string
}

// Client is the single HTTP entry point of the updater. Every request carries
// the configured timeout.
type Client struct {
	http      *req.Client
	download  *req.Client
	githubAPI string
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	api := strings.TrimSuffix(strings.TrimSpace(opts.GitHubAPI), "/")
	if api == "" {
		api = defaultGitHubBase
	}

	c := req.C().
		SetTimeout(timeout).
		SetUserAgent(userAgent)

	return &Client{
		http:      c,
		download:  c.Clone().DisableAutoReadResponse(),
		githubAPI: api,
	}
}

// getJSON fetches url and decodes a successful body into out.
func (c *Client) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	r := c.http.R().SetContext(ctx).SetSuccessResult(out)
	for k, v := range headers {
		r.SetHeader(k, v)
	}
	resp, err := r.Get(url)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrTransport, url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if !resp.IsSuccessState() {
		return fmt.Errorf("%w: GET %s: unexpected status %s", ErrTransport, url, resp.Status)
	}
	return nil
}

// getBytes fetches url and returns the raw body of a successful response.
func (c *Client) getBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("%w: GET %s: unexpected status %s", ErrTransport, url, resp.Status)
	}
	return resp.Bytes(), nil
}

// Download streams the body at url into w. A 404 is reported as ErrNotFound,
// every other failure as ErrTransport.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) error {
	resp, err := c.download.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: download %s: unexpected status %s", ErrTransport, url, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrTransport, url, err)
	}
	return nil
}
